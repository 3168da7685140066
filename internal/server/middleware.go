package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/teachbot/conversation-service/internal/auth"
)

type contextKey string

const claimsContextKey contextKey = "user_claims"

// withAuth rejects requests without a valid bearer token before any usecase
// is reached. The conversation core itself still re-checks for nil claims.
func (s *ConversationServer) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}

		claims, err := s.verifier.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromRequest(r *http.Request) *auth.UserClaims {
	claims, _ := r.Context().Value(claimsContextKey).(*auth.UserClaims)
	return claims
}
