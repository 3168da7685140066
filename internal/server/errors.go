package server

import (
	"encoding/json"
	"errors"
	"net/http"

	storage "github.com/teachbot/conversation-service/internal/storages"
	"github.com/teachbot/conversation-service/internal/usecases"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps core errors onto transport statuses. Forbidden responses
// carry a fixed body so they reveal nothing about the chat's contents.
func (s *ConversationServer) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrChatNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "chat not found"})
	case errors.Is(err, usecases.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, usecases.ErrBusinessLogicViolation),
		errors.Is(err, storage.ErrInvalidPage):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		s.logger.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}
