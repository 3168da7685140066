package server

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/teachbot/conversation-service/internal/auth"
	"github.com/teachbot/conversation-service/internal/models"
)

// Conversations is the slice of the usecase layer the transport needs.
type Conversations interface {
	ListUserChats(ctx context.Context, claims *auth.UserClaims) ([]models.ChatWithMembers, error)
	GetMessagesPage(ctx context.Context, claims *auth.UserClaims, chatId string, page uint64) ([]models.Message, error)
	ResolveDirectChat(ctx context.Context, claims *auth.UserClaims, recipient string) (*models.ChatWithMembers, error)
	SendMessage(ctx context.Context, claims *auth.UserClaims, send models.MessageSend) (*models.Message, error)
}

type ConversationServer struct {
	conversations Conversations
	verifier      *auth.Verifier
	validate      *validator.Validate
	logger        *logrus.Logger
}

func NewConversationServer(c Conversations, v *auth.Verifier, validate *validator.Validate, logger *logrus.Logger) *ConversationServer {
	return &ConversationServer{
		conversations: c,
		verifier:      v,
		validate:      validate,
		logger:        logger,
	}
}

func (s *ConversationServer) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.withAuth)

	api.HandleFunc("/conversations", s.ListConversations).Methods(http.MethodGet)
	api.HandleFunc("/chats/direct", s.ResolveDirectChat).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chat_id}/messages", s.GetMessagesPage).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.SendMessage).Methods(http.MethodPost)

	return r
}
