package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/teachbot/conversation-service/internal/models"
	"github.com/teachbot/conversation-service/internal/usecases"
)

type chatListResponse struct {
	Chats []models.ChatWithMembers `json:"chats"`
}

type messagesPageResponse struct {
	ChatID   string           `json:"chat_id"`
	Page     uint64           `json:"page"`
	Messages []models.Message `json:"messages"`
}

type resolveDirectChatRequest struct {
	Recipient string `json:"recipient" validate:"required,uuid"`
}

func (s *ConversationServer) ListConversations(w http.ResponseWriter, r *http.Request) {
	chats, err := s.conversations.ListUserChats(r.Context(), claimsFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatListResponse{Chats: chats})
}

func (s *ConversationServer) GetMessagesPage(w http.ResponseWriter, r *http.Request) {
	chatId := mux.Vars(r)["chat_id"]
	if !usecases.ValidateUUID(chatId) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "chat_id must be a valid uuid"})
		return
	}

	page := uint64(1)
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "page must be a positive integer"})
			return
		}
		page = parsed
	}

	messages, err := s.conversations.GetMessagesPage(r.Context(), claimsFromRequest(r), chatId, page)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messagesPageResponse{
		ChatID:   chatId,
		Page:     page,
		Messages: messages,
	})
}

func (s *ConversationServer) ResolveDirectChat(w http.ResponseWriter, r *http.Request) {
	req := resolveDirectChatRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	chat, err := s.conversations.ResolveDirectChat(r.Context(), claimsFromRequest(r), req.Recipient)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (s *ConversationServer) SendMessage(w http.ResponseWriter, r *http.Request) {
	send := models.MessageSend{}
	if err := json.NewDecoder(r.Body).Decode(&send); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	if err := s.validate.Struct(send); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	message, err := s.conversations.SendMessage(r.Context(), claimsFromRequest(r), send)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, message)
}
