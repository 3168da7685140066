package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/teachbot/conversation-service/internal/auth"
	"github.com/teachbot/conversation-service/internal/models"
	storage "github.com/teachbot/conversation-service/internal/storages"
)

var (
	ErrPermissionDenied       = errors.New("user is not authorized to this action")
	ErrAuthenticationRequired = fmt.Errorf("%w: authentication required", ErrPermissionDenied)
	ErrNotAParticipant        = fmt.Errorf("%w: user is not a chat participant", ErrPermissionDenied)
	ErrBusinessLogicViolation = errors.New("business logic violation")
)

// DefaultPageSize applies when configuration does not override it.
const DefaultPageSize = 20

// ConversationsUsecase orchestrates chat listing, message history reads and
// message sending. Every message read goes through the AccessGuard; there is
// no other path to message rows.
type ConversationsUsecase struct {
	registry storage.Registry
	guard    *AccessGuard
	resolver *ChatResolver
	pageSize uint64
}

func NewConversationsUsecase(r storage.Registry, guard *AccessGuard, resolver *ChatResolver, pageSize uint64) *ConversationsUsecase {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return &ConversationsUsecase{
		registry: r,
		guard:    guard,
		resolver: resolver,
		pageSize: pageSize,
	}
}

// ListUserChats returns every chat the user participates in, with member ids
// for display. Order is stable between calls with no intervening writes.
func (u *ConversationsUsecase) ListUserChats(ctx context.Context, claims *auth.UserClaims) ([]models.ChatWithMembers, error) {
	if claims == nil {
		return nil, ErrAuthenticationRequired
	}
	return u.registry.GetChatsStore().GetUserChats(ctx, claims.UserID)
}

// GetMessagesPage returns one page of a chat's history, newest first. A user
// outside the participant set gets ErrNotAParticipant and no information
// about the chat's contents.
func (u *ConversationsUsecase) GetMessagesPage(ctx context.Context, claims *auth.UserClaims, chatId string, page uint64) (messages []models.Message, err error) {
	if claims == nil {
		return nil, ErrAuthenticationRequired
	}

	err = u.registry.Atomic(ctx, func(reg storage.Registry) error {
		store := reg.GetChatsStore()

		chat, err := store.GetChatWithMembers(ctx, chatId)
		if err != nil {
			return err
		}

		if !u.guard.CanAccess(claims.UserID, chat) {
			return ErrNotAParticipant
		}

		messages, err = store.GetMessagesPage(ctx, chatId, page, u.pageSize)
		return err
	})

	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ResolveDirectChat finds or creates the direct chat between the caller and
// the recipient.
func (u *ConversationsUsecase) ResolveDirectChat(ctx context.Context, claims *auth.UserClaims, recipient string) (*models.ChatWithMembers, error) {
	if claims == nil {
		return nil, ErrAuthenticationRequired
	}
	return u.resolver.Resolve(ctx, claims.UserID, recipient)
}

// SendMessage appends a message to a chat the caller may access. When the
// payload names a recipient instead of a chat, the direct chat is resolved
// first, creating it on first contact.
func (u *ConversationsUsecase) SendMessage(ctx context.Context, claims *auth.UserClaims, send models.MessageSend) (*models.Message, error) {
	if claims == nil {
		return nil, ErrAuthenticationRequired
	}

	var chat *models.ChatWithMembers
	var err error

	switch {
	case send.Recipient != nil:
		chat, err = u.resolver.Resolve(ctx, claims.UserID, *send.Recipient)
	case send.ChatID != nil:
		chat, err = u.registry.GetChatsStore().GetChatWithMembers(ctx, *send.ChatID)
	default:
		return nil, fmt.Errorf("%w: either chat_id or recipient must be set", ErrBusinessLogicViolation)
	}

	if err != nil {
		return nil, err
	}

	if !u.guard.CanAccess(claims.UserID, chat) {
		return nil, ErrNotAParticipant
	}

	message := &models.Message{
		MessageID: uuid.NewString(),
		ChatID:    chat.ChatID,
		FromUser:  claims.UserID,
		SentAt:    time.Now().UTC(),
		Text:      send.Text,
	}

	err = u.registry.Atomic(ctx, func(reg storage.Registry) error {
		if err := reg.GetChatsStore().PutMessage(ctx, message); err != nil {
			return err
		}

		audience := lo.Map(chat.Members, func(m models.ChatMember, _ int) string {
			return m.UserID
		})
		return reg.GetUpdatesStore().MessageSent(&models.MessageSent{
			UpdateMeta: models.UpdateMeta{
				Timestamp: message.SentAt,
				Audience:  audience,
			},
			MessageID: message.MessageID,
			ChatID:    message.ChatID,
			FromUser:  message.FromUser,
			Text:      message.Text,
		})
	})

	if err != nil {
		return nil, err
	}
	return message, nil
}
