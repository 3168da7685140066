package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/teachbot/conversation-service/internal/models"
	storage "github.com/teachbot/conversation-service/internal/storages"
)

var (
	ErrChatStateCorrupted = errors.New("store reported an existing direct chat that can't be found")
)

// ChatResolver guarantees at most one direct chat per unordered user pair.
// The storage layer backs this with a unique index on the canonicalized
// pair, so two concurrent Resolve calls racing past the lookup can't both
// create a chat: the loser gets a uniqueness violation and re-reads the
// winner's row.
type ChatResolver struct {
	registry storage.Registry
}

func NewChatResolver(r storage.Registry) *ChatResolver {
	return &ChatResolver{
		registry: r,
	}
}

// Resolve finds the direct chat between initiator and recipient, creating it
// if absent. An existing chat is returned unchanged even when the stored
// roles are swapped relative to the arguments.
func (r *ChatResolver) Resolve(ctx context.Context, initiator, recipient string) (*models.ChatWithMembers, error) {
	if initiator == recipient {
		return nil, fmt.Errorf("%w: direct chat requires two distinct users", ErrBusinessLogicViolation)
	}

	store := r.registry.GetChatsStore()

	chat, err := store.GetDirectChat(ctx, initiator, recipient)
	if err == nil {
		return store.GetChatWithMembers(ctx, chat.ChatID)
	}
	if !errors.Is(err, storage.ErrChatNotFound) {
		return nil, err
	}

	created, err := r.create(ctx, initiator, recipient)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, storage.ErrDirectChatExists) {
		return nil, err
	}

	// Lost the creation race; the winner's row must be committed by now.
	chat, err = store.GetDirectChat(ctx, initiator, recipient)
	if errors.Is(err, storage.ErrChatNotFound) {
		return nil, fmt.Errorf("%w: between %s and %s", ErrChatStateCorrupted, initiator, recipient)
	}
	if err != nil {
		return nil, err
	}
	return store.GetChatWithMembers(ctx, chat.ChatID)
}

func (r *ChatResolver) create(ctx context.Context, initiator, recipient string) (*models.ChatWithMembers, error) {
	var created *models.ChatWithMembers

	err := r.registry.Atomic(ctx, func(reg storage.Registry) error {
		chat, err := reg.GetChatsStore().CreateDirectChat(ctx, uuid.NewString(), initiator, recipient)
		if err != nil {
			return err
		}
		created = chat

		members := lo.Map(chat.Members, func(m models.ChatMember, _ int) string {
			return m.UserID
		})
		return reg.GetUpdatesStore().ChatCreated(&models.ChatCreated{
			UpdateMeta: models.UpdateMeta{
				Timestamp: time.Now().UTC(),
				Audience:  members,
			},
			ChatID:  chat.ChatID,
			Members: members,
		})
	})

	if err != nil {
		return nil, err
	}
	return created, nil
}
