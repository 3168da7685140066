package usecases

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	storage "github.com/teachbot/conversation-service/internal/storages"
)

func TestChatResolver_CreatesChatWithBothParticipants(t *testing.T) {
	registry := newMemoryRegistry()
	resolver := NewChatResolver(registry)

	chat, err := resolver.Resolve(context.Background(), alice, bob)
	require.NoError(t, err)

	assert.Equal(t, alice, *chat.InitiatorID)
	assert.Equal(t, bob, *chat.RecipientID)
	assert.True(t, chat.HasMember(alice))
	assert.True(t, chat.HasMember(bob))
	assert.Len(t, chat.Members, 2)

	require.Len(t, registry.updates.chatsCreated, 1)
	assert.Equal(t, chat.ChatID, registry.updates.chatsCreated[0].ChatID)
}

func TestChatResolver_Idempotent(t *testing.T) {
	registry := newMemoryRegistry()
	resolver := NewChatResolver(registry)

	first, err := resolver.Resolve(context.Background(), alice, bob)
	require.NoError(t, err)

	second, err := resolver.Resolve(context.Background(), alice, bob)
	require.NoError(t, err)

	assert.Equal(t, first.ChatID, second.ChatID, "no second chat row should be created")
	assert.Len(t, registry.chats.chats, 1)
}

func TestChatResolver_Symmetric(t *testing.T) {
	registry := newMemoryRegistry()
	resolver := NewChatResolver(registry)

	first, err := resolver.Resolve(context.Background(), alice, bob)
	require.NoError(t, err)

	swapped, err := resolver.Resolve(context.Background(), bob, alice)
	require.NoError(t, err)

	assert.Equal(t, first.ChatID, swapped.ChatID)
	assert.Equal(t, alice, *swapped.InitiatorID, "existing roles must not be rewritten")
	assert.Equal(t, bob, *swapped.RecipientID)
}

func TestChatResolver_ConcurrentResolvesCreateOneChat(t *testing.T) {
	registry := newMemoryRegistry()
	resolver := NewChatResolver(registry)

	const workers = 16
	chatIds := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			chat, err := resolver.Resolve(context.Background(), alice, bob)
			if err != nil {
				errs[i] = err
				return
			}
			chatIds[i] = chat.ChatID
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, chatIds[0], chatIds[i], "all resolves must agree on the chat")
	}
	assert.Len(t, registry.chats.chats, 1, "exactly one chat must be persisted")
}

func TestChatResolver_SameUserTwice(t *testing.T) {
	registry := newMemoryRegistry()
	resolver := NewChatResolver(registry)

	_, err := resolver.Resolve(context.Background(), alice, alice)
	assert.ErrorIs(t, err, ErrBusinessLogicViolation)
}

func TestChatResolver_ConflictWithoutWinnerIsFatal(t *testing.T) {
	registry := newMemoryRegistry()
	resolver := NewChatResolver(registry)

	// The store claims the pair exists but the retried lookup finds nothing.
	registry.chats.createErr = storage.ErrDirectChatExists

	_, err := resolver.Resolve(context.Background(), alice, bob)
	assert.ErrorIs(t, err, ErrChatStateCorrupted)
}
