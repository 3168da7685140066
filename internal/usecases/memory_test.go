package usecases

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/teachbot/conversation-service/internal/models"
	storage "github.com/teachbot/conversation-service/internal/storages"
)

// memoryRegistry backs usecase tests with an in-memory ChatsStore that
// enforces the same invariants as the postgres schema: unique chat ids and
// at most one direct chat per unordered user pair.
type memoryRegistry struct {
	chats   *memoryChats
	updates *updatesRecorder
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{
		chats: &memoryChats{
			chats:   map[string]models.Chat{},
			pairs:   map[string]string{},
			members: map[string][]string{},
		},
		updates: &updatesRecorder{},
	}
}

func (r *memoryRegistry) Atomic(ctx context.Context, fn storage.AtomicFunc) error {
	return fn(r)
}

func (r *memoryRegistry) GetChatsStore() storage.ChatsStore {
	return r.chats
}

func (r *memoryRegistry) GetUpdatesStore() storage.UpdatesStore {
	return r.updates
}

type memoryChats struct {
	mu       sync.Mutex
	chats    map[string]models.Chat
	pairs    map[string]string // canonical pair -> chat_id
	members  map[string][]string
	messages []models.Message

	createErr error // injected failure for CreateChat
}

func pairKey(a, b string) string {
	if a < b {
		return a + "/" + b
	}
	return b + "/" + a
}

func (m *memoryChats) CreateChat(_ context.Context, chatId string, initiator, recipient *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}

	if _, ok := m.chats[chatId]; ok {
		return storage.ErrChatAlreadyExists
	}

	if initiator != nil && recipient != nil {
		key := pairKey(*initiator, *recipient)
		if _, ok := m.pairs[key]; ok {
			return storage.ErrDirectChatExists
		}
		m.pairs[key] = chatId
	}

	m.chats[chatId] = models.Chat{
		ChatID:      chatId,
		InitiatorID: initiator,
		RecipientID: recipient,
	}
	return nil
}

func (m *memoryChats) AddChatMembers(_ context.Context, chatId string, members []string) error {
	if len(members) == 0 {
		return storage.ErrEmptyMembers
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[chatId]; !ok {
		return storage.ErrChatNotFound
	}

	for _, member := range members {
		found := false
		for _, existing := range m.members[chatId] {
			if existing == member {
				found = true
				break
			}
		}
		if !found {
			m.members[chatId] = append(m.members[chatId], member)
		}
	}
	return nil
}

func (m *memoryChats) CreateDirectChat(ctx context.Context, chatId, initiator, recipient string) (*models.ChatWithMembers, error) {
	if err := m.CreateChat(ctx, chatId, &initiator, &recipient); err != nil {
		return nil, err
	}
	if err := m.AddChatMembers(ctx, chatId, []string{initiator, recipient}); err != nil {
		return nil, err
	}
	return m.GetChatWithMembers(ctx, chatId)
}

func (m *memoryChats) GetChat(_ context.Context, chatId string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatId]
	if !ok {
		return nil, storage.ErrChatNotFound
	}
	return &chat, nil
}

func (m *memoryChats) GetDirectChat(_ context.Context, userA, userB string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chatId, ok := m.pairs[pairKey(userA, userB)]
	if !ok {
		return nil, storage.ErrChatNotFound
	}
	chat := m.chats[chatId]
	return &chat, nil
}

func (m *memoryChats) GetChatWithMembers(ctx context.Context, chatId string) (*models.ChatWithMembers, error) {
	chat, err := m.GetChat(ctx, chatId)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	memberIds := append([]string(nil), m.members[chatId]...)
	sort.Strings(memberIds)

	members := make([]models.ChatMember, len(memberIds))
	for i, id := range memberIds {
		members[i] = models.ChatMember{UserID: id}
	}

	return &models.ChatWithMembers{
		Chat:    *chat,
		Members: members,
	}, nil
}

func (m *memoryChats) GetUserChats(ctx context.Context, userId string) ([]models.ChatWithMembers, error) {
	m.mu.Lock()
	chatIds := make([]string, 0)
	for chatId, members := range m.members {
		for _, member := range members {
			if member == userId {
				chatIds = append(chatIds, chatId)
				break
			}
		}
	}
	m.mu.Unlock()

	sort.Strings(chatIds)

	chats := make([]models.ChatWithMembers, 0, len(chatIds))
	for _, chatId := range chatIds {
		chat, err := m.GetChatWithMembers(ctx, chatId)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, nil
}

func (m *memoryChats) PutMessage(_ context.Context, message *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[message.ChatID]; !ok {
		return storage.ErrChatNotFound
	}
	for _, existing := range m.messages {
		if existing.MessageID == message.MessageID {
			return storage.ErrMessageAlreadyExists
		}
	}
	m.messages = append(m.messages, *message)
	return nil
}

func (m *memoryChats) GetMessagesPage(_ context.Context, chatId string, page, pageSize uint64) ([]models.Message, error) {
	if page < 1 {
		return nil, storage.ErrInvalidPage
	}
	if pageSize == 0 || page-1 > math.MaxUint64/pageSize {
		return []models.Message{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]models.Message, 0)
	for _, msg := range m.messages {
		if msg.ChatID == chatId {
			history = append(history, msg)
		}
	}

	sort.Slice(history, func(i, j int) bool {
		if !history[i].SentAt.Equal(history[j].SentAt) {
			return history[i].SentAt.After(history[j].SentAt)
		}
		return history[i].MessageID > history[j].MessageID
	})

	offset := (page - 1) * pageSize
	if offset >= uint64(len(history)) {
		return []models.Message{}, nil
	}
	end := offset + pageSize
	if end > uint64(len(history)) {
		end = uint64(len(history))
	}
	return history[offset:end], nil
}

type updatesRecorder struct {
	mu           sync.Mutex
	chatsCreated []models.ChatCreated
	messagesSent []models.MessageSent
}

func (r *updatesRecorder) ChatCreated(chat *models.ChatCreated) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatsCreated = append(r.chatsCreated, *chat)
	return nil
}

func (r *updatesRecorder) MessageSent(msg *models.MessageSent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messagesSent = append(r.messagesSent, *msg)
	return nil
}
