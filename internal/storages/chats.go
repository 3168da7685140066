package storage

import (
	"context"
	"database/sql"
	"errors"
	"math"

	sq "github.com/Masterminds/squirrel"
	"github.com/teachbot/conversation-service/internal/models"
)

var (
	ErrChatAlreadyExists    = errors.New("chat with provided chat_id already exists")
	ErrChatNotFound         = errors.New("chat with provided chat_id does not exist")
	ErrDirectChatExists     = errors.New("direct chat between these users already exists")
	ErrEmptyMembers         = errors.New("members array can't be empty")
	ErrMessageAlreadyExists = errors.New("message with provided message_id already exists")
	ErrInvalidPage          = errors.New("page numbering starts at 1")
)

const (
	ChatsPrimaryKey             = "chats_pkey"
	ChatsDirectPairKey          = "chats_direct_pair_key"
	ChatMembersChatIdForeignKey = "chat_members_chat_id_fkey"
	MessagesPrimaryKey          = "messages_pkey"
	MessagesChatIdForeignKey    = "messages_chat_id_fkey"
)

type ChatsStorage struct {
	db Scope
}

func NewChatsStorage(db Scope) *ChatsStorage {
	return &ChatsStorage{
		db: db,
	}
}

func (s *ChatsStorage) CreateChat(ctx context.Context, chatId string, initiator, recipient *string) error {
	query, args, err := sq.Insert("chats").
		Columns("chat_id", "initiator_id", "recipient_id").
		Values(chatId, initiator, recipient).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case ChatsPrimaryKey:
		return ErrChatAlreadyExists
	case ChatsDirectPairKey:
		return ErrDirectChatExists
	default:
		return err
	}
}

func (s *ChatsStorage) AddChatMembers(ctx context.Context, chatId string, members []string) error {
	if len(members) == 0 {
		return ErrEmptyMembers
	}

	builder := sq.Insert("chat_members").
		Columns("chat_id", "user_id").
		PlaceholderFormat(sq.Dollar)

	for _, member := range members {
		builder = builder.Values(chatId, member)
	}

	query, args, err := builder.ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	if GetPgxConstraintName(err) == ChatMembersChatIdForeignKey {
		return ErrChatNotFound
	}
	return err
}

// CreateDirectChat persists the chat row and both membership rows. Callers
// must run it inside Registry.Atomic so a reader never observes the chat
// without its members.
func (s *ChatsStorage) CreateDirectChat(ctx context.Context, chatId, initiator, recipient string) (*models.ChatWithMembers, error) {
	err := s.CreateChat(ctx, chatId, &initiator, &recipient)
	if err != nil {
		return nil, err
	}

	err = s.AddChatMembers(ctx, chatId, []string{initiator, recipient})
	if err != nil {
		return nil, err
	}

	return &models.ChatWithMembers{
		Chat: models.Chat{
			ChatID:      chatId,
			InitiatorID: &initiator,
			RecipientID: &recipient,
		},
		Members: []models.ChatMember{
			{UserID: initiator},
			{UserID: recipient},
		},
	}, nil
}

func (s *ChatsStorage) GetChat(ctx context.Context, chatId string) (*models.Chat, error) {
	query, args, err := sq.Select("chat_id", "initiator_id", "recipient_id").
		From("chats").
		Where(sq.Eq{"chat_id": chatId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	chat := models.Chat{}
	err = s.db.GetContext(ctx, &chat, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	} else if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetDirectChat finds the direct chat between two users regardless of which
// of them was recorded as initiator.
func (s *ChatsStorage) GetDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error) {
	query, args, err := sq.Select("chat_id", "initiator_id", "recipient_id").
		From("chats").
		Where(sq.Or{
			sq.Eq{"initiator_id": userA, "recipient_id": userB},
			sq.Eq{"initiator_id": userB, "recipient_id": userA},
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	chat := models.Chat{}
	err = s.db.GetContext(ctx, &chat, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	} else if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *ChatsStorage) GetChatWithMembers(ctx context.Context, chatId string) (*models.ChatWithMembers, error) {
	chat, err := s.GetChat(ctx, chatId)

	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("user_id").
		From("chat_members").
		Where(sq.Eq{"chat_id": chatId}).
		OrderBy("user_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	members := make([]models.ChatMember, 0)
	err = s.db.SelectContext(ctx, &members, query, args...)

	if err != nil {
		return nil, err
	}

	return &models.ChatWithMembers{
		Chat:    *chat,
		Members: members,
	}, nil
}

// GetUserChats returns every chat the user is a member of, each exactly once,
// with members preloaded. Ordered by chat_id so repeated calls with no
// intervening writes return the same sequence.
func (s *ChatsStorage) GetUserChats(ctx context.Context, userId string) ([]models.ChatWithMembers, error) {
	query, args, err := sq.Select("chat_id", "initiator_id", "recipient_id").
		From("chats").
		Where(sq.Expr("chat_id IN (SELECT chat_id FROM chat_members WHERE user_id = ?)", userId)).
		OrderBy("chat_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0)
	err = s.db.SelectContext(ctx, &chats, query, args...)

	if err != nil {
		return nil, err
	}

	if len(chats) == 0 {
		return []models.ChatWithMembers{}, nil
	}

	chatIds := make([]string, len(chats))
	for i, chat := range chats {
		chatIds[i] = chat.ChatID
	}

	query, args, err = sq.Select("chat_id", "user_id").
		From("chat_members").
		Where(sq.Eq{"chat_id": chatIds}).
		OrderBy("chat_id", "user_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	membersByChat := make(map[string][]models.ChatMember, len(chats))
	for rows.Next() {
		var chatId string
		member := models.ChatMember{}
		if err = rows.Scan(&chatId, &member.UserID); err != nil {
			return nil, err
		}
		membersByChat[chatId] = append(membersByChat[chatId], member)
	}

	result := make([]models.ChatWithMembers, len(chats))
	for i, chat := range chats {
		result[i] = models.ChatWithMembers{
			Chat:    chat,
			Members: membersByChat[chat.ChatID],
		}
	}

	return result, nil
}

func (s *ChatsStorage) PutMessage(ctx context.Context, message *models.Message) error {
	query, args, err := sq.Insert("messages").
		Columns("message_id", "chat_id", "from_user", "sent_at", "text").
		Values(message.MessageID, message.ChatID, message.FromUser, message.SentAt, message.Text).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case MessagesChatIdForeignKey:
		return ErrChatNotFound
	case MessagesPrimaryKey:
		return ErrMessageAlreadyExists
	default:
		return err
	}
}

// GetMessagesPage returns the page-th slice of the chat's history, newest
// first. Pages are 1-indexed; a page past the end is an empty slice, not an
// error.
func (s *ChatsStorage) GetMessagesPage(ctx context.Context, chatId string, page, pageSize uint64) ([]models.Message, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}

	// The offset multiplication must not wrap; a page this far past any real
	// history is simply empty.
	if pageSize == 0 || page-1 > math.MaxUint64/pageSize {
		return []models.Message{}, nil
	}

	query, args, err := sq.Select("message_id", "chat_id", "from_user", "sent_at", "text").
		From("messages").
		Where(sq.Eq{"chat_id": chatId}).
		OrderBy("sent_at DESC", "message_id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, pageSize)
	err = s.db.SelectContext(ctx, &messages, query, args...)

	if err != nil {
		return nil, err
	}

	return messages, nil
}
