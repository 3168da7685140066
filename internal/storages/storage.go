package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/jmoiron/sqlx"
	"github.com/teachbot/conversation-service/internal/models"
)

type AtomicFunc func(Registry) error

// ChatsStore is the persistence surface of the conversation core.
type ChatsStore interface {
	CreateChat(ctx context.Context, chatId string, initiator, recipient *string) error
	AddChatMembers(ctx context.Context, chatId string, members []string) error
	CreateDirectChat(ctx context.Context, chatId, initiator, recipient string) (*models.ChatWithMembers, error)
	GetChat(ctx context.Context, chatId string) (*models.Chat, error)
	GetDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error)
	GetChatWithMembers(ctx context.Context, chatId string) (*models.ChatWithMembers, error)
	GetUserChats(ctx context.Context, userId string) ([]models.ChatWithMembers, error)
	PutMessage(ctx context.Context, message *models.Message) error
	GetMessagesPage(ctx context.Context, chatId string, page, pageSize uint64) ([]models.Message, error)
}

type UpdatesStore interface {
	ChatCreated(chat *models.ChatCreated) error
	MessageSent(msg *models.MessageSent) error
}

// Registry hands out stores bound to the current scope. Inside Atomic the
// scope is a single transaction, so a chat row and its member rows are either
// all visible or none of them are.
type Registry interface {
	Atomic(ctx context.Context, fn AtomicFunc) error
	GetChatsStore() ChatsStore
	GetUpdatesStore() UpdatesStore
}

type DefaultRegistry struct {
	db       *sqlx.DB
	scope    Scope
	producer sarama.SyncProducer
	cfg      *UpdatesStoreConfig
}

type Scope interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	sqlx.Execer
	sqlx.Queryer
	Get(dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
}

func NewRegistry(db *sqlx.DB, p sarama.SyncProducer, cfg *UpdatesStoreConfig) *DefaultRegistry {
	return &DefaultRegistry{
		db:       db,
		scope:    db,
		producer: p,
		cfg:      cfg,
	}
}

func (r *DefaultRegistry) Atomic(ctx context.Context, fn AtomicFunc) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("rollback caused by error: \"%v\" failed: %v", err, rbErr)
			}
		} else {
			err = tx.Commit()
		}
	}()

	scoped := DefaultRegistry{
		db:       r.db,
		scope:    tx,
		producer: r.producer,
		cfg:      r.cfg,
	}
	err = fn(&scoped)
	return err
}

func (r *DefaultRegistry) GetChatsStore() ChatsStore {
	return NewChatsStorage(r.scope)
}

func (r *DefaultRegistry) GetUpdatesStore() UpdatesStore {
	return NewUpdatesStore(r.producer, r.cfg)
}
