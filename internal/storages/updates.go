package storage

import (
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/teachbot/conversation-service/internal/models"
)

// UpdatesStorage publishes conversation domain events for downstream
// consumers. Events are keyed by chat_id so one chat's updates stay ordered
// within a partition.
type UpdatesStorage struct {
	cfg      *UpdatesStoreConfig
	producer sarama.SyncProducer
}

type UpdatesStoreConfig struct {
	UpdatesTopic string
}

type updateEnvelope struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

const (
	UpdateKindChatCreated = "chat_created"
	UpdateKindMessageSent = "message_sent"
)

func NewUpdatesStore(p sarama.SyncProducer, cfg *UpdatesStoreConfig) *UpdatesStorage {
	return &UpdatesStorage{
		producer: p,
		cfg:      cfg,
	}
}

func (s *UpdatesStorage) putUpdate(key, kind string, payload interface{}) error {
	bytes, err := json.Marshal(updateEnvelope{
		Kind:    kind,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("can't encode %s update: %w", kind, err)
	}

	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.cfg.UpdatesTopic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
	})

	return err
}

func (s *UpdatesStorage) ChatCreated(chat *models.ChatCreated) error {
	return s.putUpdate(chat.ChatID, UpdateKindChatCreated, chat)
}

func (s *UpdatesStorage) MessageSent(msg *models.MessageSent) error {
	return s.putUpdate(msg.ChatID, UpdateKindMessageSent, msg)
}
