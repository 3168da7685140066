package models

import "time"

type Message struct {
	MessageID string    `json:"message_id" db:"message_id"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	FromUser  string    `json:"from_user" db:"from_user"`
	SentAt    time.Time `json:"sent_at" db:"sent_at"`
	Text      string    `json:"text" db:"text"`
}

// MessageSend is the inbound payload for sending a message. Exactly one of
// ChatID and Recipient must be set: a recipient means the direct chat is
// resolved (and created if missing) before the message is stored.
type MessageSend struct {
	ChatID    *string `json:"chat_id" validate:"omitempty,uuid"`
	Recipient *string `json:"recipient" validate:"required_without=ChatID,omitempty,uuid"`
	Text      string  `json:"text" validate:"required"`
}
