package models

import "time"

// UpdateMeta is attached to every event published on the updates topic.
// Audience lists the user ids the event is relevant to, so downstream
// consumers (notifications, unread counters) can route without re-reading
// chat membership.
type UpdateMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Audience  []string  `json:"audience"`
}

type ChatCreated struct {
	UpdateMeta
	ChatID  string   `json:"chat_id" validate:"required,uuid"`
	Members []string `json:"members" validate:"required,min=2"`
}

type MessageSent struct {
	UpdateMeta
	MessageID string `json:"message_id" validate:"required,uuid"`
	ChatID    string `json:"chat_id" validate:"required,uuid"`
	FromUser  string `json:"from_user" validate:"required,uuid"`
	Text      string `json:"text" validate:"required"`
}
