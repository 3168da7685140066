package models

type Chat struct {
	ChatID      string  `json:"chat_id" db:"chat_id"`
	InitiatorID *string `json:"initiator_id" db:"initiator_id"`
	RecipientID *string `json:"recipient_id" db:"recipient_id"`
}

// IsDirect reports whether the chat is a 1:1 conversation. The public
// broadcast chat carries no initiator or recipient.
func (c *Chat) IsDirect() bool {
	return c.InitiatorID != nil && c.RecipientID != nil
}

type ChatMember struct {
	UserID string `json:"user_id" db:"user_id"`
}

type ChatWithMembers struct {
	Chat
	Members []ChatMember `json:"members"`
}

func (c *ChatWithMembers) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
