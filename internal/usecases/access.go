package usecases

import (
	"github.com/teachbot/conversation-service/internal/models"
)

// AccessGuard is the single authorization predicate in front of message
// reads. It is pure: no storage access, no errors.
type AccessGuard struct {
	publicChatID string
}

// NewAccessGuard configures the guard with the designated public chat id.
// An empty id means no chat gets the public exemption.
func NewAccessGuard(publicChatID string) *AccessGuard {
	return &AccessGuard{
		publicChatID: publicChatID,
	}
}

// CanAccess reports whether the user may read the chat's messages. The
// public chat is readable by everyone; any other chat requires membership.
func (g *AccessGuard) CanAccess(userID string, chat *models.ChatWithMembers) bool {
	if chat == nil {
		return false
	}
	if g.publicChatID != "" && chat.ChatID == g.publicChatID {
		return true
	}
	return chat.HasMember(userID)
}
