package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the kind of a chat message.
type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeStatus MessageType = "STATUS"
	MessageTypeSystem MessageType = "SYSTEM"
)

var (
	ErrNotFound      = errors.New("chat message not found")
	ErrForbidden     = errors.New("actor not permitted for this chat action")
	ErrEmptyContent  = errors.New("message content is empty")
	ErrNotDeletable  = errors.New("status and system messages cannot be deleted")
	ErrMissionClosed = errors.New("mission chat is closed")
)

// Message is one exchange unit in a mission's conversation. Sender is nil for
// system and status messages.
type Message struct {
	ID        int64       `json:"id"`
	MessageID uuid.UUID   `json:"messageId"`
	MissionID uuid.UUID   `json:"missionId"`
	SenderID  *uuid.UUID  `json:"senderId,omitempty"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Status    string      `json:"status,omitempty"`
	Deleted   bool        `json:"deleted,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewText creates a participant text message.
func NewText(missionID, senderID uuid.UUID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	return &Message{
		MessageID: uuid.New(),
		MissionID: missionID,
		SenderID:  &senderID,
		Content:   content,
		Type:      MessageTypeText,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewStatus creates a system-generated status message for a committed
// transition.
func NewStatus(missionID uuid.UUID, status, content string) *Message {
	return &Message{
		MessageID: uuid.New(),
		MissionID: missionID,
		Content:   content,
		Type:      MessageTypeStatus,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

// CanDelete reports whether the user may delete the message. Only the
// original sender may delete a text message.
func (m *Message) CanDelete(userID uuid.UUID) error {
	if m.Type != MessageTypeText {
		return ErrNotDeletable
	}
	if m.SenderID == nil || *m.SenderID != userID {
		return ErrForbidden
	}
	return nil
}
