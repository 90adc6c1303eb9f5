package chat

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines chat message persistence.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, messageID uuid.UUID) (*Message, error)
	// ListRecent returns the most recent messages for a mission, oldest
	// first within the page.
	ListRecent(ctx context.Context, missionID uuid.UUID, limit int) ([]*Message, error)
	MarkDeleted(ctx context.Context, messageID uuid.UUID) error
}
