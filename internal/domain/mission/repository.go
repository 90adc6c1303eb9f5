package mission

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines mission persistence.
type Repository interface {
	Create(ctx context.Context, m *Mission, creation *StatusHistory) error
	GetByID(ctx context.Context, missionID uuid.UUID) (*Mission, error)
	List(ctx context.Context, status *Status, limit, offset int) ([]*Mission, error)
	// ApplyTransition persists the mission update and the history row in one
	// transaction. The mission row is updated with an optimistic predicate on
	// expectedStatus; if no row matches, ErrConflict is returned and nothing
	// is written.
	ApplyTransition(ctx context.Context, m *Mission, expectedStatus Status, entry *StatusHistory) error
}

// HistoryRepository defines read access to the status audit trail. Appends
// happen only through Repository.ApplyTransition.
type HistoryRepository interface {
	ListByMission(ctx context.Context, missionID uuid.UUID) ([]*StatusHistory, error)
}
