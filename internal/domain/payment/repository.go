package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines payment persistence.
type Repository interface {
	// Create inserts a payment row. A second insert for the same
	// (missionID, type) returns ErrDuplicate, which is how escrow side
	// effects stay idempotent across replays.
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, paymentID uuid.UUID) (*Payment, error)
	GetByMissionAndType(ctx context.Context, missionID uuid.UUID, typ Type) (*Payment, error)
	// GetActiveEscrow returns the non-terminal ESCROW payment for a mission,
	// or nil when none exists.
	GetActiveEscrow(ctx context.Context, missionID uuid.UUID) (*Payment, error)
	ListByMission(ctx context.Context, missionID uuid.UUID) ([]*Payment, error)
	Update(ctx context.Context, p *Payment) error
	GetByExternalRef(ctx context.Context, externalRef string) (*Payment, error)
	ListNeedingReconciliation(ctx context.Context, limit int) ([]*Payment, error)
}
