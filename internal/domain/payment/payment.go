package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type represents a money-movement kind.
type Type string

const (
	TypeEscrow     Type = "ESCROW"
	TypeRelease    Type = "RELEASE"
	TypeRefund     Type = "REFUND"
	TypeCommission Type = "COMMISSION"
)

// Status represents payment status.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// IsTerminal reports whether the payment can still move.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

var (
	ErrNotFound          = errors.New("payment not found")
	ErrInvalidTransition = errors.New("invalid payment status transition")
	ErrDuplicate         = errors.New("payment already exists for mission and type")
)

// Metadata carries gateway and reconciliation details for a payment.
type Metadata struct {
	GatewayFee     int64  `json:"gatewayFee,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`
	NeedsReconcile bool   `json:"needsReconcile,omitempty"`
	Retries        int    `json:"retries,omitempty"`
}

// Payment is one immutable money-movement record tied to a mission. Amounts
// are never edited after creation; corrections are new rows.
type Payment struct {
	ID               int64      `json:"id"`
	PaymentID        uuid.UUID  `json:"paymentId"`
	MissionID        uuid.UUID  `json:"missionId"`
	PayerID          uuid.UUID  `json:"payerId"`
	PayeeID          *uuid.UUID `json:"payeeId,omitempty"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Type             Type       `json:"type"`
	Status           Status     `json:"status"`
	ExternalRef      *string    `json:"externalRef,omitempty"`
	RelatedPaymentID *uuid.UUID `json:"relatedPaymentId,omitempty"`
	Metadata         Metadata   `json:"metadata"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// New creates a pending payment record.
func New(missionID, payerID uuid.UUID, payeeID *uuid.UUID, amount int64, currency string, typ Type) *Payment {
	now := time.Now().UTC()
	return &Payment{
		PaymentID: uuid.New(),
		MissionID: missionID,
		PayerID:   payerID,
		PayeeID:   payeeID,
		Amount:    amount,
		Currency:  currency,
		Type:      typ,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanTransitionTo validates a payment status transition.
func (p *Payment) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusFailed, StatusCancelled},
		StatusProcessing: {StatusCompleted, StatusFailed, StatusRefunded},
		StatusCompleted:  {StatusRefunded},
		StatusFailed:     {},
		StatusCancelled:  {},
		StatusRefunded:   {},
	}
	allowed := transitions[p.Status]
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// Transition applies a status change.
func (p *Payment) Transition(target Status) error {
	if !p.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	p.Status = target
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed flags the payment for manual reconciliation with a reason.
func (p *Payment) MarkFailed(reason string) error {
	if err := p.Transition(StatusFailed); err != nil {
		return err
	}
	p.Metadata.FailureReason = reason
	p.Metadata.NeedsReconcile = true
	return nil
}
