package mission

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents mission status.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusDisputed   Status = "DISPUTED"
)

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Priority represents mission priority.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Location is a geographic point with a display address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// Mission represents an errand posted by a client and fulfilled by an assistant.
type Mission struct {
	ID                 int64      `json:"id"`
	MissionID          uuid.UUID  `json:"missionId"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Pickup             Location   `json:"pickup"`
	Drop               *Location  `json:"drop,omitempty"`
	WindowStart        time.Time  `json:"windowStart"`
	WindowEnd          time.Time  `json:"windowEnd"`
	PriceEstimate      int64      `json:"priceEstimate"`
	CashAdvance        int64      `json:"cashAdvance"`
	FinalPrice         *int64     `json:"finalPrice,omitempty"`
	CommissionAmount   *int64     `json:"commissionAmount,omitempty"`
	Currency           string     `json:"currency"`
	Status             Status     `json:"status"`
	Priority           Priority   `json:"priority"`
	ClientID           uuid.UUID  `json:"clientId"`
	AssistantID        *uuid.UUID `json:"assistantId,omitempty"`
	AcceptedAt         *time.Time `json:"acceptedAt,omitempty"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	DisputedAt         *time.Time `json:"disputedAt,omitempty"`
	CancellationReason *string    `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// CanTransitionTo validates a mission status transition.
func (m *Mission) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:    {StatusAccepted, StatusCancelled},
		StatusAccepted:   {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusCancelled, StatusDisputed},
		StatusDisputed:   {StatusCompleted, StatusCancelled},
		StatusCompleted:  {},
		StatusCancelled:  {},
	}
	allowed := transitions[m.Status]
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsParticipant reports whether the user is the mission's client or assistant.
func (m *Mission) IsParticipant(userID uuid.UUID) bool {
	if m.ClientID == userID {
		return true
	}
	return m.AssistantID != nil && *m.AssistantID == userID
}

// Accept assigns the assistant and moves the mission to ACCEPTED. The
// assignment check runs first so a lost accept race reports the conflict,
// not a generic transition error.
func (m *Mission) Accept(assistantID uuid.UUID, now time.Time) error {
	if m.AssistantID != nil {
		return ErrAlreadyAssigned
	}
	if !m.CanTransitionTo(StatusAccepted) {
		return ErrInvalidTransition
	}
	if assistantID == m.ClientID {
		return ErrForbidden
	}
	m.Status = StatusAccepted
	m.AssistantID = &assistantID
	m.AcceptedAt = &now
	return nil
}

// Start moves the mission to IN_PROGRESS. Only the assigned assistant may start.
func (m *Mission) Start(actorID uuid.UUID, now time.Time) error {
	if m.AssistantID == nil || *m.AssistantID != actorID {
		return ErrForbidden
	}
	if !m.CanTransitionTo(StatusInProgress) {
		return ErrInvalidTransition
	}
	m.Status = StatusInProgress
	m.StartedAt = &now
	return nil
}

// Complete moves the mission to COMPLETED and fixes the final price.
func (m *Mission) Complete(actorID uuid.UUID, finalPrice *int64, commission int64, now time.Time) error {
	if !m.IsParticipant(actorID) {
		return ErrForbidden
	}
	if !m.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	price := m.PriceEstimate
	if finalPrice != nil {
		price = *finalPrice
	}
	m.Status = StatusCompleted
	m.FinalPrice = &price
	m.CommissionAmount = &commission
	m.CompletedAt = &now
	return nil
}

// Cancel moves the mission to CANCELLED with a reason.
func (m *Mission) Cancel(actorID uuid.UUID, reason string, now time.Time) error {
	if !m.IsParticipant(actorID) {
		return ErrForbidden
	}
	if !m.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}
	m.Status = StatusCancelled
	m.CancelledAt = &now
	if reason != "" {
		m.CancellationReason = &reason
	}
	return nil
}

// Dispute moves the mission to DISPUTED.
func (m *Mission) Dispute(actorID uuid.UUID, now time.Time) error {
	if !m.IsParticipant(actorID) {
		return ErrForbidden
	}
	if !m.CanTransitionTo(StatusDisputed) {
		return ErrInvalidTransition
	}
	m.Status = StatusDisputed
	m.DisputedAt = &now
	return nil
}

// EscrowAmount is the amount held on acceptance: estimate plus cash advance.
func (m *Mission) EscrowAmount() int64 {
	return m.PriceEstimate + m.CashAdvance
}

// ValidatePriority checks a priority value.
func ValidatePriority(p Priority) error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return nil
	default:
		return ErrValidation
	}
}

// ValidateNew checks the fields of a mission before creation.
func ValidateNew(m *Mission) error {
	if strings.TrimSpace(m.Title) == "" {
		return ErrValidation
	}
	if !m.WindowEnd.After(m.WindowStart) {
		return ErrValidation
	}
	if m.PriceEstimate < 0 || m.CashAdvance < 0 {
		return ErrValidation
	}
	if m.Currency == "" {
		return ErrValidation
	}
	if err := ValidatePriority(m.Priority); err != nil {
		return err
	}
	return nil
}
