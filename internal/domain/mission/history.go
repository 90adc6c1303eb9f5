package mission

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActorRole identifies who performed a transition.
type ActorRole string

const (
	ActorRoleClient    ActorRole = "CLIENT"
	ActorRoleAssistant ActorRole = "ASSISTANT"
	ActorRoleAdmin     ActorRole = "ADMIN"
	ActorRoleSystem    ActorRole = "SYSTEM"
)

// MetadataKind discriminates the history metadata union.
type MetadataKind string

const (
	MetadataKindTransition MetadataKind = "TRANSITION"
	MetadataKindDispute    MetadataKind = "DISPUTE"
)

// DisputeOutcome is the terminal status a dispute resolves to.
type DisputeOutcome string

const (
	DisputeOutcomeCompleted DisputeOutcome = "COMPLETED"
	DisputeOutcomeCancelled DisputeOutcome = "CANCELLED"
)

var ErrInvalidMetadata = errors.New("invalid history metadata")

// TransitionMetadata describes an ordinary status transition.
type TransitionMetadata struct {
	ActorRole  ActorRole `json:"actorRole"`
	ReasonCode string    `json:"reasonCode,omitempty"`
	Geo        *Location `json:"geo,omitempty"`
}

// DisputeMetadata describes a dispute open or resolution.
type DisputeMetadata struct {
	ActorRole ActorRole       `json:"actorRole"`
	Outcome   *DisputeOutcome `json:"outcome,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// HistoryMetadata is a closed tagged union; exactly the variant named by Kind
// must be set.
type HistoryMetadata struct {
	Kind       MetadataKind        `json:"kind"`
	Transition *TransitionMetadata `json:"transition,omitempty"`
	Dispute    *DisputeMetadata    `json:"dispute,omitempty"`
}

// Validate enforces the union shape at the boundary.
func (m *HistoryMetadata) Validate() error {
	switch m.Kind {
	case MetadataKindTransition:
		if m.Transition == nil || m.Dispute != nil {
			return ErrInvalidMetadata
		}
		return validateActorRole(m.Transition.ActorRole)
	case MetadataKindDispute:
		if m.Dispute == nil || m.Transition != nil {
			return ErrInvalidMetadata
		}
		if m.Dispute.Outcome != nil {
			switch *m.Dispute.Outcome {
			case DisputeOutcomeCompleted, DisputeOutcomeCancelled:
			default:
				return ErrInvalidMetadata
			}
		}
		return validateActorRole(m.Dispute.ActorRole)
	default:
		return ErrInvalidMetadata
	}
}

func validateActorRole(r ActorRole) error {
	switch r {
	case ActorRoleClient, ActorRoleAssistant, ActorRoleAdmin, ActorRoleSystem:
		return nil
	default:
		return ErrInvalidMetadata
	}
}

// StatusHistory is one immutable audit row per transition.
type StatusHistory struct {
	ID        int64           `json:"id"`
	EntryID   uuid.UUID       `json:"entryId"`
	MissionID uuid.UUID       `json:"missionId"`
	Status    Status          `json:"status"`
	Actor     *uuid.UUID      `json:"actor,omitempty"`
	Comment   string          `json:"comment,omitempty"`
	Metadata  HistoryMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewHistoryEntry builds a history row for a committed transition.
func NewHistoryEntry(missionID uuid.UUID, status Status, actor *uuid.UUID, comment string, metadata HistoryMetadata) (*StatusHistory, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	return &StatusHistory{
		EntryID:   uuid.New(),
		MissionID: missionID,
		Status:    status,
		Actor:     actor,
		Comment:   comment,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}, nil
}
