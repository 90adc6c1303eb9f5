package mission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appChat "github.com/missionhub/missionhub/internal/application/chat"
	"github.com/missionhub/missionhub/internal/application/escrow"
	"github.com/missionhub/missionhub/internal/domain/mission"
	"github.com/missionhub/missionhub/internal/domain/user"
)

// CreateInput carries the client-supplied fields of a new mission.
type CreateInput struct {
	Title         string
	Description   string
	Pickup        mission.Location
	Drop          *mission.Location
	WindowStart   time.Time
	WindowEnd     time.Time
	PriceEstimate int64
	CashAdvance   int64
	Currency      string
	Priority      mission.Priority
}

// Service is the mission state machine. Every mutating operation holds the
// mission-scoped lock across read, validation, and the atomic
// mission+history write; escrow and fan-out side effects run only after the
// transition is committed and never roll it back.
type Service struct {
	repo              mission.Repository
	historyRepo       mission.HistoryRepository
	userRepo          user.Repository
	escrow            *escrow.Coordinator
	chatSvc           *appChat.Service
	commissionRateBps int64
	locks             missionLocks
	logger            zerolog.Logger
}

func NewService(
	repo mission.Repository,
	historyRepo mission.HistoryRepository,
	userRepo user.Repository,
	escrowSvc *escrow.Coordinator,
	chatSvc *appChat.Service,
	commissionRateBps int64,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:              repo,
		historyRepo:       historyRepo,
		userRepo:          userRepo,
		escrow:            escrowSvc,
		chatSvc:           chatSvc,
		commissionRateBps: commissionRateBps,
		logger:            logger.With().Str("service", "mission").Logger(),
	}
}

// Create posts a new mission in PENDING status, writing the creation history
// row in the same transaction.
func (s *Service) Create(ctx context.Context, clientID uuid.UUID, input CreateInput) (*mission.Mission, error) {
	now := time.Now().UTC()
	priority := input.Priority
	if priority == "" {
		priority = mission.PriorityMedium
	}
	m := &mission.Mission{
		MissionID:     uuid.New(),
		Title:         input.Title,
		Description:   input.Description,
		Pickup:        input.Pickup,
		Drop:          input.Drop,
		WindowStart:   input.WindowStart,
		WindowEnd:     input.WindowEnd,
		PriceEstimate: input.PriceEstimate,
		CashAdvance:   input.CashAdvance,
		Currency:      input.Currency,
		Status:        mission.StatusPending,
		Priority:      priority,
		ClientID:      clientID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := mission.ValidateNew(m); err != nil {
		return nil, err
	}

	actor := clientID
	entry, err := mission.NewHistoryEntry(m.MissionID, mission.StatusPending, &actor, "mission created", mission.HistoryMetadata{
		Kind:       mission.MetadataKindTransition,
		Transition: &mission.TransitionMetadata{ActorRole: mission.ActorRoleClient},
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, m, entry); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("missionId", m.MissionID.String()).
		Str("clientId", clientID.String()).
		Msg("mission created")
	return m, nil
}

// Get retrieves a mission.
func (s *Service) Get(ctx context.Context, missionID uuid.UUID) (*mission.Mission, error) {
	m, err := s.repo.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, mission.ErrNotFound
	}
	return m, nil
}

// List lists missions, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *mission.Status, limit, offset int) ([]*mission.Mission, error) {
	return s.repo.List(ctx, status, limit, offset)
}

// History returns the ordered transition log, oldest first.
func (s *Service) History(ctx context.Context, missionID uuid.UUID) ([]*mission.StatusHistory, error) {
	if _, err := s.Get(ctx, missionID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByMission(ctx, missionID)
}

// Accept assigns an assistant to a pending mission and signals escrow. The
// mission lock covers only the committed transition; the escrow gateway call
// runs after release so an outage never stalls other transitions on the
// mission.
func (s *Service) Accept(ctx context.Context, missionID, assistantID uuid.UUID) (*mission.Mission, error) {
	m, err := s.acceptLocked(ctx, missionID, assistantID)
	if err != nil {
		return nil, err
	}

	if err := s.escrow.OnAccepted(ctx, m); err != nil {
		s.logger.Error().Err(err).
			Str("missionId", missionID.String()).
			Msg("escrow hold signal failed, pending reconciliation")
	}
	s.chatSvc.BroadcastStatusChange(ctx, m, &assistantID)
	return m, nil
}

func (s *Service) acceptLocked(ctx context.Context, missionID, assistantID uuid.UUID) (*mission.Mission, error) {
	mu := s.locks.lock(missionID)
	defer mu.Unlock()

	m, err := s.Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	expected := m.Status
	if err := m.Accept(assistantID, time.Now().UTC()); err != nil {
		return nil, err
	}

	entry, err := mission.NewHistoryEntry(missionID, m.Status, &assistantID, "mission accepted", mission.HistoryMetadata{
		Kind:       mission.MetadataKindTransition,
		Transition: &mission.TransitionMetadata{ActorRole: mission.ActorRoleAssistant},
	})
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, m, expected, entry); err != nil {
		return nil, err
	}
	return m, nil
}

// Start moves an accepted mission to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, missionID, actorID uuid.UUID) (*mission.Mission, error) {
	m, err := s.startLocked(ctx, missionID, actorID)
	if err != nil {
		return nil, err
	}
	s.chatSvc.BroadcastStatusChange(ctx, m, &actorID)
	return m, nil
}

func (s *Service) startLocked(ctx context.Context, missionID, actorID uuid.UUID) (*mission.Mission, error) {
	mu := s.locks.lock(missionID)
	defer mu.Unlock()

	m, err := s.Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	expected := m.Status
	if err := m.Start(actorID, time.Now().UTC()); err != nil {
		return nil, err
	}

	entry, err := mission.NewHistoryEntry(missionID, m.Status, &actorID, "mission started", mission.HistoryMetadata{
		Kind:       mission.MetadataKindTransition,
		Transition: &mission.TransitionMetadata{ActorRole: mission.ActorRoleAssistant},
	})
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, m, expected, entry); err != nil {
		return nil, err
	}
	return m, nil
}

// Complete finishes an in-progress mission, fixes the final price and
// commission, and signals escrow release.
func (s *Service) Complete(ctx context.Context, missionID, actorID uuid.UUID, finalPrice *int64) (*mission.Mission, error) {
	m, err := s.completeLocked(ctx, missionID, actorID, finalPrice)
	if err != nil {
		return nil, err
	}

	if err := s.escrow.OnCompleted(ctx, m); err != nil {
		s.logger.Error().Err(err).
			Str("missionId", missionID.String()).
			Msg("escrow release signal failed, pending reconciliation")
	}
	s.chatSvc.BroadcastStatusChange(ctx, m, &actorID)
	return m, nil
}

func (s *Service) completeLocked(ctx context.Context, missionID, actorID uuid.UUID, finalPrice *int64) (*mission.Mission, error) {
	mu := s.locks.lock(missionID)
	defer mu.Unlock()

	m, err := s.Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	// Disputed missions complete only through ResolveDispute.
	if m.Status == mission.StatusDisputed {
		return nil, mission.ErrInvalidTransition
	}
	expected := m.Status
	price := m.PriceEstimate
	if finalPrice != nil {
		price = *finalPrice
	}
	if err := m.Complete(actorID, finalPrice, s.commission(price), time.Now().UTC()); err != nil {
		return nil, err
	}

	entry, err := mission.NewHistoryEntry(missionID, m.Status, &actorID, "mission completed", mission.HistoryMetadata{
		Kind:       mission.MetadataKindTransition,
		Transition: &mission.TransitionMetadata{ActorRole: s.actorRole(m, actorID)},
	})
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, m, expected, entry); err != nil {
		return nil, err
	}
	return m, nil
}

// Cancel cancels a non-terminal mission and signals escrow refund.
func (s *Service) Cancel(ctx context.Context, missionID, actorID uuid.UUID, reason string) (*mission.Mission, error) {
	m, err := s.cancelLocked(ctx, missionID, actorID, reason)
	if err != nil {
		return nil, err
	}

	if err := s.escrow.OnCancelled(ctx, m); err != nil {
		s.logger.Error().Err(err).
			Str("missionId", missionID.String()).
			Msg("escrow refund signal failed, pending reconciliation")
	}
	s.chatSvc.BroadcastStatusChange(ctx, m, &actorID)
	return m, nil
}

func (s *Service) cancelLocked(ctx context.Context, missionID, actorID uuid.UUID, reason string) (*mission.Mission, error) {
	mu := s.locks.lock(missionID)
	defer mu.Unlock()

	m, err := s.Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	expected := m.Status
	if err := m.Cancel(actorID, reason, time.Now().UTC()); err != nil {
		return nil, err
	}

	entry, err := mission.NewHistoryEntry(missionID, m.Status, &actorID, reason, mission.HistoryMetadata{
		Kind: mission.MetadataKindTransition,
		Transition: &mission.TransitionMetadata{
			ActorRole:  s.actorRole(m, actorID),
			ReasonCode: "CANCELLED_BY_" + string(s.actorRole(m, actorID)),
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, m, expected, entry); err != nil {
		return nil, err
	}
	return m, nil
}

// Dispute moves an in-progress mission to DISPUTED.
func (s *Service) Dispute(ctx context.Context, missionID, actorID uuid.UUID, reason string) (*mission.Mission, error) {
	m, err := s.disputeLocked(ctx, missionID, actorID, reason)
	if err != nil {
		return nil, err
	}
	s.chatSvc.BroadcastStatusChange(ctx, m, &actorID)
	return m, nil
}

func (s *Service) disputeLocked(ctx context.Context, missionID, actorID uuid.UUID, reason string) (*mission.Mission, error) {
	mu := s.locks.lock(missionID)
	defer mu.Unlock()

	m, err := s.Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	expected := m.Status
	if err := m.Dispute(actorID, time.Now().UTC()); err != nil {
		return nil, err
	}

	entry, err := mission.NewHistoryEntry(missionID, m.Status, &actorID, reason, mission.HistoryMetadata{
		Kind:    mission.MetadataKindDispute,
		Dispute: &mission.DisputeMetadata{ActorRole: s.actorRole(m, actorID), Note: reason},
	})
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, m, expected, entry); err != nil {
		return nil, err
	}
	return m, nil
}

// ResolveDispute closes a disputed mission to the given terminal outcome.
// Only admins may resolve; the outcome routes to the matching escrow side
// effect.
func (s *Service) ResolveDispute(ctx context.Context, missionID, adminID uuid.UUID, outcome mission.DisputeOutcome, note string) (*mission.Mission, error) {
	admin, err := s.userRepo.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin == nil || admin.Role != user.RoleAdmin {
		return nil, mission.ErrForbidden
	}

	m, err := s.resolveDisputeLocked(ctx, missionID, adminID, outcome, note)
	if err != nil {
		return nil, err
	}

	var escrowErr error
	if m.Status == mission.StatusCompleted {
		escrowErr = s.escrow.OnCompleted(ctx, m)
	} else {
		escrowErr = s.escrow.OnCancelled(ctx, m)
	}
	if escrowErr != nil {
		s.logger.Error().Err(escrowErr).
			Str("missionId", missionID.String()).
			Msg("escrow settlement signal failed, pending reconciliation")
	}
	s.chatSvc.BroadcastStatusChange(ctx, m, &adminID)
	return m, nil
}

func (s *Service) resolveDisputeLocked(ctx context.Context, missionID, adminID uuid.UUID, outcome mission.DisputeOutcome, note string) (*mission.Mission, error) {
	mu := s.locks.lock(missionID)
	defer mu.Unlock()

	m, err := s.Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.Status != mission.StatusDisputed {
		return nil, mission.ErrInvalidTransition
	}
	expected := m.Status
	now := time.Now().UTC()

	switch outcome {
	case mission.DisputeOutcomeCompleted:
		price := m.PriceEstimate
		if m.FinalPrice != nil {
			price = *m.FinalPrice
		}
		commission := s.commission(price)
		m.Status = mission.StatusCompleted
		m.FinalPrice = &price
		m.CommissionAmount = &commission
		m.CompletedAt = &now
	case mission.DisputeOutcomeCancelled:
		m.Status = mission.StatusCancelled
		m.CancelledAt = &now
		if note != "" {
			m.CancellationReason = &note
		}
	default:
		return nil, mission.ErrValidation
	}

	resolved := outcome
	entry, err := mission.NewHistoryEntry(missionID, m.Status, &adminID, note, mission.HistoryMetadata{
		Kind:    mission.MetadataKindDispute,
		Dispute: &mission.DisputeMetadata{ActorRole: mission.ActorRoleAdmin, Outcome: &resolved, Note: note},
	})
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, m, expected, entry); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) commit(ctx context.Context, m *mission.Mission, expected mission.Status, entry *mission.StatusHistory) error {
	m.UpdatedAt = time.Now().UTC()
	if err := s.repo.ApplyTransition(ctx, m, expected, entry); err != nil {
		return err
	}
	s.logger.Info().
		Str("missionId", m.MissionID.String()).
		Str("from", string(expected)).
		Str("to", string(m.Status)).
		Msg("mission transition committed")
	return nil
}

func (s *Service) commission(finalPrice int64) int64 {
	return finalPrice * s.commissionRateBps / 10000
}

func (s *Service) actorRole(m *mission.Mission, actorID uuid.UUID) mission.ActorRole {
	if m.ClientID == actorID {
		return mission.ActorRoleClient
	}
	if m.AssistantID != nil && *m.AssistantID == actorID {
		return mission.ActorRoleAssistant
	}
	return mission.ActorRoleSystem
}
