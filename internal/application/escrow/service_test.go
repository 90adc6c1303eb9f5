package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missionhub/missionhub/internal/domain/mission"
	"github.com/missionhub/missionhub/internal/domain/payment"
)

type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[uuid.UUID]*payment.Payment)}
}

func (r *memPaymentRepo) Create(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.MissionID == p.MissionID && existing.Type == p.Type {
			return payment.ErrDuplicate
		}
	}
	cp := *p
	r.payments[p.PaymentID] = &cp
	return nil
}

func (r *memPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memPaymentRepo) GetByMissionAndType(_ context.Context, missionID uuid.UUID, typ payment.Type) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.MissionID == missionID && p.Type == typ {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) GetActiveEscrow(_ context.Context, missionID uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.MissionID == missionID && p.Type == payment.TypeEscrow && !p.Status.IsTerminal() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) ListByMission(_ context.Context, missionID uuid.UUID) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.MissionID == missionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) Update(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.PaymentID] = &cp
	return nil
}

func (r *memPaymentRepo) GetByExternalRef(_ context.Context, ref string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ExternalRef != nil && *p.ExternalRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) ListNeedingReconciliation(_ context.Context, limit int) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.Metadata.NeedsReconcile {
			cp := *p
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	holds    int
	releases []string
	refunds  []string
	holdErr  error
}

func (g *fakeGateway) CreateHold(_ context.Context, _ int64, _ string, _ payment.HoldMetadata) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holdErr != nil {
		return "", g.holdErr
	}
	g.holds++
	return "hold-1", nil
}

func (g *fakeGateway) Release(_ context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases = append(g.releases, ref)
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, ref)
	return nil
}

func testMission() *mission.Mission {
	assistant := uuid.New()
	now := time.Now().UTC()
	return &mission.Mission{
		MissionID:     uuid.New(),
		Title:         "Deliver documents",
		Status:        mission.StatusAccepted,
		PriceEstimate: 2500,
		CashAdvance:   1000,
		Currency:      "EUR",
		ClientID:      uuid.New(),
		AssistantID:   &assistant,
		AcceptedAt:    &now,
	}
}

func newTestCoordinator(repo payment.Repository, gw payment.Gateway) *Coordinator {
	return NewCoordinator(repo, gw, NewReviewRule(""), uuid.New(), zerolog.Nop())
}

func TestOnAcceptedPlacesHold(t *testing.T) {
	repo := newMemPaymentRepo()
	gw := &fakeGateway{}
	c := newTestCoordinator(repo, gw)
	m := testMission()

	require.NoError(t, c.OnAccepted(context.Background(), m))

	p, err := repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeEscrow)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(3500), p.Amount)
	assert.Equal(t, payment.StatusProcessing, p.Status)
	require.NotNil(t, p.ExternalRef)
	assert.Equal(t, 1, gw.holds)
}

func TestOnAcceptedIdempotent(t *testing.T) {
	repo := newMemPaymentRepo()
	gw := &fakeGateway{}
	c := newTestCoordinator(repo, gw)
	m := testMission()

	require.NoError(t, c.OnAccepted(context.Background(), m))
	require.NoError(t, c.OnAccepted(context.Background(), m))

	payments, err := repo.ListByMission(context.Background(), m.MissionID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, 1, gw.holds)
}

func TestOnAcceptedGatewayFailure(t *testing.T) {
	repo := newMemPaymentRepo()
	gw := &fakeGateway{holdErr: errors.New("gateway unavailable")}
	c := newTestCoordinator(repo, gw)
	m := testMission()

	require.NoError(t, c.OnAccepted(context.Background(), m))

	p, err := repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeEscrow)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, payment.StatusFailed, p.Status)
	assert.True(t, p.Metadata.NeedsReconcile)
	assert.Equal(t, "gateway unavailable", p.Metadata.FailureReason)

	pending, err := repo.ListNeedingReconciliation(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestOnCompletedReleasesAndCollectsCommission(t *testing.T) {
	repo := newMemPaymentRepo()
	gw := &fakeGateway{}
	c := newTestCoordinator(repo, gw)
	m := testMission()
	require.NoError(t, c.OnAccepted(context.Background(), m))

	final := int64(3000)
	commission := int64(450)
	m.Status = mission.StatusCompleted
	m.FinalPrice = &final
	m.CommissionAmount = &commission

	require.NoError(t, c.OnCompleted(context.Background(), m))

	release, err := repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeRelease)
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.Equal(t, int64(2550), release.Amount)
	assert.Equal(t, payment.StatusCompleted, release.Status)
	require.NotNil(t, release.PayeeID)
	assert.Equal(t, *m.AssistantID, *release.PayeeID)

	comm, err := repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeCommission)
	require.NoError(t, err)
	require.NotNil(t, comm)
	assert.Equal(t, int64(450), comm.Amount)

	escrowRow, err := repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeEscrow)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, escrowRow.Status)
	assert.Equal(t, []string{"hold-1"}, gw.releases)
}

func TestOnCompletedReplay(t *testing.T) {
	repo := newMemPaymentRepo()
	gw := &fakeGateway{}
	c := newTestCoordinator(repo, gw)
	m := testMission()
	require.NoError(t, c.OnAccepted(context.Background(), m))

	final := int64(3000)
	commission := int64(450)
	m.Status = mission.StatusCompleted
	m.FinalPrice = &final
	m.CommissionAmount = &commission

	require.NoError(t, c.OnCompleted(context.Background(), m))
	require.NoError(t, c.OnCompleted(context.Background(), m))

	assert.Len(t, gw.releases, 1)
	payments, _ := repo.ListByMission(context.Background(), m.MissionID)
	assert.Len(t, payments, 3)
}

func TestOnCancelledRefunds(t *testing.T) {
	repo := newMemPaymentRepo()
	gw := &fakeGateway{}
	c := newTestCoordinator(repo, gw)
	m := testMission()
	require.NoError(t, c.OnAccepted(context.Background(), m))

	m.Status = mission.StatusCancelled
	require.NoError(t, c.OnCancelled(context.Background(), m))

	refund, err := repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeRefund)
	require.NoError(t, err)
	require.NotNil(t, refund)
	assert.Equal(t, int64(3500), refund.Amount)
	require.NotNil(t, refund.PayeeID)
	assert.Equal(t, m.ClientID, *refund.PayeeID)

	escrowRow, _ := repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeEscrow)
	assert.Equal(t, payment.StatusRefunded, escrowRow.Status)
	assert.Equal(t, []string{"hold-1"}, gw.refunds)

	// Replay is a no-op.
	require.NoError(t, c.OnCancelled(context.Background(), m))
	assert.Len(t, gw.refunds, 1)
}

func TestOnCancelledWithoutEscrow(t *testing.T) {
	repo := newMemPaymentRepo()
	c := newTestCoordinator(repo, &fakeGateway{})
	m := testMission()
	m.Status = mission.StatusCancelled

	require.NoError(t, c.OnCancelled(context.Background(), m))
	payments, _ := repo.ListByMission(context.Background(), m.MissionID)
	assert.Empty(t, payments)
}

func TestHandleGatewayEvent(t *testing.T) {
	repo := newMemPaymentRepo()
	gw := &fakeGateway{}
	c := newTestCoordinator(repo, gw)
	m := testMission()
	require.NoError(t, c.OnAccepted(context.Background(), m))

	p, err := c.HandleGatewayEvent(context.Background(), "hold-1", payment.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)

	_, err = c.HandleGatewayEvent(context.Background(), "unknown-ref", payment.StatusCompleted)
	assert.ErrorIs(t, err, payment.ErrNotFound)
}

func TestHandleGatewayEventLateWebhookOnTerminalEscrow(t *testing.T) {
	repo := newMemPaymentRepo()
	gw := &fakeGateway{}
	c := newTestCoordinator(repo, gw)
	m := testMission()
	require.NoError(t, c.OnAccepted(context.Background(), m))

	m.Status = mission.StatusCancelled
	require.NoError(t, c.OnCancelled(context.Background(), m))

	escrowRow, err := repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeEscrow)
	require.NoError(t, err)
	require.Equal(t, payment.StatusRefunded, escrowRow.Status)

	// A delayed "processing" webhook must not resurrect the settled escrow.
	_, err = c.HandleGatewayEvent(context.Background(), "hold-1", payment.StatusProcessing)
	assert.ErrorIs(t, err, payment.ErrInvalidTransition)

	escrowRow, err = repo.GetByMissionAndType(context.Background(), m.MissionID, payment.TypeEscrow)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, escrowRow.Status)

	active, err := repo.GetActiveEscrow(context.Background(), m.MissionID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestHandleGatewayEventRedeliveryNoOp(t *testing.T) {
	repo := newMemPaymentRepo()
	c := newTestCoordinator(repo, &fakeGateway{})
	m := testMission()
	require.NoError(t, c.OnAccepted(context.Background(), m))

	p, err := c.HandleGatewayEvent(context.Background(), "hold-1", payment.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, p.Status)

	p, err = c.HandleGatewayEvent(context.Background(), "hold-1", payment.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
}
