package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/missionhub/missionhub/internal/domain/mission"
	"github.com/missionhub/missionhub/internal/domain/payment"
)

// Coordinator bridges mission-status transitions to payment state. The
// triggering transition is always committed before any method here runs, so
// gateway outages surface as reconciliation-pending payments, never as
// mission failures.
type Coordinator struct {
	repo       payment.Repository
	gateway    payment.Gateway
	reviewRule *ReviewRule
	platformID uuid.UUID
	logger     zerolog.Logger
}

// NewCoordinator creates an escrow coordinator. platformID is the account
// credited with commission records.
func NewCoordinator(repo payment.Repository, gateway payment.Gateway, reviewRule *ReviewRule, platformID uuid.UUID, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		repo:       repo,
		gateway:    gateway,
		reviewRule: reviewRule,
		platformID: platformID,
		logger:     logger.With().Str("service", "escrow").Logger(),
	}
}

// OnAccepted places the escrow hold for an accepted mission. Replays are
// no-ops: creation is keyed by (missionID, ESCROW).
func (c *Coordinator) OnAccepted(ctx context.Context, m *mission.Mission) error {
	if existing, err := c.repo.GetByMissionAndType(ctx, m.MissionID, payment.TypeEscrow); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	p := payment.New(m.MissionID, m.ClientID, m.AssistantID, m.EscrowAmount(), m.Currency, payment.TypeEscrow)
	c.flagForReview(p)
	if err := c.repo.Create(ctx, p); err != nil {
		if errors.Is(err, payment.ErrDuplicate) {
			return nil
		}
		return err
	}

	ref, err := c.gateway.CreateHold(ctx, p.Amount, p.Currency, payment.HoldMetadata{
		MissionID: m.MissionID.String(),
		PayerID:   m.ClientID.String(),
	})
	if err != nil {
		c.logger.Error().Err(err).
			Str("missionId", m.MissionID.String()).
			Str("paymentId", p.PaymentID.String()).
			Msg("gateway hold failed, payment flagged for reconciliation")
		if ferr := p.MarkFailed(err.Error()); ferr != nil {
			return ferr
		}
		return c.repo.Update(ctx, p)
	}

	p.ExternalRef = &ref
	if err := p.Transition(payment.StatusProcessing); err != nil {
		return err
	}
	c.logger.Info().
		Str("missionId", m.MissionID.String()).
		Str("paymentId", p.PaymentID.String()).
		Int64("amount", p.Amount).
		Msg("escrow hold placed")
	return c.repo.Update(ctx, p)
}

// OnCompleted releases the escrow: a RELEASE record credits the assistant
// with finalPrice minus commission, a COMMISSION record credits the
// platform, and the escrow is marked completed. Idempotent by
// (missionID, RELEASE).
func (c *Coordinator) OnCompleted(ctx context.Context, m *mission.Mission) error {
	if existing, err := c.repo.GetByMissionAndType(ctx, m.MissionID, payment.TypeRelease); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	escrowPayment, err := c.repo.GetActiveEscrow(ctx, m.MissionID)
	if err != nil {
		return err
	}
	if escrowPayment == nil {
		c.logger.Warn().Str("missionId", m.MissionID.String()).Msg("completion without active escrow, skipping release")
		return nil
	}
	if m.FinalPrice == nil || m.CommissionAmount == nil {
		return fmt.Errorf("mission %s completed without final price", m.MissionID)
	}
	if m.AssistantID == nil {
		return fmt.Errorf("mission %s completed without assistant", m.MissionID)
	}

	release := payment.New(m.MissionID, c.platformID, m.AssistantID, *m.FinalPrice-*m.CommissionAmount, m.Currency, payment.TypeRelease)
	release.RelatedPaymentID = &escrowPayment.PaymentID
	if err := c.repo.Create(ctx, release); err != nil {
		if errors.Is(err, payment.ErrDuplicate) {
			return nil
		}
		return err
	}

	platform := c.platformID
	commission := payment.New(m.MissionID, m.ClientID, &platform, *m.CommissionAmount, m.Currency, payment.TypeCommission)
	commission.RelatedPaymentID = &escrowPayment.PaymentID
	if err := c.repo.Create(ctx, commission); err != nil && !errors.Is(err, payment.ErrDuplicate) {
		return err
	}

	if escrowPayment.ExternalRef != nil {
		if err := c.gateway.Release(ctx, *escrowPayment.ExternalRef); err != nil {
			c.logger.Error().Err(err).
				Str("missionId", m.MissionID.String()).
				Msg("gateway release failed, release flagged for reconciliation")
			if ferr := release.MarkFailed(err.Error()); ferr != nil {
				return ferr
			}
			return c.repo.Update(ctx, release)
		}
	}

	if err := c.settle(ctx, release); err != nil {
		return err
	}
	if err := c.settle(ctx, commission); err != nil {
		return err
	}
	if err := escrowPayment.Transition(payment.StatusCompleted); err != nil {
		return err
	}
	c.logger.Info().
		Str("missionId", m.MissionID.String()).
		Int64("released", release.Amount).
		Int64("commission", commission.Amount).
		Msg("escrow released")
	return c.repo.Update(ctx, escrowPayment)
}

// OnCancelled refunds any active escrow to the client. Idempotent by
// (missionID, REFUND).
func (c *Coordinator) OnCancelled(ctx context.Context, m *mission.Mission) error {
	if existing, err := c.repo.GetByMissionAndType(ctx, m.MissionID, payment.TypeRefund); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	escrowPayment, err := c.repo.GetActiveEscrow(ctx, m.MissionID)
	if err != nil {
		return err
	}
	if escrowPayment == nil {
		return nil
	}

	client := m.ClientID
	refund := payment.New(m.MissionID, c.platformID, &client, escrowPayment.Amount, m.Currency, payment.TypeRefund)
	refund.RelatedPaymentID = &escrowPayment.PaymentID
	if err := c.repo.Create(ctx, refund); err != nil {
		if errors.Is(err, payment.ErrDuplicate) {
			return nil
		}
		return err
	}

	if escrowPayment.ExternalRef != nil {
		if err := c.gateway.Refund(ctx, *escrowPayment.ExternalRef); err != nil {
			c.logger.Error().Err(err).
				Str("missionId", m.MissionID.String()).
				Msg("gateway refund failed, refund flagged for reconciliation")
			if ferr := refund.MarkFailed(err.Error()); ferr != nil {
				return ferr
			}
			return c.repo.Update(ctx, refund)
		}
	}

	if err := c.settle(ctx, refund); err != nil {
		return err
	}
	if err := escrowPayment.Transition(payment.StatusRefunded); err != nil {
		// PENDING escrow (hold never placed) cannot move to REFUNDED directly.
		if cerr := escrowPayment.Transition(payment.StatusCancelled); cerr != nil {
			return err
		}
	}
	c.logger.Info().
		Str("missionId", m.MissionID.String()).
		Int64("refunded", refund.Amount).
		Msg("escrow refunded")
	return c.repo.Update(ctx, escrowPayment)
}

// HandleGatewayEvent applies an asynchronous gateway webhook update. The
// status must be a legal move of the payment status machine; a late or
// replayed webhook against a terminal payment is rejected rather than
// regressing the row. Re-delivery of the current status is a no-op.
func (c *Coordinator) HandleGatewayEvent(ctx context.Context, externalRef string, status payment.Status) (*payment.Payment, error) {
	p, err := c.repo.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, payment.ErrNotFound
	}
	if p.Status == status {
		return p, nil
	}
	if err := p.Transition(status); err != nil {
		c.logger.Warn().
			Str("paymentId", p.PaymentID.String()).
			Str("from", string(p.Status)).
			Str("to", string(status)).
			Msg("gateway webhook rejected, transition not allowed")
		return nil, err
	}
	if err := c.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("paymentId", p.PaymentID.String()).
		Str("status", string(status)).
		Msg("gateway webhook applied")
	return p, nil
}

// ListByMission returns the payment rows for a mission.
func (c *Coordinator) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*payment.Payment, error) {
	return c.repo.ListByMission(ctx, missionID)
}

// ListNeedingReconciliation returns payments awaiting manual review.
func (c *Coordinator) ListNeedingReconciliation(ctx context.Context, limit int) ([]*payment.Payment, error) {
	return c.repo.ListNeedingReconciliation(ctx, limit)
}

// settle completes an internal movement record that has no gateway leg of
// its own. Settlement still walks PENDING through PROCESSING so the status
// machine holds for every row.
func (c *Coordinator) settle(ctx context.Context, p *payment.Payment) error {
	if err := p.Transition(payment.StatusProcessing); err != nil {
		return err
	}
	if err := p.Transition(payment.StatusCompleted); err != nil {
		return err
	}
	return c.repo.Update(ctx, p)
}

func (c *Coordinator) flagForReview(p *payment.Payment) {
	matched, err := c.reviewRule.Matches(p)
	if err != nil {
		c.logger.Warn().Err(err).Msg("review rule evaluation failed")
		return
	}
	if matched {
		p.Metadata.NeedsReconcile = true
	}
}
