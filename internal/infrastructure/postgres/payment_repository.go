package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/missionhub/missionhub/internal/domain/payment"
)

const paymentColumns = `id, payment_id, mission_id, payer_id, payee_id,
	amount, currency, type, status, external_ref, related_payment_id,
	metadata, created_at, updated_at`

// PaymentRepository implements payment.Repository.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO payments
		(payment_id, mission_id, payer_id, payee_id, amount, currency, type, status,
		 external_ref, related_payment_id, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, p.PaymentID, p.MissionID, p.PayerID, p.PayeeID, p.Amount, p.Currency, p.Type, p.Status,
		p.ExternalRef, p.RelatedPaymentID, metadata, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return payment.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID uuid.UUID) (*payment.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_id=$1`, paymentID)
	return scanPayment(row)
}

func (r *PaymentRepository) GetByMissionAndType(ctx context.Context, missionID uuid.UUID, typ payment.Type) (*payment.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE mission_id=$1 AND type=$2`, missionID, typ)
	return scanPayment(row)
}

func (r *PaymentRepository) GetActiveEscrow(ctx context.Context, missionID uuid.UUID) (*payment.Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE mission_id=$1 AND type=$2 AND status NOT IN ('COMPLETED','FAILED','CANCELLED','REFUNDED')
	`, missionID, payment.TypeEscrow)
	return scanPayment(row)
}

func (r *PaymentRepository) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE mission_id=$1 ORDER BY created_at ASC`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE payments SET status=$1, external_ref=$2, metadata=$3, updated_at=$4
		WHERE payment_id=$5
	`, p.Status, p.ExternalRef, metadata, p.UpdatedAt, p.PaymentID)
	return err
}

func (r *PaymentRepository) GetByExternalRef(ctx context.Context, externalRef string) (*payment.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE external_ref=$1`, externalRef)
	return scanPayment(row)
}

func (r *PaymentRepository) ListNeedingReconciliation(ctx context.Context, limit int) ([]*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE (metadata->>'needsReconcile')::boolean IS TRUE
		ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	var metadata []byte
	err := row.Scan(&p.ID, &p.PaymentID, &p.MissionID, &p.PayerID, &p.PayeeID,
		&p.Amount, &p.Currency, &p.Type, &p.Status, &p.ExternalRef, &p.RelatedPaymentID,
		&metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
