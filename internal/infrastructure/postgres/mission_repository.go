package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/missionhub/missionhub/internal/domain/mission"
)

const missionColumns = `id, mission_id, title, description,
	pickup_lat, pickup_lng, pickup_address,
	drop_lat, drop_lng, drop_address,
	window_start, window_end,
	price_estimate, cash_advance, final_price, commission_amount, currency,
	status, priority, client_id, assistant_id,
	accepted_at, started_at, completed_at, cancelled_at, disputed_at,
	cancellation_reason, created_at, updated_at`

// MissionRepository implements mission.Repository.
type MissionRepository struct {
	pool *pgxpool.Pool
}

func NewMissionRepository(pool *pgxpool.Pool) *MissionRepository {
	return &MissionRepository{pool: pool}
}

// Create inserts the mission and its creation history row in one transaction.
func (r *MissionRepository) Create(ctx context.Context, m *mission.Mission, creation *mission.StatusHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var dropLat, dropLng *float64
	var dropAddr *string
	if m.Drop != nil {
		dropLat, dropLng, dropAddr = &m.Drop.Latitude, &m.Drop.Longitude, &m.Drop.Address
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO missions
		(mission_id, title, description, pickup_lat, pickup_lng, pickup_address,
		 drop_lat, drop_lng, drop_address, window_start, window_end,
		 price_estimate, cash_advance, final_price, commission_amount, currency,
		 status, priority, client_id, assistant_id,
		 accepted_at, started_at, completed_at, cancelled_at, disputed_at,
		 cancellation_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
	`, m.MissionID, m.Title, m.Description, m.Pickup.Latitude, m.Pickup.Longitude, m.Pickup.Address,
		dropLat, dropLng, dropAddr, m.WindowStart, m.WindowEnd,
		m.PriceEstimate, m.CashAdvance, m.FinalPrice, m.CommissionAmount, m.Currency,
		m.Status, m.Priority, m.ClientID, m.AssistantID,
		m.AcceptedAt, m.StartedAt, m.CompletedAt, m.CancelledAt, m.DisputedAt,
		m.CancellationReason, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return err
	}
	if err := insertHistory(ctx, tx, creation); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *MissionRepository) GetByID(ctx context.Context, missionID uuid.UUID) (*mission.Mission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE mission_id=$1`, missionID)
	return scanMission(row)
}

func (r *MissionRepository) List(ctx context.Context, status *mission.Status, limit, offset int) ([]*mission.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions`
	args := []interface{}{}
	if status != nil {
		query += " WHERE status=$1"
		args = append(args, *status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var missions []*mission.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// ApplyTransition updates the mission with an optimistic predicate on the
// expected status and appends the history row in the same transaction.
func (r *MissionRepository) ApplyTransition(ctx context.Context, m *mission.Mission, expectedStatus mission.Status, entry *mission.StatusHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE missions SET
			status=$1, assistant_id=$2, final_price=$3, commission_amount=$4,
			accepted_at=$5, started_at=$6, completed_at=$7, cancelled_at=$8, disputed_at=$9,
			cancellation_reason=$10, updated_at=$11
		WHERE mission_id=$12 AND status=$13
	`, m.Status, m.AssistantID, m.FinalPrice, m.CommissionAmount,
		m.AcceptedAt, m.StartedAt, m.CompletedAt, m.CancelledAt, m.DisputedAt,
		m.CancellationReason, m.UpdatedAt, m.MissionID, expectedStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mission.ErrConflict
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *mission.StatusHistory) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO mission_status_history (entry_id, mission_id, status, actor, comment, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.EntryID, entry.MissionID, entry.Status, entry.Actor, entry.Comment, metadata, entry.CreatedAt)
	return err
}

func scanMission(row pgx.Row) (*mission.Mission, error) {
	var m mission.Mission
	var dropLat, dropLng *float64
	var dropAddr *string
	err := row.Scan(&m.ID, &m.MissionID, &m.Title, &m.Description,
		&m.Pickup.Latitude, &m.Pickup.Longitude, &m.Pickup.Address,
		&dropLat, &dropLng, &dropAddr,
		&m.WindowStart, &m.WindowEnd,
		&m.PriceEstimate, &m.CashAdvance, &m.FinalPrice, &m.CommissionAmount, &m.Currency,
		&m.Status, &m.Priority, &m.ClientID, &m.AssistantID,
		&m.AcceptedAt, &m.StartedAt, &m.CompletedAt, &m.CancelledAt, &m.DisputedAt,
		&m.CancellationReason, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if dropLat != nil && dropLng != nil {
		addr := ""
		if dropAddr != nil {
			addr = *dropAddr
		}
		m.Drop = &mission.Location{Latitude: *dropLat, Longitude: *dropLng, Address: addr}
	}
	return &m, nil
}

// HistoryRepository implements mission.HistoryRepository.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

func (r *HistoryRepository) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*mission.StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entry_id, mission_id, status, actor, comment, metadata, created_at
		FROM mission_status_history WHERE mission_id=$1 ORDER BY created_at ASC, id ASC
	`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*mission.StatusHistory
	for rows.Next() {
		var e mission.StatusHistory
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.EntryID, &e.MissionID, &e.Status, &e.Actor, &e.Comment, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, err
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
