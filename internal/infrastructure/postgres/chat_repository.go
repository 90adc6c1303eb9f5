package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/missionhub/missionhub/internal/domain/chat"
)

// ChatRepository implements chat.Repository.
type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) Create(ctx context.Context, m *chat.Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (message_id, mission_id, sender_id, content, type, status, deleted, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, m.MessageID, m.MissionID, m.SenderID, m.Content, m.Type, nullable(m.Status), m.Deleted, m.CreatedAt)
	return err
}

func (r *ChatRepository) GetByID(ctx context.Context, messageID uuid.UUID) (*chat.Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, message_id, mission_id, sender_id, content, type, status, deleted, created_at
		FROM chat_messages WHERE message_id=$1
	`, messageID)
	return scanMessage(row)
}

// ListRecent returns the newest messages for a mission, oldest first within
// the page.
func (r *ChatRepository) ListRecent(ctx context.Context, missionID uuid.UUID, limit int) ([]*chat.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, message_id, mission_id, sender_id, content, type, status, deleted, created_at
		FROM (
			SELECT id, message_id, mission_id, sender_id, content, type, status, deleted, created_at
			FROM chat_messages
			WHERE mission_id=$1 AND deleted=FALSE
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) page ORDER BY created_at ASC, id ASC
	`, missionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []*chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *ChatRepository) MarkDeleted(ctx context.Context, messageID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE chat_messages SET deleted=TRUE WHERE message_id=$1`, messageID)
	return err
}

func scanMessage(row pgx.Row) (*chat.Message, error) {
	var m chat.Message
	var status *string
	err := row.Scan(&m.ID, &m.MessageID, &m.MissionID, &m.SenderID, &m.Content, &m.Type, &status, &m.Deleted, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if status != nil {
		m.Status = *status
	}
	return &m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
