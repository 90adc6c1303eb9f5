// Package natspush delivers push notifications over NATS subjects.
//
// Each user has a dedicated subject (push.user.<uuid>). Downstream
// delivery workers subscribe and forward to APNs/FCM; this process only
// publishes.
package natspush

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const subjectPrefix = "push.user."

// Notification is the wire payload published per push.
type Notification struct {
	UserID   uuid.UUID         `json:"userId"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	QueuedAt time.Time         `json:"queuedAt"`
}

// Notifier implements push.Notifier on a NATS connection.
type Notifier struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

func NewNotifier(conn *nats.Conn, logger zerolog.Logger) *Notifier {
	return &Notifier{
		conn:   conn,
		logger: logger.With().Str("component", "natspush").Logger(),
	}
}

// Connect dials the NATS server with reconnect handling suited for a
// long-lived service process.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
}

func (n *Notifier) SendToUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	payload, err := json.Marshal(Notification{
		UserID:   userID,
		Title:    title,
		Body:     body,
		Data:     data,
		QueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.conn.Publish(subjectPrefix+userID.String(), payload); err != nil {
		return err
	}
	n.logger.Debug().Str("user_id", userID.String()).Str("title", title).Msg("push queued")
	return nil
}
