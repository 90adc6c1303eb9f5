package push

import (
	"context"

	"github.com/google/uuid"
)

// Notifier is the external push collaborator. Delivery is best-effort:
// callers log failures and move on.
type Notifier interface {
	SendToUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error
}
