package payment

import "context"

// HoldMetadata is passed through to the gateway when placing a hold.
type HoldMetadata struct {
	MissionID string `json:"missionId"`
	PayerID   string `json:"payerId"`
}

// Gateway is the external payment collaborator. Final settlement status
// arrives asynchronously through the gateway webhook.
type Gateway interface {
	CreateHold(ctx context.Context, amount int64, currency string, metadata HoldMetadata) (externalRef string, err error)
	Release(ctx context.Context, externalRef string) error
	Refund(ctx context.Context, externalRef string) error
}
