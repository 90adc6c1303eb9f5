// Package gatewayhttp is the HTTP client for the external payment
// gateway. Only hold, release and refund calls are issued from this
// service; settlement results come back through the gateway webhook.
package gatewayhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/missionhub/missionhub/internal/domain/payment"
)

// Client implements payment.Gateway against the gateway REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("component", "payment_gateway").Logger(),
	}
}

type holdRequest struct {
	Amount   int64                `json:"amount"`
	Currency string               `json:"currency"`
	Metadata payment.HoldMetadata `json:"metadata"`
}

type holdResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) CreateHold(ctx context.Context, amount int64, currency string, metadata payment.HoldMetadata) (string, error) {
	var resp holdResponse
	err := c.post(ctx, "/v1/holds", holdRequest{Amount: amount, Currency: currency, Metadata: metadata}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Reference == "" {
		return "", fmt.Errorf("gateway returned empty hold reference")
	}
	c.logger.Info().Str("external_ref", resp.Reference).Int64("amount", amount).Msg("hold created")
	return resp.Reference, nil
}

func (c *Client) Release(ctx context.Context, externalRef string) error {
	return c.post(ctx, "/v1/holds/"+externalRef+"/release", struct{}{}, nil)
}

func (c *Client) Refund(ctx context.Context, externalRef string) error {
	return c.post(ctx, "/v1/holds/"+externalRef+"/refund", struct{}{}, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payloadBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var gwErr gatewayError
		if json.Unmarshal(data, &gwErr) == nil && gwErr.Message != "" {
			return fmt.Errorf("gateway %s: %s (%s)", path, gwErr.Message, gwErr.Code)
		}
		return fmt.Errorf("gateway %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("gateway %s: decode response: %w", path, err)
		}
	}
	return nil
}
