package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL         string
	ServerAddr          string
	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	NATSURL string

	GatewayBaseURL string
	GatewayAPIKey  string

	CommissionRateBps int
	PlatformAccountID uuid.UUID
	EscrowReviewRule  string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "missionhub")
		pass := getenv("POSTGRES_PASSWORD", "missionhub_pass")
		db := getenv("POSTGRES_DB", "missionhub")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}
	addr := getenv("SERVER_ADDR", "0.0.0.0:8080")
	ttl := parseDuration(getenv("SESSION_TTL", "24h"), 24*time.Hour)
	cookieName := getenv("SESSION_COOKIE_NAME", "missionhub_session")
	cookieSecure := parseBool(getenv("SESSION_COOKIE_SECURE", "false"), false)

	natsURL := getenv("NATS_URL", "nats://localhost:4222")

	gatewayURL := getenv("PAYMENT_GATEWAY_URL", "http://localhost:9090")
	gatewayKey := os.Getenv("PAYMENT_GATEWAY_API_KEY")

	rateBps := parseInt(getenv("COMMISSION_RATE_BPS", "1500"), 1500)
	if rateBps < 0 || rateBps > 10000 {
		return nil, fmt.Errorf("COMMISSION_RATE_BPS out of range: %d", rateBps)
	}

	platformID := uuid.Nil
	if raw := os.Getenv("PLATFORM_ACCOUNT_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PLATFORM_ACCOUNT_ID: %w", err)
		}
		platformID = id
	}

	reviewRule := os.Getenv("ESCROW_REVIEW_RULE")

	return &Config{
		DatabaseURL:         dsn,
		ServerAddr:          addr,
		SessionTTL:          ttl,
		SessionCookieName:   cookieName,
		SessionCookieSecure: cookieSecure,
		NATSURL:             natsURL,
		GatewayBaseURL:      gatewayURL,
		GatewayAPIKey:       gatewayKey,
		CommissionRateBps:   rateBps,
		PlatformAccountID:   platformID,
		EscrowReviewRule:    reviewRule,
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return i
}
