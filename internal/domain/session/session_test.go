package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewSession(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()
	ua := "cli/1.0"
	s := New(userID, "hash", time.Hour, now, &ua, nil)

	if s.UserID != userID {
		t.Fatalf("UserID = %s, want %s", s.UserID, userID)
	}
	if s.TokenHash != "hash" {
		t.Fatalf("TokenHash = %q", s.TokenHash)
	}
	if !s.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %s, want %s", s.ExpiresAt, now.Add(time.Hour))
	}
	if s.LastSeenAt == nil || !s.LastSeenAt.Equal(now) {
		t.Fatalf("LastSeenAt = %v, want %s", s.LastSeenAt, now)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now().UTC()
	s := New(uuid.New(), "hash", time.Hour, now, nil, nil)

	if s.IsExpired(now.Add(30 * time.Minute)) {
		t.Fatal("session expired before its TTL")
	}
	if !s.IsExpired(now.Add(time.Hour + time.Second)) {
		t.Fatal("session not expired after its TTL")
	}
}
