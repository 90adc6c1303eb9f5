package payment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewPayment(t *testing.T) {
	missionID := uuid.New()
	payer := uuid.New()
	payee := uuid.New()
	p := New(missionID, payer, &payee, 3500, "EUR", TypeEscrow)

	if p.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", p.Status)
	}
	if p.PaymentID == uuid.Nil {
		t.Fatal("expected payment id")
	}
	if p.Amount != 3500 || p.Currency != "EUR" || p.Type != TypeEscrow {
		t.Fatal("expected fields to carry over")
	}
}

func TestPaymentTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusRefunded, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusRefunded, true},
		{StatusProcessing, StatusCancelled, false},
		{StatusCompleted, StatusRefunded, true},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusProcessing, false},
		{StatusRefunded, StatusCompleted, false},
	}
	for _, c := range cases {
		p := New(uuid.New(), uuid.New(), nil, 100, "EUR", TypeEscrow)
		p.Status = c.from
		err := p.Transition(c.to)
		if c.allowed && err != nil {
			t.Fatalf("%s -> %s: expected success, got %v", c.from, c.to, err)
		}
		if !c.allowed && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", c.from, c.to, err)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusProcessing} {
		if s.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestMarkFailed(t *testing.T) {
	p := New(uuid.New(), uuid.New(), nil, 100, "EUR", TypeEscrow)
	if err := p.MarkFailed("gateway timeout"); err != nil {
		t.Fatalf("expected mark failed to succeed: %v", err)
	}
	if p.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", p.Status)
	}
	if !p.Metadata.NeedsReconcile || p.Metadata.FailureReason != "gateway timeout" {
		t.Fatal("expected reconciliation flag and reason")
	}

	if err := p.MarkFailed("again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on terminal payment, got %v", err)
	}
}
