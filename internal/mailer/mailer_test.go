package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/indifarm/indifarm/internal/config"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

type failingMailer struct {
	calls int
	err   error
}

func (m *failingMailer) Send(ctx context.Context, to, subject, html string) error {
	m.calls++
	return m.err
}

func TestLogMailer_Send(t *testing.T) {
	cfg := &config.MailConfig{FromEmail: "noreply@indifarm.local", FromName: "IndiFarm"}
	m := NewLogMailer(cfg, zerolog.Nop())

	if err := m.Send(context.Background(), "user@example.com", "Hello", "<p>Hi</p>"); err != nil {
		t.Fatalf("LogMailer.Send should never fail, got %v", err)
	}
}

func TestBreakerMailer_PassesThroughSuccess(t *testing.T) {
	inner := &failingMailer{}
	m := NewBreakerMailer(inner, zerolog.Nop())

	if err := m.Send(context.Background(), "user@example.com", "Hello", ""); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("Inner mailer called %d times, want 1", inner.calls)
	}
}

func TestBreakerMailer_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &failingMailer{err: errors.New("smtp unreachable")}
	m := NewBreakerMailer(inner, zerolog.Nop())
	ctx := context.Background()

	// The breaker trips on the fifth consecutive failure
	for i := 0; i < 5; i++ {
		if err := m.Send(ctx, "user@example.com", "Hello", ""); err == nil {
			t.Fatalf("Send %d should have failed", i+1)
		}
	}
	if inner.calls != 5 {
		t.Fatalf("Inner mailer called %d times, want 5", inner.calls)
	}

	// Open breaker short-circuits without reaching the provider
	err := m.Send(ctx, "user@example.com", "Hello", "")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Expected ErrOpenState, got %v", err)
	}
	if inner.calls != 5 {
		t.Errorf("Open breaker still reached provider: %d calls", inner.calls)
	}
}

func TestBreakerMailer_SuccessResetsFailureCount(t *testing.T) {
	inner := &failingMailer{err: errors.New("smtp unreachable")}
	m := NewBreakerMailer(inner, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = m.Send(ctx, "user@example.com", "Hello", "")
	}

	// A success before the threshold keeps the breaker closed
	inner.err = nil
	if err := m.Send(ctx, "user@example.com", "Hello", ""); err != nil {
		t.Fatalf("Send after recovery failed: %v", err)
	}

	inner.err = errors.New("smtp unreachable")
	if err := m.Send(ctx, "user@example.com", "Hello", ""); errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatal("Breaker should still be closed after an intervening success")
	}
}
