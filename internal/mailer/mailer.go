// Package mailer defines the outbound mail boundary. Delivery itself is an
// external collaborator; callers treat every send as best-effort.
package mailer

import (
	"context"
	"time"

	"github.com/indifarm/indifarm/internal/config"
	"github.com/indifarm/indifarm/internal/monitoring"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Mailer sends a single email
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// LogMailer logs outbound mail instead of delivering it. Used when no
// delivery provider is configured.
type LogMailer struct {
	from   string
	logger zerolog.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(cfg *config.MailConfig, logger zerolog.Logger) *LogMailer {
	return &LogMailer{
		from:   cfg.FromEmail,
		logger: logger,
	}
}

// Send logs the mail and reports success
func (m *LogMailer) Send(ctx context.Context, to, subject, html string) error {
	m.logger.Info().
		Str("from", m.from).
		Str("to", to).
		Str("subject", subject).
		Int("body_size", len(html)).
		Msg("Outbound mail (delivery not configured)")
	return nil
}

// BreakerMailer wraps a Mailer with a circuit breaker so a failing provider
// stops being hammered by best-effort sends.
type BreakerMailer struct {
	inner   Mailer
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewBreakerMailer creates a circuit-breaking mailer
func NewBreakerMailer(inner Mailer, logger zerolog.Logger) *BreakerMailer {
	settings := gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Mailer circuit breaker state change")
		},
	}

	return &BreakerMailer{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Send delivers through the breaker and records the outcome
func (m *BreakerMailer) Send(ctx context.Context, to, subject, html string) error {
	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, m.inner.Send(ctx, to, subject, html)
	})
	if err != nil {
		monitoring.RecordMailSend("failure")
		return err
	}
	monitoring.RecordMailSend("success")
	return nil
}
