package newsletter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/indifarm/indifarm/internal/cache"
	"github.com/indifarm/indifarm/internal/logging"
	"github.com/indifarm/indifarm/internal/mailer"
	"github.com/indifarm/indifarm/internal/models"
	"github.com/indifarm/indifarm/internal/monitoring"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Service errors
var (
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrAlreadySubscribed   = errors.New("email is already subscribed")
	ErrAlreadyUnsubscribed = errors.New("email is already unsubscribed")
	ErrSubscriberNotFound  = errors.New("email not found in subscribers list")
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

const countCacheKey = "newsletter:count"
const countCacheTTL = 60 * time.Second

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// Service handles newsletter subscriptions
type Service struct {
	db     *pgxpool.Pool
	cache  *cache.Redis
	mail   mailer.Mailer
	logger zerolog.Logger
}

// NewService creates a new newsletter service
func NewService(db *pgxpool.Pool, redis *cache.Redis, mail mailer.Mailer) *Service {
	return &Service{
		db:     db,
		cache:  redis,
		mail:   mail,
		logger: logging.NewLogger("newsletter"),
	}
}

// ValidateEmail normalizes and validates a subscriber email
func ValidateEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || !emailPattern.MatchString(normalized) {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// Subscribe adds an email to the newsletter, reactivating a previously
// unsubscribed address. A welcome email is sent best-effort.
func (s *Service) Subscribe(ctx context.Context, email string) (*models.NewsletterSubscriber, bool, error) {
	normalized, err := ValidateEmail(email)
	if err != nil {
		return nil, false, err
	}

	var existing models.NewsletterSubscriber
	err = s.db.QueryRow(ctx, `
		SELECT id, email, is_active, subscribed_at, created_at, updated_at
		FROM newsletter_subscribers WHERE email = $1
	`, normalized).Scan(
		&existing.ID, &existing.Email, &existing.IsActive, &existing.SubscribedAt,
		&existing.CreatedAt, &existing.UpdatedAt,
	)
	switch {
	case err == nil && existing.IsActive:
		return nil, false, ErrAlreadySubscribed
	case err == nil:
		// Reactivate subscription
		err = s.db.QueryRow(ctx, `
			UPDATE newsletter_subscribers
			SET is_active = TRUE, subscribed_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING id, email, is_active, subscribed_at, created_at, updated_at
		`, existing.ID).Scan(
			&existing.ID, &existing.Email, &existing.IsActive, &existing.SubscribedAt,
			&existing.CreatedAt, &existing.UpdatedAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to reactivate subscription: %w", err)
		}
		monitoring.RecordNewsletterEvent("reactivate")
		s.invalidateCount(ctx)
		return &existing, true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, false, fmt.Errorf("failed to check subscription: %w", err)
	}

	var sub models.NewsletterSubscriber
	err = s.db.QueryRow(ctx, `
		INSERT INTO newsletter_subscribers (email)
		VALUES ($1)
		RETURNING id, email, is_active, subscribed_at, created_at, updated_at
	`, normalized).Scan(
		&sub.ID, &sub.Email, &sub.IsActive, &sub.SubscribedAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		// The unique email index catches subscribes racing past the
		// existence check above.
		if isUniqueViolation(err) {
			return nil, false, ErrAlreadySubscribed
		}
		return nil, false, fmt.Errorf("failed to create subscription: %w", err)
	}

	monitoring.RecordNewsletterEvent("subscribe")
	s.invalidateCount(ctx)
	s.sendWelcomeEmail(ctx, sub.Email)

	return &sub, false, nil
}

// Unsubscribe deactivates an email's subscription
func (s *Service) Unsubscribe(ctx context.Context, email string) (*models.NewsletterSubscriber, error) {
	normalized, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	var sub models.NewsletterSubscriber
	err = s.db.QueryRow(ctx, `
		SELECT id, email, is_active, subscribed_at, created_at, updated_at
		FROM newsletter_subscribers WHERE email = $1
	`, normalized).Scan(
		&sub.ID, &sub.Email, &sub.IsActive, &sub.SubscribedAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("failed to find subscriber: %w", err)
	}
	if !sub.IsActive {
		return nil, ErrAlreadyUnsubscribed
	}

	err = s.db.QueryRow(ctx, `
		UPDATE newsletter_subscribers SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, is_active, subscribed_at, created_at, updated_at
	`, sub.ID).Scan(
		&sub.ID, &sub.Email, &sub.IsActive, &sub.SubscribedAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to unsubscribe: %w", err)
	}

	monitoring.RecordNewsletterEvent("unsubscribe")
	s.invalidateCount(ctx)

	return &sub, nil
}

// ListActive returns all active subscribers, newest first
func (s *Service) ListActive(ctx context.Context) ([]models.NewsletterSubscriber, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, email, is_active, subscribed_at, created_at, updated_at
		FROM newsletter_subscribers
		WHERE is_active = TRUE
		ORDER BY subscribed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := []models.NewsletterSubscriber{}
	for rows.Next() {
		var sub models.NewsletterSubscriber
		err := rows.Scan(
			&sub.ID, &sub.Email, &sub.IsActive, &sub.SubscribedAt,
			&sub.CreatedAt, &sub.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subscribers = append(subscribers, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}
	return subscribers, nil
}

// Count returns the number of active subscribers, served from cache when
// possible
func (s *Service) Count(ctx context.Context) (int64, error) {
	var cached int64
	if err := s.cache.GetJSON(ctx, countCacheKey, &cached); err == nil {
		monitoring.RecordCacheHit("newsletter_count")
		return cached, nil
	}
	monitoring.RecordCacheMiss("newsletter_count")

	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM newsletter_subscribers WHERE is_active = TRUE
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}

	if err := s.cache.SetJSON(ctx, countCacheKey, count, countCacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("Newsletter count cache write failed")
	}

	return count, nil
}

func (s *Service) invalidateCount(ctx context.Context) {
	if err := s.cache.Delete(ctx, countCacheKey); err != nil {
		s.logger.Warn().Err(err).Msg("Newsletter count cache invalidation failed")
	}
}

// sendWelcomeEmail is a best-effort side effect; failures never surface to
// the subscriber.
func (s *Service) sendWelcomeEmail(ctx context.Context, to string) {
	const subject = "Welcome to IndiFarm Newsletter"
	const body = `<div style="font-family:Arial,sans-serif;line-height:1.5">
  <h2>Welcome to IndiFarm!</h2>
  <p>Thanks for subscribing. You'll receive updates about fresh products and local farms.</p>
</div>`

	if err := s.mail.Send(ctx, to, subject, body); err != nil {
		s.logger.Warn().Err(err).Str("to", to).Msg("Welcome email failed")
	}
}
