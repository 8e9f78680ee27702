// Package rating implements the rating workflow: consumer ratings of
// farmers tied 1:1 to orders, and the denormalized farmer aggregate kept in
// step with them.
package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/indifarm/indifarm/internal/logging"
	"github.com/indifarm/indifarm/internal/models"
	"github.com/indifarm/indifarm/internal/monitoring"
	"github.com/indifarm/indifarm/internal/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrRatingNotFound  = errors.New("rating not found")
	ErrNotOrderOwner   = errors.New("not authorized to rate this order")
	ErrNotOrderViewer  = errors.New("not authorized to view this rating")
	ErrNotRatingOwner  = errors.New("not authorized to modify this rating")
	ErrOrderNotRatable = errors.New("can only rate accepted or completed orders")
	ErrAlreadyRated    = errors.New("order has already been rated")
	ErrInvalidScore    = errors.New("score must be between 1 and 5")
)

const (
	uniqueViolationCode = "23505"
	defaultPageSize     = 10
	maxPageSize         = 100
)

// Service handles rating operations
type Service struct {
	db     *pgxpool.Pool
	users  *user.Service
	logger zerolog.Logger
}

// NewService creates a new rating service
func NewService(db *pgxpool.Pool, users *user.Service) *Service {
	return &Service{
		db:     db,
		users:  users,
		logger: logging.NewLogger("rating"),
	}
}

// CreateRatingRequest represents a request to rate an order
type CreateRatingRequest struct {
	OrderID     uuid.UUID `json:"orderId" binding:"required"`
	Score       int       `json:"rating" binding:"required"`
	Review      *string   `json:"review,omitempty" binding:"omitempty,max=500"`
	IsAnonymous bool      `json:"isAnonymous"`
}

// UpdateRatingRequest represents a request to overwrite a rating
type UpdateRatingRequest struct {
	Score       int     `json:"rating" binding:"required"`
	Review      *string `json:"review,omitempty" binding:"omitempty,max=500"`
	IsAnonymous bool    `json:"isAnonymous"`
}

// OrderSummary is the slice of an order shown alongside its rating
type OrderSummary struct {
	ID          uuid.UUID          `json:"id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Status      models.OrderStatus `json:"status"`
}

// FarmerRatingEntry is one rating in a farmer's public rating list
type FarmerRatingEntry struct {
	ID           uuid.UUID    `json:"id"`
	Score        int          `json:"score"`
	Review       *string      `json:"review,omitempty"`
	IsAnonymous  bool         `json:"is_anonymous"`
	ConsumerName string       `json:"consumer_name"`
	Order        OrderSummary `json:"order"`
	CreatedAt    time.Time    `json:"created_at"`
}

// FarmerRatingsPage is a page of a farmer's ratings
type FarmerRatingsPage struct {
	Ratings     []FarmerRatingEntry `json:"ratings"`
	CurrentPage int                 `json:"current_page"`
	TotalPages  int                 `json:"total_pages"`
	TotalCount  int64               `json:"total_count"`
}

// ValidateScore checks that a score is an integer in [1, 5]
func ValidateScore(score int) error {
	if score < 1 || score > 5 {
		return ErrInvalidScore
	}
	return nil
}

// AggregateScores computes the farmer aggregate from the full score set:
// the mean rounded half-up to one decimal place, 0 when the set is empty.
func AggregateScores(scores []int) (decimal.Decimal, int) {
	if len(scores) == 0 {
		return decimal.Zero, 0
	}
	sum := int64(0)
	for _, score := range scores {
		sum += int64(score)
	}
	average := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(scores))))
	return average.Round(1), len(scores)
}

// Create records a rating for an order on behalf of its consumer, marks the
// order rated, and refreshes the farmer's aggregate best-effort.
func (s *Service) Create(ctx context.Context, consumerID uuid.UUID, req *CreateRatingRequest) (*models.Rating, error) {
	if err := ValidateScore(req.Score); err != nil {
		return nil, err
	}

	var o models.Order
	err := s.db.QueryRow(ctx, `
		SELECT id, consumer_id, farmer_id, status, rated FROM orders WHERE id = $1
	`, req.OrderID).Scan(&o.ID, &o.ConsumerID, &o.FarmerID, &o.Status, &o.Rated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if o.ConsumerID != consumerID {
		return nil, ErrNotOrderOwner
	}
	if !o.Ratable() {
		return nil, ErrOrderNotRatable
	}
	if o.Rated {
		return nil, ErrAlreadyRated
	}

	// Rating insert and rated flag flip are one transaction; the aggregate
	// refresh happens after commit and is allowed to lag.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var r models.Rating
	err = tx.QueryRow(ctx, `
		INSERT INTO ratings (consumer_id, farmer_id, order_id, score, review, is_anonymous)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, consumer_id, farmer_id, order_id, score, review, is_anonymous, created_at, updated_at
	`, consumerID, o.FarmerID, o.ID, req.Score, req.Review, req.IsAnonymous).Scan(
		&r.ID, &r.ConsumerID, &r.FarmerID, &r.OrderID, &r.Score, &r.Review,
		&r.IsAnonymous, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		// The (order_id, consumer_id) unique index is the authoritative
		// duplicate check; the rated-flag read above is only a fast path.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrAlreadyRated
		}
		return nil, fmt.Errorf("failed to create rating: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET rated = TRUE, updated_at = NOW() WHERE id = $1
	`, o.ID); err != nil {
		return nil, fmt.Errorf("failed to mark order rated: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	monitoring.RecordRatingMutation("create")
	s.refreshFarmerAggregate(ctx, o.FarmerID)

	return &r, nil
}

// ListForFarmer returns a public page of a farmer's ratings, newest first
func (s *Service) ListForFarmer(ctx context.Context, farmerID uuid.UUID, page, limit int) (*FarmerRatingsPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := (page - 1) * limit

	var total int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM ratings WHERE farmer_id = $1
	`, farmerID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count ratings: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.score, r.review, r.is_anonymous, r.created_at,
			u.name, o.id, o.total_amount, o.status
		FROM ratings r
		JOIN users u ON u.id = r.consumer_id
		JOIN orders o ON o.id = r.order_id
		WHERE r.farmer_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`, farmerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	entries := []FarmerRatingEntry{}
	for rows.Next() {
		var e FarmerRatingEntry
		err := rows.Scan(
			&e.ID, &e.Score, &e.Review, &e.IsAnonymous, &e.CreatedAt,
			&e.ConsumerName, &e.Order.ID, &e.Order.TotalAmount, &e.Order.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		if e.IsAnonymous {
			e.ConsumerName = "Anonymous"
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ratings: %w", err)
	}

	return &FarmerRatingsPage{
		Ratings:     entries,
		CurrentPage: page,
		TotalPages:  TotalPages(total, limit),
		TotalCount:  total,
	}, nil
}

// TotalPages computes ceil(total / limit)
func TotalPages(total int64, limit int) int {
	pages := int(total) / limit
	if int(total)%limit > 0 {
		pages++
	}
	return pages
}

// GetForOrder returns the rating for an order, or nil when the order is
// unrated. The viewer must be the order's consumer, its farmer, or an admin.
func (s *Service) GetForOrder(ctx context.Context, orderID, viewerID uuid.UUID, role models.UserRole) (*models.Rating, error) {
	var o models.Order
	err := s.db.QueryRow(ctx, `
		SELECT id, consumer_id, farmer_id FROM orders WHERE id = $1
	`, orderID).Scan(&o.ID, &o.ConsumerID, &o.FarmerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if o.ConsumerID != viewerID && o.FarmerID != viewerID && role != models.UserRoleAdmin {
		return nil, ErrNotOrderViewer
	}

	var r models.Rating
	err = s.db.QueryRow(ctx, `
		SELECT id, consumer_id, farmer_id, order_id, score, review, is_anonymous, created_at, updated_at
		FROM ratings WHERE order_id = $1
	`, orderID).Scan(
		&r.ID, &r.ConsumerID, &r.FarmerID, &r.OrderID, &r.Score, &r.Review,
		&r.IsAnonymous, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// An unrated order is not an error
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return &r, nil
}

// GetByID retrieves a rating by ID
func (s *Service) GetByID(ctx context.Context, ratingID uuid.UUID) (*models.Rating, error) {
	var r models.Rating
	err := s.db.QueryRow(ctx, `
		SELECT id, consumer_id, farmer_id, order_id, score, review, is_anonymous, created_at, updated_at
		FROM ratings WHERE id = $1
	`, ratingID).Scan(
		&r.ID, &r.ConsumerID, &r.FarmerID, &r.OrderID, &r.Score, &r.Review,
		&r.IsAnonymous, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return &r, nil
}

// Update overwrites a rating's score, review, and anonymity on behalf of its
// owning consumer, then refreshes the farmer's aggregate best-effort.
func (s *Service) Update(ctx context.Context, ratingID, requesterID uuid.UUID, req *UpdateRatingRequest) (*models.Rating, error) {
	if err := ValidateScore(req.Score); err != nil {
		return nil, err
	}

	r, err := s.GetByID(ctx, ratingID)
	if err != nil {
		return nil, err
	}
	if r.ConsumerID != requesterID {
		return nil, ErrNotRatingOwner
	}

	err = s.db.QueryRow(ctx, `
		UPDATE ratings SET score = $1, review = $2, is_anonymous = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, consumer_id, farmer_id, order_id, score, review, is_anonymous, created_at, updated_at
	`, req.Score, req.Review, req.IsAnonymous, ratingID).Scan(
		&r.ID, &r.ConsumerID, &r.FarmerID, &r.OrderID, &r.Score, &r.Review,
		&r.IsAnonymous, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update rating: %w", err)
	}

	monitoring.RecordRatingMutation("update")
	s.refreshFarmerAggregate(ctx, r.FarmerID)

	return r, nil
}

// Delete removes a rating on behalf of its owning consumer, resets the
// order's rated flag, and refreshes the farmer's aggregate best-effort.
func (s *Service) Delete(ctx context.Context, ratingID, requesterID uuid.UUID) error {
	r, err := s.GetByID(ctx, ratingID)
	if err != nil {
		return err
	}
	if r.ConsumerID != requesterID {
		return ErrNotRatingOwner
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET rated = FALSE, updated_at = NOW() WHERE id = $1
	`, r.OrderID); err != nil {
		return fmt.Errorf("failed to reset order rated flag: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ratings WHERE id = $1`, ratingID); err != nil {
		return fmt.Errorf("failed to delete rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	monitoring.RecordRatingMutation("delete")
	s.refreshFarmerAggregate(ctx, r.FarmerID)

	return nil
}

// RecomputeFarmerAggregate recomputes a farmer's average rating and count
// from the full current set of that farmer's ratings and persists them.
// Recomputing from the full set is self-healing against any prior
// inconsistency.
func (s *Service) RecomputeFarmerAggregate(ctx context.Context, farmerID uuid.UUID) error {
	rows, err := s.db.Query(ctx, `SELECT score FROM ratings WHERE farmer_id = $1`, farmerID)
	if err != nil {
		return fmt.Errorf("failed to fetch scores: %w", err)
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var score int
		if err := rows.Scan(&score); err != nil {
			return fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate scores: %w", err)
	}

	average, count := AggregateScores(scores)
	if err := s.users.SetFarmerAggregate(ctx, farmerID, average, count); err != nil {
		return fmt.Errorf("failed to persist farmer aggregate: %w", err)
	}
	return nil
}

// refreshFarmerAggregate runs the recomputation as a best-effort side
// effect: the triggering mutation has already succeeded, so failures are
// logged and counted but never propagated to the caller.
func (s *Service) refreshFarmerAggregate(ctx context.Context, farmerID uuid.UUID) {
	if err := s.RecomputeFarmerAggregate(ctx, farmerID); err != nil {
		monitoring.RecordAggregateRecomputeFailure()
		s.logger.Error().
			Err(err).
			Str("farmer_id", farmerID.String()).
			Msg("Farmer aggregate recomputation failed")
	}
}
