package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/indifarm/indifarm/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNotOrderParty     = errors.New("user is not a party to this order")
	ErrFarmerNotFound    = errors.New("farmer not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Service handles order operations
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new order service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// CreateOrderRequest represents a request to place an order
type CreateOrderRequest struct {
	FarmerID    uuid.UUID       `json:"farmer_id" binding:"required"`
	TotalAmount decimal.Decimal `json:"total_amount" binding:"required"`
}

// Create places a new order for a consumer with a farmer
func (s *Service) Create(ctx context.Context, consumerID uuid.UUID, req *CreateOrderRequest) (*models.Order, error) {
	// The farmer must exist and actually be a farmer
	var role models.UserRole
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, req.FarmerID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFarmerNotFound
		}
		return nil, fmt.Errorf("failed to check farmer: %w", err)
	}
	if role != models.UserRoleFarmer {
		return nil, ErrFarmerNotFound
	}

	var o models.Order
	err = s.db.QueryRow(ctx, `
		INSERT INTO orders (consumer_id, farmer_id, total_amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, consumer_id, farmer_id, total_amount, status, rated, created_at, updated_at
	`, consumerID, req.FarmerID, req.TotalAmount, models.OrderStatusPending).Scan(
		&o.ID, &o.ConsumerID, &o.FarmerID, &o.TotalAmount, &o.Status, &o.Rated,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &o, nil
}

// GetByID retrieves an order by ID
func (s *Service) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := s.db.QueryRow(ctx, `
		SELECT id, consumer_id, farmer_id, total_amount, status, rated, created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID).Scan(
		&o.ID, &o.ConsumerID, &o.FarmerID, &o.TotalAmount, &o.Status, &o.Rated,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

// GetForViewer retrieves an order, enforcing that the viewer is the order's
// consumer, its farmer, or an admin
func (s *Service) GetForViewer(ctx context.Context, orderID, viewerID uuid.UUID, role models.UserRole) (*models.Order, error) {
	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.ConsumerID != viewerID && o.FarmerID != viewerID && role != models.UserRoleAdmin {
		return nil, ErrNotOrderParty
	}
	return o, nil
}

// allowedTransitions maps who may move an order to which status, from which
// statuses.
var allowedTransitions = map[models.OrderStatus]struct {
	from []models.OrderStatus
	by   models.UserRole
}{
	models.OrderStatusAccepted:  {from: []models.OrderStatus{models.OrderStatusPending}, by: models.UserRoleFarmer},
	models.OrderStatusRejected:  {from: []models.OrderStatus{models.OrderStatusPending}, by: models.UserRoleFarmer},
	models.OrderStatusCompleted: {from: []models.OrderStatus{models.OrderStatusAccepted}, by: models.UserRoleFarmer},
	models.OrderStatusCancelled: {from: []models.OrderStatus{models.OrderStatusPending}, by: models.UserRoleConsumer},
}

// UpdateStatus transitions an order to a new status on behalf of an actor.
// Farmers accept, reject, and complete their orders; consumers cancel their
// own pending orders.
func (s *Service) UpdateStatus(ctx context.Context, orderID, actorID uuid.UUID, role models.UserRole, newStatus models.OrderStatus) (*models.Order, error) {
	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rule, ok := allowedTransitions[newStatus]
	if !ok {
		return nil, ErrInvalidTransition
	}

	switch {
	case role == models.UserRoleAdmin:
		// Admins may drive any permitted transition
	case role != rule.by:
		return nil, ErrNotOrderParty
	case rule.by == models.UserRoleFarmer && o.FarmerID != actorID:
		return nil, ErrNotOrderParty
	case rule.by == models.UserRoleConsumer && o.ConsumerID != actorID:
		return nil, ErrNotOrderParty
	}

	validFrom := false
	for _, from := range rule.from {
		if o.Status == from {
			validFrom = true
			break
		}
	}
	if !validFrom {
		return nil, ErrInvalidTransition
	}

	err = s.db.QueryRow(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, consumer_id, farmer_id, total_amount, status, rated, created_at, updated_at
	`, newStatus, orderID).Scan(
		&o.ID, &o.ConsumerID, &o.FarmerID, &o.TotalAmount, &o.Status, &o.Rated,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return o, nil
}

// ListForUser returns the orders in which the user participates, newest first
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, consumer_id, farmer_id, total_amount, status, rated, created_at, updated_at
		FROM orders
		WHERE consumer_id = $1 OR farmer_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		err := rows.Scan(
			&o.ID, &o.ConsumerID, &o.FarmerID, &o.TotalAmount, &o.Status, &o.Rated,
			&o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}
