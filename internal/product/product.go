package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/indifarm/indifarm/internal/logging"
	"github.com/indifarm/indifarm/internal/mailer"
	"github.com/indifarm/indifarm/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductNotOwned = errors.New("product not owned by farmer")
	ErrInvalidPrice    = errors.New("price must be greater than zero")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SubscriberSource lists newsletter recipients for product announcements
type SubscriberSource interface {
	ListActive(ctx context.Context) ([]models.NewsletterSubscriber, error)
}

// Service handles product listing operations
type Service struct {
	db          *pgxpool.Pool
	subscribers SubscriberSource
	mail        mailer.Mailer
	notify      bool
	logger      zerolog.Logger
}

// NewService creates a new product service. When notify is true, new
// listings are announced by email to active newsletter subscribers.
func NewService(db *pgxpool.Pool, subscribers SubscriberSource, mail mailer.Mailer, notify bool) *Service {
	return &Service{
		db:          db,
		subscribers: subscribers,
		mail:        mail,
		notify:      notify,
		logger:      logging.NewLogger("product"),
	}
}

// CreateProductRequest represents a request to list a product
type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=100"`
	Description *string         `json:"description,omitempty"`
	Category    *string         `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Unit        string          `json:"unit" binding:"required,max=20"`
	Quantity    int             `json:"quantity" binding:"min=0"`
	IsOrganic   bool            `json:"is_organic"`
	Images      []string        `json:"images,omitempty"`
}

// UpdateProductRequest represents a partial product update
type UpdateProductRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Unit        *string          `json:"unit,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	IsOrganic   *bool            `json:"is_organic,omitempty"`
	Images      []string         `json:"images,omitempty"`
}

// ListFilter narrows the public product listing
type ListFilter struct {
	FarmerID *uuid.UUID
	Category *string
	Organic  *bool
}

// ListProductsResponse is a paginated product listing
type ListProductsResponse struct {
	Products    []models.Product `json:"products"`
	CurrentPage int              `json:"current_page"`
	TotalPages  int              `json:"total_pages"`
	TotalCount  int64            `json:"total_count"`
}

// ValidatePrice checks that a product price is positive
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

// Create lists a new product for a farmer
func (s *Service) Create(ctx context.Context, farmerID uuid.UUID, req *CreateProductRequest) (*models.Product, error) {
	if err := ValidatePrice(req.Price); err != nil {
		return nil, err
	}

	images := req.Images
	if images == nil {
		images = []string{}
	}

	var p models.Product
	err := s.db.QueryRow(ctx, `
		INSERT INTO products (farmer_id, name, description, category, price, unit, quantity, is_organic, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, farmer_id, name, description, category, price, unit, quantity, is_organic, images, created_at, updated_at
	`, farmerID, req.Name, req.Description, req.Category, req.Price, req.Unit,
		req.Quantity, req.IsOrganic, images,
	).Scan(
		&p.ID, &p.FarmerID, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.Unit, &p.Quantity, &p.IsOrganic, &p.Images, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.announceProduct(ctx, &p)

	return &p, nil
}

// announceProduct emails active newsletter subscribers about a new listing.
// Failures are logged and never surface to the farmer.
func (s *Service) announceProduct(ctx context.Context, p *models.Product) {
	if !s.notify || s.subscribers == nil || s.mail == nil {
		return
	}

	subs, err := s.subscribers.ListActive(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("New product announcement skipped")
		return
	}

	subject := fmt.Sprintf("New on IndiFarm: %s", p.Name)
	body := fmt.Sprintf(`<div style="font-family:Arial,sans-serif;line-height:1.5">
  <h2>%s</h2>
  <p>A farmer just listed %s at %s per %s. Check it out on IndiFarm!</p>
</div>`, p.Name, p.Name, p.Price.StringFixed(2), p.Unit)

	sent := 0
	for _, sub := range subs {
		if err := s.mail.Send(ctx, sub.Email, subject, body); err != nil {
			s.logger.Warn().Err(err).Str("to", sub.Email).Msg("Product announcement email failed")
			continue
		}
		sent++
	}

	s.logger.Info().
		Str("product_id", p.ID.String()).
		Int("sent", sent).
		Int("subscribers", len(subs)).
		Msg("New product announced to subscribers")
}

// GetByID retrieves a product by ID
func (s *Service) GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRow(ctx, `
		SELECT id, farmer_id, name, description, category, price, unit, quantity, is_organic, images, created_at, updated_at
		FROM products WHERE id = $1
	`, productID).Scan(
		&p.ID, &p.FarmerID, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.Unit, &p.Quantity, &p.IsOrganic, &p.Images, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// List returns a filtered, paginated page of products, newest first
func (s *Service) List(ctx context.Context, filter ListFilter, page, limit int) (*ListProductsResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := (page - 1) * limit

	where := "WHERE 1=1"
	args := []any{}
	arg := 1
	if filter.FarmerID != nil {
		where += fmt.Sprintf(" AND farmer_id = $%d", arg)
		args = append(args, *filter.FarmerID)
		arg++
	}
	if filter.Category != nil {
		where += fmt.Sprintf(" AND category = $%d", arg)
		args = append(args, *filter.Category)
		arg++
	}
	if filter.Organic != nil {
		where += fmt.Sprintf(" AND is_organic = $%d", arg)
		args = append(args, *filter.Organic)
		arg++
	}

	var total int64
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM products "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, farmer_id, name, description, category, price, unit, quantity, is_organic, images, created_at, updated_at
		FROM products %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, arg, arg+1)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		err := rows.Scan(
			&p.ID, &p.FarmerID, &p.Name, &p.Description, &p.Category, &p.Price,
			&p.Unit, &p.Quantity, &p.IsOrganic, &p.Images, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return &ListProductsResponse{
		Products:    products,
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
	}, nil
}

// Update applies a partial update to a product owned by the farmer
func (s *Service) Update(ctx context.Context, productID, farmerID uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	p, err := s.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.FarmerID != farmerID {
		return nil, ErrProductNotOwned
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Category != nil {
		p.Category = req.Category
	}
	if req.Price != nil {
		if err := ValidatePrice(*req.Price); err != nil {
			return nil, err
		}
		p.Price = *req.Price
	}
	if req.Unit != nil {
		p.Unit = *req.Unit
	}
	if req.Quantity != nil {
		p.Quantity = *req.Quantity
	}
	if req.IsOrganic != nil {
		p.IsOrganic = *req.IsOrganic
	}
	if req.Images != nil {
		p.Images = req.Images
	}

	err = s.db.QueryRow(ctx, `
		UPDATE products SET
			name = $1, description = $2, category = $3, price = $4,
			unit = $5, quantity = $6, is_organic = $7, images = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING id, farmer_id, name, description, category, price, unit, quantity, is_organic, images, created_at, updated_at
	`, p.Name, p.Description, p.Category, p.Price, p.Unit, p.Quantity,
		p.IsOrganic, p.Images, productID,
	).Scan(
		&p.ID, &p.FarmerID, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.Unit, &p.Quantity, &p.IsOrganic, &p.Images, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

// Delete removes a product owned by the farmer
func (s *Service) Delete(ctx context.Context, productID, farmerID uuid.UUID) error {
	p, err := s.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if p.FarmerID != farmerID {
		return ErrProductNotOwned
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, productID); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}
