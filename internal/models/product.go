package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product listed by a farmer
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	FarmerID    uuid.UUID       `json:"farmer_id" db:"farmer_id"`
	Name        string          `json:"name" db:"name"`
	Description *string         `json:"description,omitempty" db:"description"`
	Category    *string         `json:"category,omitempty" db:"category"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Unit        string          `json:"unit" db:"unit"`
	Quantity    int             `json:"quantity" db:"quantity"`
	IsOrganic   bool            `json:"is_organic" db:"is_organic"`
	Images      []string        `json:"images" db:"images"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
