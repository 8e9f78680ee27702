package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating represents a consumer's rating of a farmer, tied 1:1 to an order
type Rating struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ConsumerID  uuid.UUID `json:"consumer_id" db:"consumer_id"`
	FarmerID    uuid.UUID `json:"farmer_id" db:"farmer_id"`
	OrderID     uuid.UUID `json:"order_id" db:"order_id"`
	Score       int       `json:"score" db:"score"`
	Review      *string   `json:"review,omitempty" db:"review"`
	IsAnonymous bool      `json:"is_anonymous" db:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
