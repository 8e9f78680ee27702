package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents an order placed by a consumer with a farmer
type Order struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	ConsumerID  uuid.UUID       `json:"consumer_id" db:"consumer_id"`
	FarmerID    uuid.UUID       `json:"farmer_id" db:"farmer_id"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status      OrderStatus     `json:"status" db:"status"`
	// Rated is true iff exactly one rating references this order.
	Rated     bool      `json:"rated" db:"rated"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ratable reports whether the order is in a status that accepts a rating
func (o *Order) Ratable() bool {
	return o.Status == OrderStatusAccepted || o.Status == OrderStatusCompleted
}
