package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserRole represents the role of a user
type UserRole string

const (
	UserRoleConsumer UserRole = "consumer"
	UserRoleFarmer   UserRole = "farmer"
	UserRoleAdmin    UserRole = "admin"
)

// User represents a user in the system
type User struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Email           string    `json:"email" db:"email"`
	Role            UserRole  `json:"role" db:"role"`
	Phone           *string   `json:"phone,omitempty" db:"phone"`
	Address         *string   `json:"address,omitempty" db:"address"`
	FarmName        *string   `json:"farm_name,omitempty" db:"farm_name"`
	FarmDescription *string   `json:"farm_description,omitempty" db:"farm_description"`

	// Derived aggregate maintained by the rating workflow. AverageRating is
	// the mean of all rating scores for the farmer rounded to one decimal,
	// 0 when the farmer has no ratings.
	AverageRating decimal.Decimal `json:"average_rating" db:"average_rating"`
	TotalRatings  int             `json:"total_ratings" db:"total_ratings"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
