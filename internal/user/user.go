package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/indifarm/indifarm/internal/cache"
	"github.com/indifarm/indifarm/internal/logging"
	"github.com/indifarm/indifarm/internal/models"
	"github.com/indifarm/indifarm/internal/monitoring"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrNotFarmer    = errors.New("user is not a farmer")
)

const profileCacheTTL = 60 * time.Second

// Service handles user and farmer record operations
type Service struct {
	db     *pgxpool.Pool
	cache  *cache.Redis
	logger zerolog.Logger
}

// NewService creates a new user service
func NewService(db *pgxpool.Pool, redis *cache.Redis) *Service {
	return &Service{
		db:     db,
		cache:  redis,
		logger: logging.NewLogger("user"),
	}
}

// FarmerProfile is the public view of a farmer, including the denormalized
// rating aggregate maintained by the rating workflow
type FarmerProfile struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	FarmName        *string         `json:"farm_name,omitempty"`
	FarmDescription *string         `json:"farm_description,omitempty"`
	Address         *string         `json:"address,omitempty"`
	AverageRating   decimal.Decimal `json:"average_rating"`
	TotalRatings    int             `json:"total_ratings"`
	MemberSince     time.Time       `json:"member_since"`
}

// GetByID retrieves a user by ID
func (s *Service) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, role, phone, address, farm_name, farm_description,
			average_rating, total_ratings, created_at, updated_at
		FROM users WHERE id = $1
	`, userID).Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.Phone, &u.Address,
		&u.FarmName, &u.FarmDescription, &u.AverageRating, &u.TotalRatings,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetFarmerProfile retrieves the public profile of a farmer, served from
// cache when possible
func (s *Service) GetFarmerProfile(ctx context.Context, farmerID uuid.UUID) (*FarmerProfile, error) {
	key := farmerProfileKey(farmerID)

	var cached FarmerProfile
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		monitoring.RecordCacheHit("farmer_profile")
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("farmer_id", farmerID.String()).Msg("Farmer profile cache read failed")
	}
	monitoring.RecordCacheMiss("farmer_profile")

	u, err := s.GetByID(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	if u.Role != models.UserRoleFarmer {
		return nil, ErrNotFarmer
	}

	profile := &FarmerProfile{
		ID:              u.ID,
		Name:            u.Name,
		FarmName:        u.FarmName,
		FarmDescription: u.FarmDescription,
		Address:         u.Address,
		AverageRating:   u.AverageRating,
		TotalRatings:    u.TotalRatings,
		MemberSince:     u.CreatedAt,
	}

	if err := s.cache.SetJSON(ctx, key, profile, profileCacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("farmer_id", farmerID.String()).Msg("Farmer profile cache write failed")
	}

	return profile, nil
}

// SetFarmerAggregate persists the denormalized rating aggregate for a farmer
// and invalidates the cached profile
func (s *Service) SetFarmerAggregate(ctx context.Context, farmerID uuid.UUID, averageRating decimal.Decimal, totalRatings int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET average_rating = $1, total_ratings = $2, updated_at = NOW()
		WHERE id = $3
	`, averageRating, totalRatings, farmerID)
	if err != nil {
		return fmt.Errorf("failed to set farmer aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := s.cache.Delete(ctx, farmerProfileKey(farmerID)); err != nil {
		s.logger.Warn().Err(err).Str("farmer_id", farmerID.String()).Msg("Farmer profile cache invalidation failed")
	}

	return nil
}

func farmerProfileKey(farmerID uuid.UUID) string {
	return fmt.Sprintf("farmer:profile:%s", farmerID)
}
