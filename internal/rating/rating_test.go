package rating

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/indifarm/indifarm/internal/models"
	"github.com/indifarm/indifarm/internal/user"
	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	if testDB == nil {
		t.Skip("Test database not available")
	}
	requireRatingTables(t, context.Background())
	return NewService(testDB, user.NewService(testDB, nil))
}

func strPtr(s string) *string { return &s }

func TestCreate_RecordsRatingAndAggregate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)
	consumerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, consumerID)

	orderID := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusCompleted)

	r, err := svc.Create(ctx, consumerID, &CreateRatingRequest{
		OrderID: orderID,
		Score:   5,
		Review:  strPtr("Great produce, fast delivery"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.Score != 5 {
		t.Errorf("Score = %d, want 5", r.Score)
	}
	if r.FarmerID != farmerID {
		t.Errorf("FarmerID = %s, want %s", r.FarmerID, farmerID)
	}
	assertRatedFlag(t, ctx, orderID, true)
	assertFarmerAggregate(t, ctx, farmerID, "5", 1)
}

func TestCreate_AcceptedOrderIsRatable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)
	consumerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, consumerID)

	orderID := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusAccepted)

	if _, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: orderID, Score: 4}); err != nil {
		t.Fatalf("Create on accepted order failed: %v", err)
	}
}

func TestCreate_Rejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)
	consumerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, consumerID)
	strangerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, strangerID)

	pendingOrder := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusPending)
	completedOrder := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusCompleted)

	t.Run("order not found", func(t *testing.T) {
		_, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: uuid.New(), Score: 3})
		if !errors.Is(err, ErrOrderNotFound) {
			t.Errorf("Expected ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("not order owner", func(t *testing.T) {
		_, err := svc.Create(ctx, strangerID, &CreateRatingRequest{OrderID: completedOrder, Score: 3})
		if !errors.Is(err, ErrNotOrderOwner) {
			t.Errorf("Expected ErrNotOrderOwner, got %v", err)
		}
	})

	t.Run("pending order not ratable", func(t *testing.T) {
		_, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: pendingOrder, Score: 3})
		if !errors.Is(err, ErrOrderNotRatable) {
			t.Errorf("Expected ErrOrderNotRatable, got %v", err)
		}
	})

	t.Run("invalid score", func(t *testing.T) {
		_, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: completedOrder, Score: 6})
		if !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Expected ErrInvalidScore, got %v", err)
		}
	})

	t.Run("already rated", func(t *testing.T) {
		if _, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: completedOrder, Score: 4}); err != nil {
			t.Fatalf("First rating failed: %v", err)
		}
		_, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: completedOrder, Score: 5})
		if !errors.Is(err, ErrAlreadyRated) {
			t.Errorf("Expected ErrAlreadyRated, got %v", err)
		}
	})

	t.Run("unique index backstops rated flag", func(t *testing.T) {
		// Clear the flag by hand so the fast-path check passes and the
		// insert reaches the unique index.
		if _, err := testDB.Exec(ctx, `UPDATE orders SET rated = FALSE WHERE id = $1`, completedOrder); err != nil {
			t.Fatalf("Failed to reset rated flag: %v", err)
		}
		_, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: completedOrder, Score: 5})
		if !errors.Is(err, ErrAlreadyRated) {
			t.Errorf("Expected ErrAlreadyRated from unique index, got %v", err)
		}
	})
}

func TestUpdate_OverwritesAndRefreshesAggregate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)
	consumerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, consumerID)

	orderID := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusCompleted)

	r, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: orderID, Score: 2})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := svc.Update(ctx, r.ID, consumerID, &UpdateRatingRequest{
		Score:       5,
		Review:      strPtr("Changed my mind, excellent"),
		IsAnonymous: true,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Score != 5 {
		t.Errorf("Score = %d, want 5", updated.Score)
	}
	if !updated.IsAnonymous {
		t.Error("Expected rating to be anonymous after update")
	}
	assertFarmerAggregate(t, ctx, farmerID, "5", 1)
}

func TestUpdate_Rejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)
	consumerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, consumerID)
	strangerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, strangerID)

	orderID := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusCompleted)
	r, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: orderID, Score: 3})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("rating not found", func(t *testing.T) {
		_, err := svc.Update(ctx, uuid.New(), consumerID, &UpdateRatingRequest{Score: 4})
		if !errors.Is(err, ErrRatingNotFound) {
			t.Errorf("Expected ErrRatingNotFound, got %v", err)
		}
	})

	t.Run("not rating owner", func(t *testing.T) {
		_, err := svc.Update(ctx, r.ID, strangerID, &UpdateRatingRequest{Score: 4})
		if !errors.Is(err, ErrNotRatingOwner) {
			t.Errorf("Expected ErrNotRatingOwner, got %v", err)
		}
	})

	t.Run("invalid score", func(t *testing.T) {
		_, err := svc.Update(ctx, r.ID, consumerID, &UpdateRatingRequest{Score: 0})
		if !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Expected ErrInvalidScore, got %v", err)
		}
	})
}

func TestDelete_ResetsOrderAndAggregate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)
	consumerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, consumerID)
	strangerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, strangerID)

	orderID := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusCompleted)
	r, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: orderID, Score: 4})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(ctx, r.ID, strangerID); !errors.Is(err, ErrNotRatingOwner) {
		t.Errorf("Expected ErrNotRatingOwner, got %v", err)
	}

	if err := svc.Delete(ctx, r.ID, consumerID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	assertRatedFlag(t, ctx, orderID, false)
	assertFarmerAggregate(t, ctx, farmerID, "0", 0)

	// The order can be rated again after deletion
	if _, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: orderID, Score: 2}); err != nil {
		t.Fatalf("Re-rating after delete failed: %v", err)
	}
	assertFarmerAggregate(t, ctx, farmerID, "2", 1)
}

func TestGetForOrder_ViewerAuthorization(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)
	consumerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, consumerID)
	strangerID := createTestConsumer(t, ctx)
	defer cleanupTestConsumer(t, ctx, strangerID)

	orderID := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusCompleted)

	t.Run("unrated order yields no rating", func(t *testing.T) {
		r, err := svc.GetForOrder(ctx, orderID, consumerID, models.UserRoleConsumer)
		if err != nil {
			t.Fatalf("GetForOrder failed: %v", err)
		}
		if r != nil {
			t.Errorf("Expected nil rating for unrated order, got %+v", r)
		}
	})

	created, err := svc.Create(ctx, consumerID, &CreateRatingRequest{OrderID: orderID, Score: 4})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("consumer can view", func(t *testing.T) {
		r, err := svc.GetForOrder(ctx, orderID, consumerID, models.UserRoleConsumer)
		if err != nil || r == nil || r.ID != created.ID {
			t.Fatalf("Consumer view failed: rating=%v err=%v", r, err)
		}
	})

	t.Run("farmer can view", func(t *testing.T) {
		r, err := svc.GetForOrder(ctx, orderID, farmerID, models.UserRoleFarmer)
		if err != nil || r == nil {
			t.Fatalf("Farmer view failed: rating=%v err=%v", r, err)
		}
	})

	t.Run("admin can view", func(t *testing.T) {
		r, err := svc.GetForOrder(ctx, orderID, uuid.New(), models.UserRoleAdmin)
		if err != nil || r == nil {
			t.Fatalf("Admin view failed: rating=%v err=%v", r, err)
		}
	})

	t.Run("stranger cannot view", func(t *testing.T) {
		_, err := svc.GetForOrder(ctx, orderID, strangerID, models.UserRoleConsumer)
		if !errors.Is(err, ErrNotOrderViewer) {
			t.Errorf("Expected ErrNotOrderViewer, got %v", err)
		}
	})

	t.Run("order not found", func(t *testing.T) {
		_, err := svc.GetForOrder(ctx, uuid.New(), consumerID, models.UserRoleConsumer)
		if !errors.Is(err, ErrOrderNotFound) {
			t.Errorf("Expected ErrOrderNotFound, got %v", err)
		}
	})
}

func TestListForFarmer_PaginationAndAnonymity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)

	// Three ratings, one anonymous
	for i, anonymous := range []bool{false, true, false} {
		consumerID := createTestConsumer(t, ctx)
		defer cleanupTestConsumer(t, ctx, consumerID)

		orderID := createTestOrder(t, ctx, consumerID, farmerID, models.OrderStatusCompleted)
		_, err := svc.Create(ctx, consumerID, &CreateRatingRequest{
			OrderID:     orderID,
			Score:       i + 3,
			IsAnonymous: anonymous,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	page, err := svc.ListForFarmer(ctx, farmerID, 1, 2)
	if err != nil {
		t.Fatalf("ListForFarmer failed: %v", err)
	}
	if page.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", page.TotalCount)
	}
	if page.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", page.TotalPages)
	}
	if page.CurrentPage != 1 {
		t.Errorf("CurrentPage = %d, want 1", page.CurrentPage)
	}
	if len(page.Ratings) != 2 {
		t.Fatalf("Expected 2 ratings on first page, got %d", len(page.Ratings))
	}

	page2, err := svc.ListForFarmer(ctx, farmerID, 2, 2)
	if err != nil {
		t.Fatalf("ListForFarmer page 2 failed: %v", err)
	}
	if len(page2.Ratings) != 1 {
		t.Fatalf("Expected 1 rating on second page, got %d", len(page2.Ratings))
	}

	// The anonymous entry never exposes the consumer's name
	found := false
	for _, e := range append(page.Ratings, page2.Ratings...) {
		if e.IsAnonymous {
			found = true
			if e.ConsumerName != "Anonymous" {
				t.Errorf("Anonymous rating exposes consumer name %q", e.ConsumerName)
			}
		} else if e.ConsumerName == "" || e.ConsumerName == "Anonymous" {
			t.Errorf("Named rating has unexpected consumer name %q", e.ConsumerName)
		}
	}
	if !found {
		t.Error("Expected an anonymous rating in the listing")
	}
}

func TestListForFarmer_EmptyAndDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	farmerID := createTestFarmer(t, ctx)
	defer cleanupTestFarmer(t, ctx, farmerID)

	// Out-of-range paging inputs fall back to defaults
	page, err := svc.ListForFarmer(ctx, farmerID, -3, 0)
	if err != nil {
		t.Fatalf("ListForFarmer failed: %v", err)
	}
	if page.CurrentPage != 1 {
		t.Errorf("CurrentPage = %d, want 1", page.CurrentPage)
	}
	if page.TotalCount != 0 || page.TotalPages != 0 {
		t.Errorf("Expected empty page, got total=%d pages=%d", page.TotalCount, page.TotalPages)
	}
	if len(page.Ratings) != 0 {
		t.Errorf("Expected no ratings, got %d", len(page.Ratings))
	}
}

func assertFarmerAggregate(t *testing.T, ctx context.Context, farmerID uuid.UUID, wantAverage string, wantCount int) {
	t.Helper()

	var average decimal.Decimal
	var count int
	err := testDB.QueryRow(ctx, `
		SELECT average_rating, total_ratings FROM users WHERE id = $1
	`, farmerID).Scan(&average, &count)
	if err != nil {
		t.Fatalf("Failed to read farmer aggregate: %v", err)
	}
	if count != wantCount {
		t.Errorf("Total ratings = %d, want %d", count, wantCount)
	}
	if !average.Equal(decimal.RequireFromString(wantAverage)) {
		t.Errorf("Average rating = %s, want %s", average.String(), wantAverage)
	}
}
