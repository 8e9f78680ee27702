package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/indifarm/indifarm/internal/errors"
	"github.com/indifarm/indifarm/internal/middleware"
	"github.com/indifarm/indifarm/internal/rating"
)

// handleCreateRating handles POST /api/ratings
func (s *APIServer) handleCreateRating(c *gin.Context) {
	consumerID := middleware.GetUserIDFromContext(c)
	if consumerID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	var req rating.CreateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	created, err := s.ratingService.Create(c.Request.Context(), consumerID, &req)
	if err != nil {
		switch err {
		case rating.ErrOrderNotFound:
			respondError(c, apierrors.NewNotFoundError("Order not found"))
		case rating.ErrNotOrderOwner:
			respondError(c, apierrors.NewForbiddenError("Not authorized to rate this order"))
		case rating.ErrOrderNotRatable:
			respondError(c, apierrors.NewInvalidStateError("Can only rate accepted or completed orders"))
		case rating.ErrAlreadyRated:
			respondError(c, apierrors.NewConflictError("Order has already been rated"))
		case rating.ErrInvalidScore:
			respondError(c, apierrors.NewValidationError("Rating must be between 1 and 5"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusCreated, created)
}

// handleGetFarmerRatings handles GET /api/ratings/farmer/:farmerId
func (s *APIServer) handleGetFarmerRatings(c *gin.Context) {
	farmerID, err := uuid.Parse(c.Param("farmerId"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid farmer id"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := s.ratingService.ListForFarmer(c.Request.Context(), farmerID, page, limit)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Ratings,
		"pagination": gin.H{
			"current": result.CurrentPage,
			"pages":   result.TotalPages,
			"total":   result.TotalCount,
		},
	})
}

// handleGetOrderRating handles GET /api/ratings/order/:orderId
func (s *APIServer) handleGetOrderRating(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid order id"))
		return
	}

	viewerID := middleware.GetUserIDFromContext(c)
	role := middleware.GetRoleFromContext(c)

	r, err := s.ratingService.GetForOrder(c.Request.Context(), orderID, viewerID, role)
	if err != nil {
		switch err {
		case rating.ErrOrderNotFound:
			respondError(c, apierrors.NewNotFoundError("Order not found"))
		case rating.ErrNotOrderViewer:
			respondError(c, apierrors.NewForbiddenError("Not authorized to view this rating"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	// A nil rating is a valid response: the order is simply unrated
	respondData(c, http.StatusOK, r)
}

// handleUpdateRating handles PUT /api/ratings/:id
func (s *APIServer) handleUpdateRating(c *gin.Context) {
	ratingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid rating id"))
		return
	}

	requesterID := middleware.GetUserIDFromContext(c)

	var req rating.UpdateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	updated, err := s.ratingService.Update(c.Request.Context(), ratingID, requesterID, &req)
	if err != nil {
		switch err {
		case rating.ErrRatingNotFound:
			respondError(c, apierrors.NewNotFoundError("Rating not found"))
		case rating.ErrNotRatingOwner:
			respondError(c, apierrors.NewForbiddenError("Not authorized to update this rating"))
		case rating.ErrInvalidScore:
			respondError(c, apierrors.NewValidationError("Rating must be between 1 and 5"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusOK, updated)
}

// handleDeleteRating handles DELETE /api/ratings/:id
func (s *APIServer) handleDeleteRating(c *gin.Context) {
	ratingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid rating id"))
		return
	}

	requesterID := middleware.GetUserIDFromContext(c)

	if err := s.ratingService.Delete(c.Request.Context(), ratingID, requesterID); err != nil {
		switch err {
		case rating.ErrRatingNotFound:
			respondError(c, apierrors.NewNotFoundError("Rating not found"))
		case rating.ErrNotRatingOwner:
			respondError(c, apierrors.NewForbiddenError("Not authorized to delete this rating"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Rating deleted successfully",
	})
}
