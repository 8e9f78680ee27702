package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/indifarm/indifarm/internal/errors"
	"github.com/indifarm/indifarm/internal/user"
)

// handleGetFarmerProfile handles GET /api/users/farmers/:id
func (s *APIServer) handleGetFarmerProfile(c *gin.Context) {
	farmerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid farmer id"))
		return
	}

	profile, err := s.userService.GetFarmerProfile(c.Request.Context(), farmerID)
	if err != nil {
		switch err {
		case user.ErrUserNotFound, user.ErrNotFarmer:
			respondError(c, apierrors.NewNotFoundError("Farmer not found"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusOK, profile)
}
