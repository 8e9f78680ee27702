package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/indifarm/indifarm/internal/errors"
	"github.com/indifarm/indifarm/internal/middleware"
	"github.com/indifarm/indifarm/internal/models"
	"github.com/indifarm/indifarm/internal/order"
)

// handleCreateOrder handles POST /api/orders
func (s *APIServer) handleCreateOrder(c *gin.Context) {
	consumerID := middleware.GetUserIDFromContext(c)
	if consumerID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	var req order.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	created, err := s.orderService.Create(c.Request.Context(), consumerID, &req)
	if err != nil {
		switch err {
		case order.ErrFarmerNotFound:
			respondError(c, apierrors.NewNotFoundError("Farmer not found"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusCreated, created)
}

// handleListOrders handles GET /api/orders
func (s *APIServer) handleListOrders(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)

	orders, err := s.orderService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	respondData(c, http.StatusOK, orders)
}

// handleGetOrder handles GET /api/orders/:id
func (s *APIServer) handleGetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid order id"))
		return
	}

	viewerID := middleware.GetUserIDFromContext(c)
	role := middleware.GetRoleFromContext(c)

	o, err := s.orderService.GetForViewer(c.Request.Context(), orderID, viewerID, role)
	if err != nil {
		switch err {
		case order.ErrOrderNotFound:
			respondError(c, apierrors.NewNotFoundError("Order not found"))
		case order.ErrNotOrderParty:
			respondError(c, apierrors.NewForbiddenError("Not authorized to view this order"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusOK, o)
}

// updateOrderStatusRequest carries the target status for an order
type updateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,oneof=accepted rejected completed cancelled"`
}

// handleUpdateOrderStatus handles PUT /api/orders/:id/status
func (s *APIServer) handleUpdateOrderStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid order id"))
		return
	}

	actorID := middleware.GetUserIDFromContext(c)
	role := middleware.GetRoleFromContext(c)

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	updated, err := s.orderService.UpdateStatus(c.Request.Context(), orderID, actorID, role, req.Status)
	if err != nil {
		switch err {
		case order.ErrOrderNotFound:
			respondError(c, apierrors.NewNotFoundError("Order not found"))
		case order.ErrNotOrderParty:
			respondError(c, apierrors.NewForbiddenError("Not authorized to update this order"))
		case order.ErrInvalidTransition:
			respondError(c, apierrors.NewInvalidStateError("Invalid order status transition"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusOK, updated)
}
