package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/indifarm/indifarm/internal/errors"
	"github.com/indifarm/indifarm/internal/middleware"
	"github.com/indifarm/indifarm/internal/product"
)

// handleListProducts handles GET /api/products
func (s *APIServer) handleListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	var filter product.ListFilter
	if raw := c.Query("farmer"); raw != "" {
		farmerID, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, apierrors.NewValidationError("Invalid farmer id"))
			return
		}
		filter.FarmerID = &farmerID
	}
	if raw := c.Query("category"); raw != "" {
		filter.Category = &raw
	}
	if raw := c.Query("organic"); raw != "" {
		organic, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, apierrors.NewValidationError("Invalid organic filter"))
			return
		}
		filter.Organic = &organic
	}

	result, err := s.productService.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Products,
		"pagination": gin.H{
			"current": result.CurrentPage,
			"pages":   result.TotalPages,
			"total":   result.TotalCount,
		},
	})
}

// handleGetProduct handles GET /api/products/:id
func (s *APIServer) handleGetProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid product id"))
		return
	}

	p, err := s.productService.GetByID(c.Request.Context(), productID)
	if err != nil {
		switch err {
		case product.ErrProductNotFound:
			respondError(c, apierrors.NewNotFoundError("Product not found"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusOK, p)
}

// handleCreateProduct handles POST /api/products
func (s *APIServer) handleCreateProduct(c *gin.Context) {
	farmerID := middleware.GetUserIDFromContext(c)
	if farmerID == uuid.Nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return
	}

	var req product.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	created, err := s.productService.Create(c.Request.Context(), farmerID, &req)
	if err != nil {
		switch err {
		case product.ErrInvalidPrice:
			respondError(c, apierrors.NewValidationError("Price must be greater than zero"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusCreated, created)
}

// handleUpdateProduct handles PUT /api/products/:id
func (s *APIServer) handleUpdateProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid product id"))
		return
	}

	farmerID := middleware.GetUserIDFromContext(c)

	var req product.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	updated, err := s.productService.Update(c.Request.Context(), productID, farmerID, &req)
	if err != nil {
		switch err {
		case product.ErrProductNotFound:
			respondError(c, apierrors.NewNotFoundError("Product not found"))
		case product.ErrProductNotOwned:
			respondError(c, apierrors.NewForbiddenError("Not authorized to update this product"))
		case product.ErrInvalidPrice:
			respondError(c, apierrors.NewValidationError("Price must be greater than zero"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	respondData(c, http.StatusOK, updated)
}

// handleDeleteProduct handles DELETE /api/products/:id
func (s *APIServer) handleDeleteProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("Invalid product id"))
		return
	}

	farmerID := middleware.GetUserIDFromContext(c)

	if err := s.productService.Delete(c.Request.Context(), productID, farmerID); err != nil {
		switch err {
		case product.ErrProductNotFound:
			respondError(c, apierrors.NewNotFoundError("Product not found"))
		case product.ErrProductNotOwned:
			respondError(c, apierrors.NewForbiddenError("Not authorized to delete this product"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product deleted successfully",
	})
}
