package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/indifarm/indifarm/internal/errors"
	"github.com/indifarm/indifarm/internal/newsletter"
)

type newsletterRequest struct {
	Email string `json:"email" binding:"required"`
}

// handleNewsletterSubscribe handles POST /api/newsletter/subscribe
func (s *APIServer) handleNewsletterSubscribe(c *gin.Context) {
	var req newsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError("Email is required"))
		return
	}

	sub, reactivated, err := s.newsletterService.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		switch err {
		case newsletter.ErrInvalidEmail:
			respondError(c, apierrors.NewValidationError("Invalid email address"))
		case newsletter.ErrAlreadySubscribed:
			respondError(c, apierrors.NewConflictError("Email is already subscribed"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	if reactivated {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Welcome back! Your subscription has been reactivated.",
			"data":    sub,
		})
		return
	}
	respondData(c, http.StatusCreated, sub)
}

// handleNewsletterUnsubscribe handles POST /api/newsletter/unsubscribe
func (s *APIServer) handleNewsletterUnsubscribe(c *gin.Context) {
	var req newsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError("Email is required"))
		return
	}

	_, err := s.newsletterService.Unsubscribe(c.Request.Context(), req.Email)
	if err != nil {
		switch err {
		case newsletter.ErrInvalidEmail:
			respondError(c, apierrors.NewValidationError("Invalid email address"))
		case newsletter.ErrAlreadyUnsubscribed:
			respondError(c, apierrors.NewInvalidStateError("Email is already unsubscribed"))
		case newsletter.ErrSubscriberNotFound:
			respondError(c, apierrors.NewNotFoundError("Email not found in subscribers list"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "You have been unsubscribed successfully.",
	})
}

// handleNewsletterCount handles GET /api/newsletter/count
func (s *APIServer) handleNewsletterCount(c *gin.Context) {
	count, err := s.newsletterService.Count(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	respondData(c, http.StatusOK, gin.H{"count": count})
}

// handleNewsletterSubscribers handles GET /api/newsletter/subscribers (admin)
func (s *APIServer) handleNewsletterSubscribers(c *gin.Context) {
	subscribers, err := s.newsletterService.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"subscribers": subscribers,
		"count":       len(subscribers),
	})
}
