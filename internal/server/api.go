package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/indifarm/indifarm/internal/cache"
	"github.com/indifarm/indifarm/internal/config"
	apierrors "github.com/indifarm/indifarm/internal/errors"
	"github.com/indifarm/indifarm/internal/logging"
	"github.com/indifarm/indifarm/internal/mailer"
	"github.com/indifarm/indifarm/internal/middleware"
	"github.com/indifarm/indifarm/internal/monitoring"
	"github.com/indifarm/indifarm/internal/newsletter"
	"github.com/indifarm/indifarm/internal/order"
	"github.com/indifarm/indifarm/internal/product"
	"github.com/indifarm/indifarm/internal/rating"
	"github.com/indifarm/indifarm/internal/user"
	"github.com/jackc/pgx/v5/pgxpool"
)

// APIServer represents the main API server
type APIServer struct {
	config            *config.Config
	router            *gin.Engine
	db                *pgxpool.Pool
	jwtAuthenticator  *middleware.JWTAuthenticator
	userService       *user.Service
	orderService      *order.Service
	ratingService     *rating.Service
	productService    *product.Service
	newsletterService *newsletter.Service
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, db *pgxpool.Pool, redis *cache.Redis) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	mail := mailer.NewBreakerMailer(
		mailer.NewLogMailer(&cfg.Mail, logging.NewLogger("mailer")),
		logging.NewLogger("mailer"),
	)

	userService := user.NewService(db, redis)
	newsletterService := newsletter.NewService(db, redis, mail)

	srv := &APIServer{
		config:            cfg,
		router:            router,
		db:                db,
		jwtAuthenticator:  middleware.NewJWTAuthenticator(&cfg.JWT),
		userService:       userService,
		orderService:      order.NewService(db),
		ratingService:     rating.NewService(db, userService),
		productService:    product.NewService(db, newsletterService, mail, cfg.Mail.NotifyNewProduct),
		newsletterService: newsletterService,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		// Rating routes
		ratings := api.Group("/ratings")
		{
			ratings.POST("", s.jwtAuthenticator.JWTAuth(), middleware.RequireConsumer(), s.handleCreateRating)
			ratings.GET("/farmer/:farmerId", s.handleGetFarmerRatings)
			ratings.GET("/order/:orderId", s.jwtAuthenticator.JWTAuth(), s.handleGetOrderRating)
			ratings.PUT("/:id", s.jwtAuthenticator.JWTAuth(), middleware.RequireConsumer(), s.handleUpdateRating)
			ratings.DELETE("/:id", s.jwtAuthenticator.JWTAuth(), middleware.RequireConsumer(), s.handleDeleteRating)
		}

		// Order routes
		orders := api.Group("/orders")
		orders.Use(s.jwtAuthenticator.JWTAuth())
		{
			orders.POST("", middleware.RequireConsumer(), s.handleCreateOrder)
			orders.GET("", s.handleListOrders)
			orders.GET("/:id", s.handleGetOrder)
			orders.PUT("/:id/status", s.handleUpdateOrderStatus)
		}

		// Product routes (public reads, farmer-only writes)
		products := api.Group("/products")
		{
			products.GET("", s.handleListProducts)
			products.GET("/:id", s.handleGetProduct)
			products.POST("", s.jwtAuthenticator.JWTAuth(), middleware.RequireFarmer(), s.handleCreateProduct)
			products.PUT("/:id", s.jwtAuthenticator.JWTAuth(), middleware.RequireFarmer(), s.handleUpdateProduct)
			products.DELETE("/:id", s.jwtAuthenticator.JWTAuth(), middleware.RequireFarmer(), s.handleDeleteProduct)
		}

		// User routes (public farmer profiles)
		users := api.Group("/users")
		{
			users.GET("/farmers/:id", s.handleGetFarmerProfile)
		}

		// Newsletter routes
		nl := api.Group("/newsletter")
		{
			nl.POST("/subscribe", s.handleNewsletterSubscribe)
			nl.POST("/unsubscribe", s.handleNewsletterUnsubscribe)
			nl.GET("/count", s.handleNewsletterCount)
			nl.GET("/subscribers", s.jwtAuthenticator.JWTAuth(), middleware.RequireAdmin(), s.handleNewsletterSubscribers)
		}
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
	})
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	requestID := c.GetString("request_id")
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, requestID))
}

// respondData sends a standardized success response
func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}
