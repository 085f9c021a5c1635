// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"ticketing/internal/checkout"
	"ticketing/internal/events"
	"ticketing/internal/notifications"
	"ticketing/internal/payments"
	"ticketing/internal/reservations"
	"ticketing/internal/shared/config"
	"ticketing/internal/shared/database"
	"ticketing/internal/shared/middleware"
	"ticketing/internal/webhooks"
	"ticketing/pkg/cache"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config       *config.Config
	db           *database.DB
	gateway      payments.Gateway
	cacheService cache.Service

	eventRepo          events.Repository
	resolver           events.TierResolver
	reservationService reservations.Service
}

// NewRouter builds the shared services. Redis is optional; without it the
// read models are served straight from PostgreSQL.
func NewRouter(cfg *config.Config, db *database.DB, gateway payments.Gateway, publisher notifications.Publisher) *Router {
	r := &Router{
		config:   cfg,
		db:       db,
		gateway:  gateway,
		resolver: events.NewTierResolver(),
	}
	if db.Redis != nil {
		r.cacheService = cache.NewService(db.Redis)
	}

	r.eventRepo = events.NewRepository(db.GetPostgreSQL())

	r.reservationService = reservations.NewService(reservations.NewRepository(db.GetPostgreSQL()), reservations.Options{
		HoldWindow:      cfg.Reservation.HoldWindow,
		MaxQuantity:     cfg.Reservation.MaxQuantity,
		Currency:        cfg.Payment.Currency,
		AvailabilityTTL: cfg.Reservation.AvailabilityCacheTTL,
	})
	r.reservationService.SetPublisher(publisher)
	if r.cacheService != nil {
		r.reservationService.SetCacheService(r.cacheService)
	}

	return r
}

// Reservations exposes the reservation manager for background jobs
func (r *Router) Reservations() reservations.Service {
	return r.reservationService
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupEventRoutes(api)
		r.setupWebhookRoutes(api)

		buyer := api.Group("")
		buyer.Use(middleware.JWTAuthWithConfig(r.config))
		r.setupCheckoutRoutes(buyer)
		r.setupReservationRoutes(buyer)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "ticketing",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "ticketing",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}

// setupEventRoutes configures the public event read models
func (r *Router) setupEventRoutes(rg *gin.RouterGroup) {
	eventService := events.NewService(r.eventRepo, r.resolver, r.reservationService)
	if r.cacheService != nil {
		eventService.SetCacheService(r.cacheService)
	}
	events.SetupEventRoutes(rg, events.NewController(eventService))
}

// setupCheckoutRoutes wires resolver, ledger and payment broker into checkout
func (r *Router) setupCheckoutRoutes(rg *gin.RouterGroup) {
	broker := checkout.NewBroker(r.gateway, r.reservationService, checkout.BrokerConfig{
		SuccessURL:        r.config.Payment.SuccessURL,
		CancelURL:         r.config.Payment.CancelURL,
		Timeout:           r.config.Payment.InitiationTimeout,
		MaxRequestsPerSec: r.config.Payment.MaxRequestsPerSec,
	})
	checkoutService := checkout.NewService(r.eventRepo, r.resolver, r.reservationService, broker)
	checkout.SetupCheckoutRoutes(rg, checkout.NewController(checkoutService))
}

// setupReservationRoutes configures buyer reservation routes and the admin issue list
func (r *Router) setupReservationRoutes(rg *gin.RouterGroup) {
	reservationController := reservations.NewController(r.reservationService)
	reservations.SetupReservationRoutes(rg, reservationController)

	admin := rg.Group("")
	admin.Use(middleware.RequireAdmin())
	reservations.SetupAdminRoutes(admin, reservationController)
}

// setupWebhookRoutes configures the payment processor callback
func (r *Router) setupWebhookRoutes(rg *gin.RouterGroup) {
	reconciler := webhooks.NewReconciler(r.reservationService)
	webhooks.SetupWebhookRoutes(rg, webhooks.NewController(r.gateway, reconciler, r.config.Payment.MaxWebhookBodyBytes))
}
