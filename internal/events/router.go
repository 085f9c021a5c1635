package events

import (
	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, controller Controller) {
	// Public read models
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("/:id", controller.GetEvent)                     // GET /api/v1/events/:id
		publicEvents.GET("/:id/offers", controller.GetOffers)             // GET /api/v1/events/:id/offers
		publicEvents.GET("/:id/availability", controller.GetAvailability) // GET /api/v1/events/:id/availability
	}
}
