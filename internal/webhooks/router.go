package webhooks

import (
	"github.com/gin-gonic/gin"
)

// SetupWebhookRoutes registers unauthenticated processor callbacks; the
// signature check is the authentication
func SetupWebhookRoutes(router *gin.RouterGroup, controller Controller) {
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", controller.HandleStripe) // POST /api/v1/webhooks/stripe
	}
}
