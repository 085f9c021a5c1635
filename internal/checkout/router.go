package checkout

import (
	"github.com/gin-gonic/gin"
)

// SetupCheckoutRoutes expects router to already require an authenticated buyer
func SetupCheckoutRoutes(router *gin.RouterGroup, controller Controller) {
	router.POST("/checkout", controller.Checkout) // POST /api/v1/checkout
}
