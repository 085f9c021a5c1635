package reservations

import (
	"github.com/gin-gonic/gin"
)

// SetupReservationRoutes expects router to already require an authenticated buyer
func SetupReservationRoutes(router *gin.RouterGroup, controller Controller) {
	buyerReservations := router.Group("/reservations")
	{
		buyerReservations.GET("/:id", controller.GetReservation)            // GET /api/v1/reservations/:id
		buyerReservations.POST("/:id/cancel", controller.CancelReservation) // POST /api/v1/reservations/:id/cancel
		buyerReservations.GET("/:id/ticket", controller.GetTicket)          // GET /api/v1/reservations/:id/ticket
	}
}

// SetupAdminRoutes expects router to already require the admin role
func SetupAdminRoutes(router *gin.RouterGroup, controller Controller) {
	admin := router.Group("/admin")
	{
		admin.GET("/reconciliation-issues", controller.ListOpenIssues) // GET /api/v1/admin/reconciliation-issues
	}
}
