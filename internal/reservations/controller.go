package reservations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ticketing/internal/shared/middleware"
	"ticketing/internal/shared/utils/response"
)

type Controller interface {
	GetReservation(c *gin.Context)
	CancelReservation(c *gin.Context)
	GetTicket(c *gin.Context)
	ListOpenIssues(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// GetReservation handles GET /api/v1/reservations/:id
func (ctrl *controller) GetReservation(c *gin.Context) {
	buyerID, reservationID, ok := buyerAndReservation(c)
	if !ok {
		return
	}

	reservation, err := ctrl.service.GetForBuyer(c.Request.Context(), reservationID, buyerID)
	if err != nil {
		respondReservationError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Reservation retrieved successfully", NewReservationResponse(reservation), nil)
}

// CancelReservation handles POST /api/v1/reservations/:id/cancel
func (ctrl *controller) CancelReservation(c *gin.Context) {
	buyerID, reservationID, ok := buyerAndReservation(c)
	if !ok {
		return
	}

	reservation, err := ctrl.service.Cancel(c.Request.Context(), reservationID, buyerID)
	if err != nil {
		respondReservationError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Reservation cancelled successfully", NewReservationResponse(reservation), nil)
}

// GetTicket handles GET /api/v1/reservations/:id/ticket
func (ctrl *controller) GetTicket(c *gin.Context) {
	buyerID, reservationID, ok := buyerAndReservation(c)
	if !ok {
		return
	}

	ticket, err := ctrl.service.GetTicket(c.Request.Context(), reservationID, buyerID)
	if err != nil {
		respondReservationError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket retrieved successfully", ticket, nil)
}

// ListOpenIssues handles GET /api/v1/admin/reconciliation-issues
func (ctrl *controller) ListOpenIssues(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	issues, err := ctrl.service.ListOpenIssues(c.Request.Context(), limit)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to list reconciliation issues", nil, response.ErrorCode("INTERNAL_ERROR"))
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Reconciliation issues retrieved successfully",
		IssueListResponse{Issues: issues, Count: len(issues)}, nil)
}

func buyerAndReservation(c *gin.Context) (string, uuid.UUID, bool) {
	buyerID, ok := middleware.GetBuyerID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, response.ErrorCode("UNAUTHORIZED"))
		return "", uuid.Nil, false
	}

	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid reservation ID", nil, response.ErrorCode("INVALID_RESERVATION_ID"))
		return "", uuid.Nil, false
	}
	return buyerID, reservationID, true
}

func respondReservationError(c *gin.Context, err error) {
	switch {
	// another buyer's reservation is reported as missing
	case errors.Is(err, ErrReservationNotFound), errors.Is(err, ErrNotReservationOwner):
		response.RespondJSON(c, "error", http.StatusNotFound, "Reservation not found", nil, response.ErrorCode("RESERVATION_NOT_FOUND"))
	case errors.Is(err, ErrTicketNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, "Ticket not issued for this reservation", nil, response.ErrorCode("TICKET_NOT_FOUND"))
	case errors.Is(err, ErrNotPending):
		response.RespondJSON(c, "error", http.StatusConflict, "Reservation is no longer pending", nil, response.ErrorCode("RESERVATION_NOT_PENDING"))
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to process reservation", nil, response.ErrorCode("INTERNAL_ERROR"))
	}
}
