package checkout

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"ticketing/internal/events"
	"ticketing/internal/reservations"
	"ticketing/internal/shared/middleware"
	"ticketing/internal/shared/utils/response"
)

type Controller interface {
	Checkout(c *gin.Context)
}

type controller struct {
	service   Service
	validator *validator.Validate
}

func NewController(service Service) Controller {
	return &controller{
		service:   service,
		validator: NewValidator(),
	}
}

// Checkout handles POST /api/v1/checkout
func (ctrl *controller) Checkout(c *gin.Context) {
	buyerID, ok := middleware.GetBuyerID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, response.ErrorCode("UNAUTHORIZED"))
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, response.ErrorWithDetails("INVALID_REQUEST", err.Error()))
		return
	}

	if err := ctrl.validator.Struct(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	resp, err := ctrl.service.Checkout(c.Request.Context(), buyerID, req)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Reservation held, continue to payment", resp, nil)
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fe := range validationErrors {
			if fe.StructField() == "TierCode" {
				response.RespondJSON(c, "error", http.StatusBadRequest, "Unknown or malformed tier code", nil, response.ErrorCode("INVALID_TIER"))
				return
			}
		}
	}
	response.RespondJSON(c, "error", http.StatusBadRequest, "Validation failed", nil, response.ErrorWithDetails("VALIDATION_ERROR", err.Error()))
}

func respondCheckoutError(c *gin.Context, err error) {
	var soldOut *SoldOutError
	switch {
	case errors.As(err, &soldOut):
		response.RespondJSON(c, "error", http.StatusConflict, "Not enough tickets remaining", SoldOutResponse{Remaining: soldOut.Remaining}, response.ErrorCode("SOLD_OUT"))
	case errors.Is(err, events.ErrInvalidTier):
		response.RespondJSON(c, "error", http.StatusBadRequest, "Unknown tier for this event", nil, response.ErrorCode("INVALID_TIER"))
	case errors.Is(err, reservations.ErrInvalidQuantity):
		response.RespondJSON(c, "error", http.StatusBadRequest, "Quantity must be between 1 and 10", nil, response.ErrorCode("INVALID_QUANTITY"))
	case errors.Is(err, events.ErrEventNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, response.ErrorCode("EVENT_NOT_FOUND"))
	case errors.Is(err, ErrEventNotOnSale):
		response.RespondJSON(c, "error", http.StatusConflict, "Event is not on sale", nil, response.ErrorCode("EVENT_NOT_ON_SALE"))
	case errors.Is(err, ErrPaymentInitiationFailed):
		response.RespondJSON(c, "error", http.StatusBadGateway, "Could not start payment, please retry", nil, response.ErrorCode("PAYMENT_INITIATION_FAILED"))
	default:
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Checkout failed", nil, response.ErrorCode("INTERNAL_ERROR"))
	}
}
