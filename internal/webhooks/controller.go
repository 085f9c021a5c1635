package webhooks

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ticketing/internal/payments"
	"ticketing/internal/reservations"
	"ticketing/internal/shared/utils/response"
	"ticketing/pkg/logger"
)

const defaultMaxBodyBytes = int64(65536)

type Controller interface {
	HandleStripe(c *gin.Context)
}

type controller struct {
	gateway      payments.Gateway
	reconciler   Reconciler
	maxBodyBytes int64
	log          *logger.Logger
}

func NewController(gateway payments.Gateway, reconciler Reconciler, maxBodyBytes int64) Controller {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &controller{
		gateway:      gateway,
		reconciler:   reconciler,
		maxBodyBytes: maxBodyBytes,
		log:          logger.GetDefault(),
	}
}

type AckResponse struct {
	Received bool   `json:"received"`
	Action   string `json:"action"`
}

// HandleStripe handles POST /api/v1/webhooks/stripe. Any non-2xx makes the
// processor redeliver, so only storage failures and unknown sessions use one.
func (ctrl *controller) HandleStripe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.maxBodyBytes)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondJSON(c, "error", http.StatusRequestEntityTooLarge, "Payload too large", nil, response.ErrorCode("PAYLOAD_TOO_LARGE"))
			return
		}
		response.RespondJSON(c, "error", http.StatusBadRequest, "Error reading request body", nil, response.ErrorCode("INVALID_REQUEST"))
		return
	}

	notification, err := ctrl.gateway.ParseNotification(payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, payments.ErrWebhookSignatureInvalid):
		ctrl.log.LogWebhookSignatureInvalid(c.Request.Context(), c.ClientIP(), err)
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid signature", nil, response.ErrorCode("INVALID_SIGNATURE"))
		return
	case errors.Is(err, payments.ErrIgnoredEvent):
		response.RespondJSON(c, "success", http.StatusOK, "Event ignored", AckResponse{Received: true, Action: "ignored"}, nil)
		return
	case err != nil:
		response.RespondJSON(c, "error", http.StatusBadRequest, "Malformed event", nil, response.ErrorWithDetails("MALFORMED_EVENT", err.Error()))
		return
	}

	result, err := ctrl.reconciler.Reconcile(c.Request.Context(), notification)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to process event", nil, response.ErrorCode("INTERNAL_ERROR"))
		return
	}

	// the session may not be stored yet; ask for a redelivery
	if result.Action == reservations.ActionUnknownSession {
		response.RespondJSON(c, "error", http.StatusNotFound, "Unknown payment session", nil, response.ErrorCode("UNKNOWN_PAYMENT_SESSION"))
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event processed", AckResponse{Received: true, Action: string(result.Action)}, nil)
}
