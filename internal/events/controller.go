package events

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ticketing/internal/shared/utils/response"
)

type Controller interface {
	GetEvent(c *gin.Context)
	GetOffers(c *gin.Context)
	GetAvailability(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) GetEvent(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	event, err := ctrl.service.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		respondEventError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}

func (ctrl *controller) GetOffers(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	offers, err := ctrl.service.GetOffers(c.Request.Context(), eventID)
	if err != nil {
		respondEventError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Offers retrieved successfully", offers, nil)
}

func (ctrl *controller) GetAvailability(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	availability, err := ctrl.service.GetAvailability(c.Request.Context(), eventID)
	if err != nil {
		respondEventError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Availability retrieved successfully", availability, nil)
}

func parseEventID(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, response.ErrorCode("INVALID_EVENT_ID"))
		return uuid.Nil, false
	}
	return eventID, true
}

func respondEventError(c *gin.Context, err error) {
	if errors.Is(err, ErrEventNotFound) {
		response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, response.ErrorCode("EVENT_NOT_FOUND"))
		return
	}
	response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to load event", nil, response.ErrorCode("INTERNAL_ERROR"))
}
