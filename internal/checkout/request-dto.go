package checkout

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var tierCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

type CheckoutRequest struct {
	EventID      string  `json:"event_id" validate:"required,uuid"`
	TierCode     string  `json:"tier_code" validate:"required_without=SessionLabel,omitempty,tiercode"`
	SessionLabel *string `json:"session_label,omitempty" validate:"omitempty,min=1,max=100"`
	// range is enforced by the reservation manager so the error code stays INVALID_QUANTITY
	Quantity int `json:"quantity"`
}

// NewValidator returns a validator with the checkout rules registered
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("tiercode", func(fl validator.FieldLevel) bool {
		return tierCodePattern.MatchString(fl.Field().String())
	})
	return v
}
