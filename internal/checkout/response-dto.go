package checkout

import (
	"time"

	"ticketing/internal/events"

	"github.com/google/uuid"
)

type CheckoutResponse struct {
	ReservationID  uuid.UUID          `json:"reservation_id"`
	RedirectURL    string             `json:"redirect_url"`
	ExpiresAt      time.Time          `json:"expires_at"`
	TierCode       string             `json:"tier_code,omitempty"`
	SessionLabel   *string            `json:"session_label,omitempty"`
	Quantity       int                `json:"quantity"`
	UnitPriceCents int64              `json:"unit_price_cents"`
	AmountCents    int64              `json:"amount_cents"`
	Currency       string             `json:"currency"`
	PriceSource    events.PriceSource `json:"price_source"`
}

type SoldOutResponse struct {
	Remaining int `json:"remaining"`
}
