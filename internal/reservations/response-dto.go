package reservations

import (
	"time"

	"github.com/google/uuid"
)

type ReservationResponse struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"event_id"`
	TierCode       string     `json:"tier_code"`
	SessionLabel   *string    `json:"session_label,omitempty"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

func NewReservationResponse(r *Reservation) *ReservationResponse {
	return &ReservationResponse{
		ID:             r.ID,
		EventID:        r.EventID,
		TierCode:       r.TierCode,
		SessionLabel:   r.SessionLabel,
		Quantity:       r.Quantity,
		UnitPriceCents: r.UnitPriceCents,
		AmountCents:    r.AmountCents(),
		Currency:       r.Currency,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		ClosedAt:       r.ClosedAt,
	}
}

type IssueListResponse struct {
	Issues []ReconciliationIssue `json:"issues"`
	Count  int                   `json:"count"`
}
