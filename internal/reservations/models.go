package reservations

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reservation is a time-boxed hold on event capacity. After creation only
// Status, PaymentSessionID, ConfirmationID, ClosedAt and UpdatedAt change,
// and the two external ids are written at most once.
type Reservation struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EventID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"event_id"`
	TierCode         string     `gorm:"size:50;not null" json:"tier_code"`
	SessionLabel     *string    `gorm:"size:100" json:"session_label,omitempty"`
	Quantity         int        `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPriceCents   int64      `gorm:"not null;check:unit_price_cents >= 0" json:"unit_price_cents"`
	Currency         string     `gorm:"type:varchar(3);not null" json:"currency"`
	BuyerID          string     `gorm:"size:128;not null;index" json:"buyer_id"`
	Status           Status     `gorm:"type:varchar(20);not null;check:status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'EXPIRED')" json:"status"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	ExpiresAt        time.Time  `gorm:"not null" json:"expires_at"`
	PaymentSessionID *string    `gorm:"size:255;uniqueIndex" json:"payment_session_id,omitempty"`
	ConfirmationID   *string    `gorm:"size:255" json:"confirmation_id,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AmountCents is the total charged for the reservation
func (r *Reservation) AmountCents() int64 {
	return r.UnitPriceCents * int64(r.Quantity)
}

// HoldsCapacity reports whether the reservation counts against the event at now
func (r *Reservation) HoldsCapacity(now time.Time) bool {
	switch r.Status {
	case StatusConfirmed:
		return true
	case StatusPending:
		return r.ExpiresAt.After(now)
	}
	return false
}

// BeforeCreate rejects a status the ledger does not know
func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid reservation status %q", r.Status)
	}
	return nil
}

func (Reservation) TableName() string {
	return "reservations"
}

// Ticket is the durable record of a paid reservation. Append-only.
type Ticket struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReservationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"reservation_id"`
	TicketRef      string    `gorm:"size:32;not null;uniqueIndex" json:"ticket_ref"`
	EventID        uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	TierCode       string    `gorm:"size:50;not null" json:"tier_code"`
	SessionLabel   *string   `gorm:"size:100" json:"session_label,omitempty"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	UnitPriceCents int64     `gorm:"not null" json:"unit_price_cents"`
	Currency       string    `gorm:"type:varchar(3);not null" json:"currency"`
	BuyerID        string    `gorm:"size:128;not null;index" json:"buyer_id"`
	ConfirmedAt    time.Time `gorm:"not null" json:"confirmed_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// ProcessedNotification records a payment notification that has been applied
type ProcessedNotification struct {
	ExternalEventID  string    `gorm:"primaryKey;size:255" json:"external_event_id"`
	PaymentSessionID string    `gorm:"size:255;index" json:"payment_session_id"`
	Outcome          Outcome   `gorm:"type:varchar(20);not null" json:"outcome"`
	Result           string    `gorm:"type:varchar(30)" json:"result"`
	ProcessedAt      time.Time `gorm:"not null" json:"processed_at"`
}

func (ProcessedNotification) TableName() string {
	return "processed_notifications"
}

// ReconciliationIssue is money received without inventory to back it
type ReconciliationIssue struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ReservationID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"reservation_id"`
	EventID         uuid.UUID  `gorm:"type:uuid;not null" json:"event_id"`
	ExternalEventID string     `gorm:"size:255;not null" json:"external_event_id"`
	ConfirmationID  string     `gorm:"size:255;not null" json:"confirmation_id"`
	AmountCents     int64      `gorm:"not null" json:"amount_cents"`
	Reason          string     `gorm:"type:text;not null" json:"reason"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func (ReconciliationIssue) TableName() string {
	return "reconciliation_issues"
}

func newTicket(r *Reservation, confirmedAt time.Time) (*Ticket, error) {
	ref, err := generateTicketRef(confirmedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket reference: %w", err)
	}
	return &Ticket{
		ID:             uuid.New(),
		ReservationID:  r.ID,
		TicketRef:      ref,
		EventID:        r.EventID,
		TierCode:       r.TierCode,
		SessionLabel:   r.SessionLabel,
		Quantity:       r.Quantity,
		UnitPriceCents: r.UnitPriceCents,
		Currency:       r.Currency,
		BuyerID:        r.BuyerID,
		ConfirmedAt:    confirmedAt,
	}, nil
}

// generateTicketRef returns TKT-YYYYMMDD-XXXXXX
func generateTicketRef(now time.Time) (string, error) {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	randomPart := make([]byte, 6)

	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("TKT-%s-%s", now.UTC().Format("20060102"), string(randomPart)), nil
}
