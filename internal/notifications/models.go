package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type LifecycleEventType string

const (
	LifecycleReservationCreated   LifecycleEventType = "RESERVATION_CREATED"
	LifecycleReservationConfirmed LifecycleEventType = "RESERVATION_CONFIRMED"
	LifecycleLateConfirmed        LifecycleEventType = "RESERVATION_LATE_CONFIRMED"
	LifecycleReservationCancelled LifecycleEventType = "RESERVATION_CANCELLED"
	LifecycleReservationExpired   LifecycleEventType = "RESERVATION_EXPIRED"
	LifecycleConflictFlagged      LifecycleEventType = "RECONCILIATION_CONFLICT_FLAGGED"
)

// LifecycleEvent is published after a reservation state change has committed
type LifecycleEvent struct {
	ID            uuid.UUID          `json:"id"`
	Type          LifecycleEventType `json:"type"`
	ReservationID uuid.UUID          `json:"reservation_id"`
	EventID       uuid.UUID          `json:"event_id"`
	BuyerID       string             `json:"buyer_id"`
	Quantity      int                `json:"quantity"`
	Status        string             `json:"status"`
	TicketRef     string             `json:"ticket_ref,omitempty"`
	AmountCents   int64              `json:"amount_cents,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func NewLifecycleEvent(eventType LifecycleEventType, reservationID, eventID uuid.UUID, buyerID string, occurredAt time.Time) *LifecycleEvent {
	return &LifecycleEvent{
		ID:            uuid.New(),
		Type:          eventType,
		ReservationID: reservationID,
		EventID:       eventID,
		BuyerID:       buyerID,
		OccurredAt:    occurredAt,
	}
}

// GetPartitionKey keeps every event of one reservation on the same partition
func (e *LifecycleEvent) GetPartitionKey() string {
	return e.ReservationID.String()
}

func (e *LifecycleEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
