package reservations

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
)

// PaymentOutcome is a verified notification from the payment processor.
// ExternalEventID is the processor's own event id and the dedup key.
type PaymentOutcome struct {
	ExternalEventID  string
	PaymentSessionID string
	Outcome          Outcome
	ConfirmationID   string
	AmountCents      int64
}

func (o PaymentOutcome) validate() error {
	if o.ExternalEventID == "" {
		return fmt.Errorf("payment outcome: missing external event id")
	}
	if o.PaymentSessionID == "" {
		return fmt.Errorf("payment outcome: missing payment session id")
	}
	if o.Outcome != OutcomeSucceeded && o.Outcome != OutcomeFailed {
		return fmt.Errorf("payment outcome: unknown outcome %q", o.Outcome)
	}
	return nil
}

// confirmationID falls back to the notification id when the processor sent none
func (o PaymentOutcome) confirmationID() string {
	if o.ConfirmationID != "" {
		return o.ConfirmationID
	}
	return o.ExternalEventID
}

type ReconcileAction string

const (
	ActionConfirmed      ReconcileAction = "confirmed"
	ActionLateConfirmed  ReconcileAction = "late_confirmed"
	ActionCancelled      ReconcileAction = "cancelled"
	ActionConflict       ReconcileAction = "conflict"
	ActionNoop           ReconcileAction = "noop"
	ActionDuplicate      ReconcileAction = "duplicate"
	ActionUnknownSession ReconcileAction = "unknown_session"
)

// ReconcileResult describes what a payment outcome did
type ReconcileResult struct {
	Action      ReconcileAction
	Reservation *Reservation
	Ticket      *Ticket
	Issue       *ReconciliationIssue
}

// decideOutcome picks the transition for a locked reservation. otherCommitted is
// the event's committed quantity excluding this reservation.
func decideOutcome(r *Reservation, outcome Outcome, capacity, otherCommitted int, now time.Time) ReconcileAction {
	if outcome == OutcomeFailed {
		if r.Status == StatusPending {
			return ActionCancelled
		}
		return ActionNoop
	}

	// a confirmation id on a non-confirmed row means a conflict was already flagged
	if r.Status == StatusConfirmed || r.ConfirmationID != nil {
		return ActionNoop
	}

	// a buyer cancellation is final; the money is flagged for refund instead
	if r.Status == StatusCancelled {
		return ActionConflict
	}

	fits := otherCommitted+r.Quantity <= capacity
	late := r.Status == StatusExpired || !r.ExpiresAt.After(now)

	switch {
	case !fits:
		return ActionConflict
	case late:
		return ActionLateConfirmed
	default:
		return ActionConfirmed
	}
}

func newIssue(r *Reservation, outcome PaymentOutcome, now time.Time) *ReconciliationIssue {
	amount := outcome.AmountCents
	if amount == 0 {
		amount = r.AmountCents()
	}
	return &ReconciliationIssue{
		ID:              uuid.New(),
		ReservationID:   r.ID,
		EventID:         r.EventID,
		ExternalEventID: outcome.ExternalEventID,
		ConfirmationID:  outcome.confirmationID(),
		AmountCents:     amount,
		Reason:          issueReason(r),
		CreatedAt:       now,
	}
}

func issueReason(r *Reservation) string {
	if r.Status == StatusCancelled {
		return "payment received for a reservation the buyer cancelled"
	}
	return fmt.Sprintf("payment received for %s reservation whose hold ended at %s; no capacity left to honour it",
		r.Status, r.ExpiresAt.UTC().Format(time.RFC3339))
}
