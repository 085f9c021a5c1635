package payments

import (
	"context"
	"errors"
	"time"
)

var (
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	// ErrIgnoredEvent marks a verified notification that carries no payment outcome
	ErrIgnoredEvent     = errors.New("webhook event ignored")
	ErrMalformedEvent   = errors.New("webhook event malformed")
	ErrProcessorFailure = errors.New("payment processor error")
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
)

// CheckoutSessionRequest describes one hosted checkout for one reservation
type CheckoutSessionRequest struct {
	ReservationID  string
	EventID        string
	BuyerID        string
	Description    string
	Quantity       int64
	UnitPriceCents int64
	Currency       string
	SuccessURL     string
	CancelURL      string
	ExpiresAt      time.Time
}

func (r CheckoutSessionRequest) AmountCents() int64 {
	return r.UnitPriceCents * r.Quantity
}

// IdempotencyKey makes retries for the same reservation map to one session
func (r CheckoutSessionRequest) IdempotencyKey() string {
	return "reservation-" + r.ReservationID
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Notification is a verified webhook reduced to what the reconciler needs
type Notification struct {
	ExternalEventID  string
	EventType        string
	PaymentSessionID string
	ReservationID    string
	Outcome          Outcome
	ConfirmationID   string
	AmountCents      int64
}

// Gateway is the payment processor boundary
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	// ParseNotification verifies the signature before looking at the payload.
	// It returns ErrWebhookSignatureInvalid or ErrIgnoredEvent for those cases.
	ParseNotification(payload []byte, signatureHeader string) (*Notification, error)
}
