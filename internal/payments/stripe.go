package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe accepts expires_at between 30 minutes and 24 hours after creation
const (
	minSessionLifetime  = 30 * time.Minute
	maxSessionLifetime  = 24 * time.Hour
	sessionExpiryMargin = time.Minute
)

const (
	eventSessionCompleted      = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	eventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	eventSessionExpired        = "checkout.session.expired"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// StripeGateway opens hosted checkout sessions and verifies Stripe webhooks
type StripeGateway struct {
	client        *client.API
	webhookSecret string
	now           func() time.Time
}

// NewStripeGateway creates a gateway. backends may be nil for the live API.
func NewStripeGateway(cfg StripeConfig, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		client:        client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		now:           time.Now,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ReservationID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(req.Quantity),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.UnitPriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"reservation_id": req.ReservationID,
				"event_id":       req.EventID,
			},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey())
	params.AddMetadata("reservation_id", req.ReservationID)
	params.AddMetadata("event_id", req.EventID)
	params.AddMetadata("buyer_id", req.BuyerID)

	// follow the hold as closely as Stripe allows
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(sessionExpiry(req.ExpiresAt, g.now()).Unix())
	}

	session, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessorFailure, err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("%w: checkout session missing id or url", ErrProcessorFailure)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) ParseNotification(payload []byte, signatureHeader string) (*Notification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookSignatureInvalid, err)
	}

	eventType := string(event.Type)
	var outcome Outcome
	switch eventType {
	case eventSessionCompleted, eventAsyncPaymentSucceeded, eventAsyncPaymentFailed, eventSessionExpired:
	default:
		return nil, ErrIgnoredEvent
	}
	if event.Data == nil {
		return nil, ErrMalformedEvent
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: checkout session id missing", ErrMalformedEvent)
	}

	switch eventType {
	case eventSessionCompleted:
		// unpaid completions settle later through the async events
		switch session.PaymentStatus {
		case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
			outcome = OutcomeSucceeded
		default:
			return nil, ErrIgnoredEvent
		}
	case eventAsyncPaymentSucceeded:
		outcome = OutcomeSucceeded
	default:
		outcome = OutcomeFailed
	}

	notification := &Notification{
		ExternalEventID:  event.ID,
		EventType:        eventType,
		PaymentSessionID: session.ID,
		ReservationID:    session.ClientReferenceID,
		Outcome:          outcome,
		AmountCents:      session.AmountTotal,
	}
	if session.PaymentIntent != nil {
		notification.ConfirmationID = session.PaymentIntent.ID
	}
	if notification.ReservationID == "" {
		notification.ReservationID = session.Metadata["reservation_id"]
	}
	return notification, nil
}

// sessionExpiry clamps the hold expiry into the window Stripe accepts. A hold
// shorter than the minimum gets the earliest allowed expiry; a payment that
// lands after the hold lapsed goes through late confirmation.
func sessionExpiry(holdExpiresAt, now time.Time) time.Time {
	earliest := now.Add(minSessionLifetime + sessionExpiryMargin)
	latest := now.Add(maxSessionLifetime - sessionExpiryMargin)
	switch {
	case holdExpiresAt.Before(earliest):
		return earliest
	case holdExpiresAt.After(latest):
		return latest
	default:
		return holdExpiresAt
	}
}
