package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticketing/internal/payments"
	"ticketing/internal/reservations"
	"ticketing/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const reservationIDPlaceholder = "{RESERVATION_ID}"

// SessionStore persists the processor's session id on the reservation
type SessionStore interface {
	AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error
}

type BrokerConfig struct {
	SuccessURL        string
	CancelURL         string
	Timeout           time.Duration
	MaxRequestsPerSec float64
}

// Broker opens exactly one payment session per reservation
type Broker interface {
	Open(ctx context.Context, reservation *reservations.Reservation, description string) (string, error)
}

type broker struct {
	gateway payments.Gateway
	store   SessionStore
	cfg     BrokerConfig
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewBroker(gateway payments.Gateway, store SessionStore, cfg BrokerConfig) Broker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if cfg.MaxRequestsPerSec > 0 {
		limit = rate.Limit(cfg.MaxRequestsPerSec)
		burst = int(cfg.MaxRequestsPerSec)
		if burst < 1 {
			burst = 1
		}
	}

	return &broker{
		gateway: gateway,
		store:   store,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		log:     logger.GetDefault(),
	}
}

// Open returns the redirect URL only after the session id is stored. Every
// failure leaves the reservation PENDING for the sweeper to reclaim.
func (b *broker) Open(ctx context.Context, reservation *reservations.Reservation, description string) (string, error) {
	if reservation.PaymentSessionID != nil {
		return "", fmt.Errorf("%w: %w", ErrPaymentInitiationFailed, ErrSessionAlreadyOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	if err := b.limiter.Wait(ctx); err != nil {
		return "", b.fail(ctx, reservation, "rate limiter", err)
	}

	id := reservation.ID.String()
	session, err := b.gateway.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		ReservationID:  id,
		EventID:        reservation.EventID.String(),
		BuyerID:        reservation.BuyerID,
		Description:    description,
		Quantity:       int64(reservation.Quantity),
		UnitPriceCents: reservation.UnitPriceCents,
		Currency:       reservation.Currency,
		SuccessURL:     strings.ReplaceAll(b.cfg.SuccessURL, reservationIDPlaceholder, id),
		CancelURL:      strings.ReplaceAll(b.cfg.CancelURL, reservationIDPlaceholder, id),
		ExpiresAt:      reservation.ExpiresAt,
	})
	if err != nil {
		return "", b.fail(ctx, reservation, "create session", err)
	}

	if err := b.store.AttachPaymentSession(ctx, reservation.ID, session.ID); err != nil {
		return "", b.fail(ctx, reservation, "persist session", err)
	}

	sessionID := session.ID
	reservation.PaymentSessionID = &sessionID
	return session.URL, nil
}

func (b *broker) fail(ctx context.Context, reservation *reservations.Reservation, step string, err error) error {
	b.log.WithError(err).ErrorContext(ctx, "payment initiation failed",
		slog.String("reservation_id", reservation.ID.String()),
		slog.String("step", step))
	return fmt.Errorf("%w: %s: %v", ErrPaymentInitiationFailed, step, err)
}
