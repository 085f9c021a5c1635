package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticketing/internal/events"
	"ticketing/internal/notifications"
	"ticketing/internal/shared/constants"
	"ticketing/pkg/cache"
	"ticketing/pkg/logger"

	"github.com/google/uuid"
)

// MaxQuantityLimit is the largest quantity any reservation may hold
const MaxQuantityLimit = 10

const maxApplyAttempts = 3

type ReserveInput struct {
	EventID        uuid.UUID
	TierCode       string
	SessionLabel   *string
	Quantity       int
	UnitPriceCents int64
	BuyerID        string
}

// ReserveResult reports a created hold, or SoldOut with what is left
type ReserveResult struct {
	Reservation *Reservation
	SoldOut     bool
	Remaining   int
}

type Options struct {
	HoldWindow      time.Duration
	MaxQuantity     int
	Currency        string
	AvailabilityTTL time.Duration
	Now             func() time.Time
}

func DefaultOptions() Options {
	return Options{
		HoldWindow:      30 * time.Minute,
		MaxQuantity:     MaxQuantityLimit,
		Currency:        "eur",
		AvailabilityTTL: constants.TTL_EVENT_AVAILABILITY,
		Now:             time.Now,
	}
}

// Service is the reservation manager. It is the only component that changes
// reservation state, always through the repository's conditional writes.
type Service interface {
	SetCacheService(cacheService cache.Service)
	SetPublisher(publisher notifications.Publisher)

	Reserve(ctx context.Context, input ReserveInput) (*ReserveResult, error)
	Availability(ctx context.Context, eventID uuid.UUID) (*events.Availability, error)
	AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error

	Get(ctx context.Context, id uuid.UUID) (*Reservation, error)
	GetForBuyer(ctx context.Context, id uuid.UUID, buyerID string) (*Reservation, error)
	GetTicket(ctx context.Context, id uuid.UUID, buyerID string) (*Ticket, error)
	Cancel(ctx context.Context, id uuid.UUID, buyerID string) (*Reservation, error)

	ApplyPaymentOutcome(ctx context.Context, outcome PaymentOutcome) (*ReconcileResult, error)
	ExpireDue(ctx context.Context, limit int) ([]Reservation, error)
	ListOpenIssues(ctx context.Context, limit int) ([]ReconciliationIssue, error)
}

type service struct {
	repo         Repository
	opts         Options
	cacheService cache.Service
	publisher    notifications.Publisher
	log          *logger.Logger
}

func NewService(repo Repository, opts Options) Service {
	defaults := DefaultOptions()
	if opts.HoldWindow <= 0 {
		opts.HoldWindow = defaults.HoldWindow
	}
	if opts.MaxQuantity <= 0 || opts.MaxQuantity > MaxQuantityLimit {
		opts.MaxQuantity = MaxQuantityLimit
	}
	if opts.Currency == "" {
		opts.Currency = defaults.Currency
	}
	opts.Currency = strings.ToLower(opts.Currency)
	if opts.AvailabilityTTL <= 0 {
		opts.AvailabilityTTL = defaults.AvailabilityTTL
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	return &service{
		repo:      repo,
		opts:      opts,
		publisher: notifications.NoopPublisher{},
		log:       logger.GetDefault(),
	}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) SetPublisher(publisher notifications.Publisher) {
	if publisher == nil {
		publisher = notifications.NoopPublisher{}
	}
	s.publisher = publisher
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*ReserveResult, error) {
	if input.Quantity < 1 || input.Quantity > s.opts.MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	if strings.TrimSpace(input.BuyerID) == "" {
		return nil, ErrMissingBuyer
	}
	if input.UnitPriceCents < 0 {
		return nil, fmt.Errorf("unit price cannot be negative: %d", input.UnitPriceCents)
	}

	now := s.opts.Now()
	reservation := &Reservation{
		ID:             uuid.New(),
		EventID:        input.EventID,
		TierCode:       input.TierCode,
		SessionLabel:   input.SessionLabel,
		Quantity:       input.Quantity,
		UnitPriceCents: input.UnitPriceCents,
		Currency:       s.opts.Currency,
		BuyerID:        input.BuyerID,
		Status:         StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.opts.HoldWindow),
		UpdatedAt:      now,
	}

	remaining, err := s.repo.Reserve(ctx, reservation, now)
	if errors.Is(err, ErrSoldOut) {
		s.log.LogSoldOut(ctx, input.EventID.String(), input.Quantity, remaining)
		return &ReserveResult{SoldOut: true, Remaining: remaining}, nil
	}
	if err != nil {
		return nil, err
	}

	s.invalidateAvailability(ctx, input.EventID)
	s.log.LogReservationCreated(ctx, reservation.ID.String(), input.EventID.String(), input.BuyerID, input.Quantity, reservation.ExpiresAt)
	s.publish(ctx, notifications.LifecycleReservationCreated, reservation, nil)

	return &ReserveResult{Reservation: reservation, Remaining: remaining}, nil
}

func (s *service) Availability(ctx context.Context, eventID uuid.UUID) (*events.Availability, error) {
	if s.cacheService == nil {
		return s.repo.Snapshot(ctx, eventID, s.opts.Now())
	}

	var availability events.Availability
	err := s.cacheService.GetOrSet(ctx, constants.BuildAvailabilityKey(eventID.String()), s.opts.AvailabilityTTL,
		func() (interface{}, error) {
			return s.repo.Snapshot(ctx, eventID, s.opts.Now())
		}, &availability)
	if err != nil {
		if errors.Is(err, events.ErrEventNotFound) {
			return nil, events.ErrEventNotFound
		}
		return nil, err
	}
	return &availability, nil
}

func (s *service) AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("payment session id is required")
	}
	return s.repo.AttachPaymentSession(ctx, id, sessionID, s.opts.Now())
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetForBuyer(ctx context.Context, id uuid.UUID, buyerID string) (*Reservation, error) {
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.BuyerID != buyerID {
		return nil, ErrNotReservationOwner
	}
	return reservation, nil
}

func (s *service) GetTicket(ctx context.Context, id uuid.UUID, buyerID string) (*Ticket, error) {
	if _, err := s.GetForBuyer(ctx, id, buyerID); err != nil {
		return nil, err
	}
	return s.repo.GetTicketByReservationID(ctx, id)
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, buyerID string) (*Reservation, error) {
	if _, err := s.GetForBuyer(ctx, id, buyerID); err != nil {
		return nil, err
	}

	reservation, err := s.repo.Cancel(ctx, id, s.opts.Now())
	if err != nil {
		return reservation, err
	}

	s.invalidateAvailability(ctx, reservation.EventID)
	s.log.LogReservationCancelled(ctx, reservation.ID.String(), "buyer_cancelled")
	s.publish(ctx, notifications.LifecycleReservationCancelled, reservation, nil)
	return reservation, nil
}

func (s *service) ApplyPaymentOutcome(ctx context.Context, outcome PaymentOutcome) (*ReconcileResult, error) {
	var (
		result *ReconcileResult
		err    error
	)
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		result, err = s.repo.ApplyPaymentOutcome(ctx, outcome, s.opts.Now())
		if !errors.Is(err, errConcurrentUpdate) {
			break
		}
		s.log.Warn("reservation changed during reconciliation, retrying",
			slog.String("external_event_id", outcome.ExternalEventID),
			slog.Int("attempt", attempt))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply payment outcome: %w", err)
	}

	r := result.Reservation
	switch result.Action {
	case ActionConfirmed, ActionLateConfirmed:
		late := result.Action == ActionLateConfirmed
		s.log.LogReservationConfirmed(ctx, r.ID.String(), result.Ticket.TicketRef, *r.ConfirmationID, late)
		eventType := notifications.LifecycleReservationConfirmed
		if late {
			eventType = notifications.LifecycleLateConfirmed
		}
		s.invalidateAvailability(ctx, r.EventID)
		s.publish(ctx, eventType, r, result.Ticket)

	case ActionCancelled:
		s.log.LogReservationCancelled(ctx, r.ID.String(), "payment_failed")
		s.invalidateAvailability(ctx, r.EventID)
		s.publish(ctx, notifications.LifecycleReservationCancelled, r, nil)

	case ActionConflict:
		s.log.LogLateConfirmationConflict(ctx, r.ID.String(), r.EventID.String(),
			outcome.ExternalEventID, result.Issue.ConfirmationID, result.Issue.AmountCents)
		s.publish(ctx, notifications.LifecycleConflictFlagged, r, nil)
	}

	return result, nil
}

func (s *service) ExpireDue(ctx context.Context, limit int) ([]Reservation, error) {
	expired, err := s.repo.ExpireDue(ctx, s.opts.Now(), limit)

	touched := make(map[uuid.UUID]struct{})
	for i := range expired {
		r := &expired[i]
		touched[r.EventID] = struct{}{}
		s.log.LogReservationExpired(ctx, r.ID.String(), r.EventID.String(), r.Quantity)
		s.publish(ctx, notifications.LifecycleReservationExpired, r, nil)
	}
	for eventID := range touched {
		s.invalidateAvailability(ctx, eventID)
	}

	return expired, err
}

func (s *service) ListOpenIssues(ctx context.Context, limit int) ([]ReconciliationIssue, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListOpenIssues(ctx, limit)
}

func (s *service) invalidateAvailability(ctx context.Context, eventID uuid.UUID) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, constants.BuildAvailabilityKey(eventID.String())); err != nil {
		s.log.Warn("failed to invalidate availability cache",
			slog.String("event_id", eventID.String()), slog.Any("error", err))
	}
}

// publish runs after commit; a failure is logged and the state change stands
func (s *service) publish(ctx context.Context, eventType notifications.LifecycleEventType, r *Reservation, ticket *Ticket) {
	event := notifications.NewLifecycleEvent(eventType, r.ID, r.EventID, r.BuyerID, s.opts.Now())
	event.Quantity = r.Quantity
	event.Status = r.Status.String()
	event.AmountCents = r.AmountCents()
	if ticket != nil {
		event.TicketRef = ticket.TicketRef
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish lifecycle event",
			slog.String("type", string(eventType)),
			slog.String("reservation_id", r.ID.String()),
			slog.Any("error", err))
	}
}
