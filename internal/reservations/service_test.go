package reservations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ticketing/internal/events"
	"ticketing/internal/notifications"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.LifecycleEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event *notifications.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []notifications.LifecycleEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.LifecycleEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	repo      *MemoryRepository
	clock     *testClock
	svc       Service
	publisher *recordingPublisher
	eventID   uuid.UUID
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	repo := NewMemoryRepository()
	clock := newTestClock()
	eventID := uuid.New()
	repo.SetEventCapacity(eventID, capacity)

	svc := NewService(repo, Options{HoldWindow: 30 * time.Minute, Now: clock.Now})
	publisher := &recordingPublisher{}
	svc.SetPublisher(publisher)

	return &fixture{repo: repo, clock: clock, svc: svc, publisher: publisher, eventID: eventID}
}

func (f *fixture) reserve(t *testing.T, buyerID string, quantity int) *ReserveResult {
	t.Helper()
	result, err := f.svc.Reserve(context.Background(), ReserveInput{
		EventID:        f.eventID,
		TierCode:       "STANDARD",
		Quantity:       quantity,
		UnitPriceCents: 3000,
		BuyerID:        buyerID,
	})
	require.NoError(t, err)
	return result
}

// reserveWithSession creates a hold and attaches a payment session to it
func (f *fixture) reserveWithSession(t *testing.T, buyerID string, quantity int, sessionID string) *Reservation {
	t.Helper()
	result := f.reserve(t, buyerID, quantity)
	require.False(t, result.SoldOut)
	require.NoError(t, f.svc.AttachPaymentSession(context.Background(), result.Reservation.ID, sessionID))
	return result.Reservation
}

func succeeded(externalID, sessionID string) PaymentOutcome {
	return PaymentOutcome{
		ExternalEventID:  externalID,
		PaymentSessionID: sessionID,
		Outcome:          OutcomeSucceeded,
		ConfirmationID:   "pi_" + externalID,
	}
}

func failed(externalID, sessionID string) PaymentOutcome {
	return PaymentOutcome{ExternalEventID: externalID, PaymentSessionID: sessionID, Outcome: OutcomeFailed}
}

func TestReserve_RejectsInvalidQuantity(t *testing.T) {
	f := newFixture(t, 100)

	for _, quantity := range []int{-1, 0, 11} {
		_, err := f.svc.Reserve(context.Background(), ReserveInput{
			EventID:  f.eventID,
			TierCode: "STANDARD",
			Quantity: quantity,
			BuyerID:  "buyer-1",
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity %d", quantity)
	}

	availability, err := f.svc.Availability(context.Background(), f.eventID)
	require.NoError(t, err)
	assert.Equal(t, 100, availability.Remaining)
}

func TestReserve_RequiresBuyer(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.Reserve(context.Background(), ReserveInput{EventID: f.eventID, TierCode: "STANDARD", Quantity: 1})
	assert.ErrorIs(t, err, ErrMissingBuyer)
}

func TestReserve_UnknownEvent(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.Reserve(context.Background(), ReserveInput{EventID: uuid.New(), TierCode: "STANDARD", Quantity: 1, BuyerID: "b"})
	assert.ErrorIs(t, err, events.ErrEventNotFound)
}

func TestReserve_SetsHoldWindow(t *testing.T) {
	f := newFixture(t, 10)

	result := f.reserve(t, "buyer-1", 2)

	require.NotNil(t, result.Reservation)
	assert.Equal(t, StatusPending, result.Reservation.Status)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), result.Reservation.ExpiresAt)
	assert.Equal(t, "eur", result.Reservation.Currency)
	assert.Equal(t, int64(6000), result.Reservation.AmountCents())
	assert.Equal(t, 8, result.Remaining)
	assert.Equal(t, []notifications.LifecycleEventType{notifications.LifecycleReservationCreated}, f.publisher.types())
}

func TestReserve_SoldOutReportsRemaining(t *testing.T) {
	f := newFixture(t, 5)
	f.reserve(t, "buyer-1", 3)

	result := f.reserve(t, "buyer-2", 3)

	assert.True(t, result.SoldOut)
	assert.Nil(t, result.Reservation)
	assert.Equal(t, 2, result.Remaining)
}

func TestReserve_ConcurrentLastUnits(t *testing.T) {
	f := newFixture(t, 100)
	for i := 0; i < 19; i++ {
		f.reserve(t, "early", 5)
	}

	const buyers = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		soldOut int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.Reserve(context.Background(), ReserveInput{
				EventID:  f.eventID,
				TierCode: "STANDARD",
				Quantity: 1,
				BuyerID:  uuid.NewString(),
			})
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if result.SoldOut {
				soldOut++
			} else {
				wins++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, wins)
	assert.Equal(t, buyers-5, soldOut)

	availability, err := f.svc.Availability(context.Background(), f.eventID)
	require.NoError(t, err)
	assert.Equal(t, 100, availability.Held)
	assert.Equal(t, 0, availability.Remaining)
	assert.True(t, availability.SoldOut)
}

func TestReserve_CapacityOneTwoBuyers(t *testing.T) {
	f := newFixture(t, 1)

	results := make([]*ReserveResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.svc.Reserve(context.Background(), ReserveInput{
				EventID: f.eventID, TierCode: "STANDARD", Quantity: 1, BuyerID: uuid.NewString(),
			})
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, r := range results {
		if r != nil && !r.SoldOut {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestReserve_LapsedHoldFreesCapacityBeforeSweep(t *testing.T) {
	f := newFixture(t, 1)
	first := f.reserve(t, "buyer-1", 1)
	require.False(t, first.SoldOut)

	assert.True(t, f.reserve(t, "buyer-2", 1).SoldOut)

	f.clock.Advance(31 * time.Minute)

	second := f.reserve(t, "buyer-2", 1)
	require.False(t, second.SoldOut)

	expired, err := f.svc.ExpireDue(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, first.Reservation.ID, expired[0].ID)
	assert.Equal(t, StatusExpired, expired[0].Status)
}

func TestAttachPaymentSession_WriteOnce(t *testing.T) {
	f := newFixture(t, 10)
	r := f.reserveWithSession(t, "buyer-1", 1, "cs_1")

	err := f.svc.AttachPaymentSession(context.Background(), r.ID, "cs_2")
	assert.ErrorIs(t, err, ErrFieldAlreadySet)

	stored, err := f.svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentSessionID)
	assert.Equal(t, "cs_1", *stored.PaymentSessionID)
}

func TestApplyPaymentOutcome_ConfirmsOnce(t *testing.T) {
	f := newFixture(t, 10)
	r := f.reserveWithSession(t, "buyer-1", 2, "cs_1")
	ctx := context.Background()

	first, err := f.svc.ApplyPaymentOutcome(ctx, succeeded("evt_1", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionConfirmed, first.Action)
	require.NotNil(t, first.Ticket)
	assert.Regexp(t, `^TKT-20260314-[A-Z0-9]{6}$`, first.Ticket.TicketRef)

	again, err := f.svc.ApplyPaymentOutcome(ctx, succeeded("evt_1", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionDuplicate, again.Action)

	// a different notification for the same payment changes nothing either
	other, err := f.svc.ApplyPaymentOutcome(ctx, succeeded("evt_2", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, other.Action)

	assert.Equal(t, 1, f.repo.TicketCount(r.ID))

	stored, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)
	require.NotNil(t, stored.ConfirmationID)
	assert.Equal(t, "pi_evt_1", *stored.ConfirmationID)

	availability, err := f.svc.Availability(ctx, f.eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, availability.Sold)
	assert.Equal(t, 0, availability.Held)
}

func TestApplyPaymentOutcome_FailedCancels(t *testing.T) {
	f := newFixture(t, 1)
	r := f.reserveWithSession(t, "buyer-1", 1, "cs_1")
	ctx := context.Background()

	result, err := f.svc.ApplyPaymentOutcome(ctx, failed("evt_1", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionCancelled, result.Action)
	assert.Equal(t, StatusCancelled, result.Reservation.Status)

	// capacity is free again
	assert.False(t, f.reserve(t, "buyer-2", 1).SoldOut)

	again, err := f.svc.ApplyPaymentOutcome(ctx, failed("evt_2", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, again.Action)
	assert.Equal(t, 0, f.repo.TicketCount(r.ID))
}

func TestApplyPaymentOutcome_UnknownSessionIsNotRecorded(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	result := f.reserve(t, "buyer-1", 1)
	outcome := succeeded("evt_early", "cs_late")

	early, err := f.svc.ApplyPaymentOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.Equal(t, ActionUnknownSession, early.Action)

	require.NoError(t, f.svc.AttachPaymentSession(ctx, result.Reservation.ID, "cs_late"))

	redelivered, err := f.svc.ApplyPaymentOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.Equal(t, ActionConfirmed, redelivered.Action)
}

func TestApplyPaymentOutcome_RejectsMalformed(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.ApplyPaymentOutcome(context.Background(), PaymentOutcome{PaymentSessionID: "cs", Outcome: OutcomeSucceeded})
	assert.Error(t, err)
}

func TestApplyPaymentOutcome_LateSuccessWithCapacity(t *testing.T) {
	f := newFixture(t, 5)
	r := f.reserveWithSession(t, "buyer-1", 2, "cs_1")
	ctx := context.Background()

	f.clock.Advance(31 * time.Minute)
	_, err := f.svc.ExpireDue(ctx, 100)
	require.NoError(t, err)

	result, err := f.svc.ApplyPaymentOutcome(ctx, succeeded("evt_1", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionLateConfirmed, result.Action)
	assert.Equal(t, StatusConfirmed, result.Reservation.Status)
	assert.Equal(t, 1, f.repo.TicketCount(r.ID))
	assert.Contains(t, f.publisher.types(), notifications.LifecycleLateConfirmed)
}

func TestApplyPaymentOutcome_SuccessAfterBuyerCancelIsFlagged(t *testing.T) {
	f := newFixture(t, 5)
	r := f.reserveWithSession(t, "buyer-1", 1, "cs_1")
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, r.ID, "buyer-1")
	require.NoError(t, err)

	result, err := f.svc.ApplyPaymentOutcome(ctx, succeeded("evt_1", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionConflict, result.Action)
	assert.Equal(t, StatusCancelled, result.Reservation.Status)
	assert.Nil(t, result.Ticket)
	require.NotNil(t, result.Issue)
	assert.Equal(t, r.ID, result.Issue.ReservationID)
	assert.Equal(t, 0, f.repo.TicketCount(r.ID))

	// capacity is still free for other buyers
	availability, err := f.svc.Availability(ctx, f.eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, availability.Sold)
	assert.Contains(t, f.publisher.types(), notifications.LifecycleConflictFlagged)
}

func TestApplyPaymentOutcome_LateSuccessConflict(t *testing.T) {
	f := newFixture(t, 1)
	late := f.reserveWithSession(t, "buyer-1", 1, "cs_1")
	ctx := context.Background()

	f.clock.Advance(31 * time.Minute)
	taker := f.reserve(t, "buyer-2", 1)
	require.False(t, taker.SoldOut)

	result, err := f.svc.ApplyPaymentOutcome(ctx, succeeded("evt_1", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionConflict, result.Action)
	require.NotNil(t, result.Issue)
	assert.Equal(t, late.ID, result.Issue.ReservationID)
	assert.Equal(t, int64(3000), result.Issue.AmountCents)
	assert.Nil(t, result.Ticket)
	assert.NotEqual(t, StatusConfirmed, result.Reservation.Status)

	issues, err := f.svc.ListOpenIssues(ctx, 10)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	// the conflicted payment is never turned into a ticket later
	again, err := f.svc.ApplyPaymentOutcome(ctx, succeeded("evt_2", "cs_1"))
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, again.Action)
	assert.Equal(t, 0, f.repo.TicketCount(late.ID))

	availability, err := f.svc.Availability(ctx, f.eventID)
	require.NoError(t, err)
	assert.LessOrEqual(t, availability.Sold+availability.Held, availability.Capacity)
	assert.Contains(t, f.publisher.types(), notifications.LifecycleConflictFlagged)
}

func TestSweeperAndWebhookRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t, 1)
		r := f.reserveWithSession(t, "buyer-1", 1, "cs_1")
		f.clock.Advance(31 * time.Minute)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.ExpireDue(context.Background(), 100)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyPaymentOutcome(context.Background(), succeeded("evt_1", "cs_1"))
			assert.NoError(t, err)
		}()
		wg.Wait()

		stored, err := f.svc.Get(context.Background(), r.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, stored.Status)
		assert.Equal(t, 1, f.repo.TicketCount(r.ID))
	}
}

func TestCancel_OwnerOnlyAndPendingOnly(t *testing.T) {
	f := newFixture(t, 3)
	r := f.reserve(t, "buyer-1", 1).Reservation
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, r.ID, "someone-else")
	assert.ErrorIs(t, err, ErrNotReservationOwner)

	cancelled, err := f.svc.Cancel(ctx, r.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, r.ID, "buyer-1")
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestGetTicket(t *testing.T) {
	f := newFixture(t, 3)
	r := f.reserveWithSession(t, "buyer-1", 1, "cs_1")
	ctx := context.Background()

	_, err := f.svc.GetTicket(ctx, r.ID, "buyer-1")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	_, err = f.svc.ApplyPaymentOutcome(ctx, succeeded("evt_1", "cs_1"))
	require.NoError(t, err)

	ticket, err := f.svc.GetTicket(ctx, r.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, r.ID, ticket.ReservationID)
	assert.Equal(t, "buyer-1", ticket.BuyerID)

	_, err = f.svc.GetTicket(ctx, r.ID, "buyer-2")
	assert.ErrorIs(t, err, ErrNotReservationOwner)
}

func TestExpireDue_RespectsLimit(t *testing.T) {
	f := newFixture(t, 10)
	for i := 0; i < 5; i++ {
		f.reserve(t, "buyer", 1)
	}
	f.clock.Advance(31 * time.Minute)

	first, err := f.svc.ExpireDue(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := f.svc.ExpireDue(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestPublishFailureDoesNotUndoState(t *testing.T) {
	f := newFixture(t, 2)
	f.publisher.err = errors.New("broker down")

	result := f.reserve(t, "buyer-1", 1)
	require.NotNil(t, result.Reservation)

	stored, err := f.svc.Get(context.Background(), result.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}
