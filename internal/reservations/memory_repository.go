package reservations

import (
	"context"
	"sort"
	"sync"
	"time"

	"ticketing/internal/events"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process Repository. A single mutex stands in for
// the database transaction, so it is only correct for a single instance. It
// backs the service tests of this package and of checkout, webhooks and
// sweeper; production wiring always uses NewRepository.
type MemoryRepository struct {
	mu           sync.Mutex
	capacities   map[uuid.UUID]int
	reservations map[uuid.UUID]*Reservation
	bySession    map[string]uuid.UUID
	tickets      map[uuid.UUID]*Ticket
	processed    map[string]ProcessedNotification
	issues       []ReconciliationIssue
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		capacities:   make(map[uuid.UUID]int),
		reservations: make(map[uuid.UUID]*Reservation),
		bySession:    make(map[string]uuid.UUID),
		tickets:      make(map[uuid.UUID]*Ticket),
		processed:    make(map[string]ProcessedNotification),
	}
}

// SetEventCapacity registers an event and its capacity
func (m *MemoryRepository) SetEventCapacity(eventID uuid.UUID, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacities[eventID] = capacity
}

func (m *MemoryRepository) committed(eventID uuid.UUID, now time.Time, exclude uuid.UUID) int {
	total := 0
	for id, r := range m.reservations {
		if r.EventID != eventID || id == exclude {
			continue
		}
		if r.HoldsCapacity(now) {
			total += r.Quantity
		}
	}
	return total
}

func (m *MemoryRepository) Reserve(ctx context.Context, reservation *Reservation, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	capacity, ok := m.capacities[reservation.EventID]
	if !ok {
		return 0, events.ErrEventNotFound
	}

	remaining := capacity - m.committed(reservation.EventID, now, uuid.Nil)
	if remaining < 0 {
		remaining = 0
	}
	if reservation.Quantity > remaining {
		return remaining, ErrSoldOut
	}

	stored := *reservation
	m.reservations[reservation.ID] = &stored
	return remaining - reservation.Quantity, nil
}

func (m *MemoryRepository) Snapshot(ctx context.Context, eventID uuid.UUID, now time.Time) (*events.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	capacity, ok := m.capacities[eventID]
	if !ok {
		return nil, events.ErrEventNotFound
	}

	sold, held := 0, 0
	for _, r := range m.reservations {
		if r.EventID != eventID {
			continue
		}
		switch {
		case r.Status == StatusConfirmed:
			sold += r.Quantity
		case r.HoldsCapacity(now):
			held += r.Quantity
		}
	}

	return events.NewAvailability(eventID.String(), capacity, sold, held), nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	out := *r
	return &out, nil
}

func (m *MemoryRepository) GetTicketByReservationID(ctx context.Context, reservationID uuid.UUID) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[reservationID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	out := *t
	return &out, nil
}

func (m *MemoryRepository) ListOpenIssues(ctx context.Context, limit int) ([]ReconciliationIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	open := make([]ReconciliationIssue, 0, len(m.issues))
	for _, issue := range m.issues {
		if issue.ResolvedAt == nil {
			open = append(open, issue)
		}
		if limit > 0 && len(open) == limit {
			break
		}
	}
	return open, nil
}

func (m *MemoryRepository) AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return ErrReservationNotFound
	}
	if r.PaymentSessionID != nil {
		return ErrFieldAlreadySet
	}
	r.PaymentSessionID = &sessionID
	r.UpdatedAt = now
	m.bySession[sessionID] = id
	return nil
}

func (m *MemoryRepository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	if r.Status != StatusPending {
		out := *r
		return &out, ErrNotPending
	}
	r.Status = StatusCancelled
	r.ClosedAt = &now
	r.UpdatedAt = now
	out := *r
	return &out, nil
}

func (m *MemoryRepository) ExpireDue(ctx context.Context, now time.Time, limit int) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*Reservation
	for _, r := range m.reservations {
		if r.Status == StatusPending && r.ExpiresAt.Before(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	expired := make([]Reservation, 0, len(due))
	for _, r := range due {
		r.Status = StatusExpired
		r.ClosedAt = &now
		r.UpdatedAt = now
		expired = append(expired, *r)
	}
	return expired, nil
}

func (m *MemoryRepository) ApplyPaymentOutcome(ctx context.Context, outcome PaymentOutcome, now time.Time) (*ReconcileResult, error) {
	if err := outcome.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.processed[outcome.ExternalEventID]; seen {
		return &ReconcileResult{Action: ActionDuplicate}, nil
	}

	id, ok := m.bySession[outcome.PaymentSessionID]
	if !ok {
		return &ReconcileResult{Action: ActionUnknownSession}, nil
	}
	r := m.reservations[id]

	capacity := m.capacities[r.EventID]
	action := decideOutcome(r, outcome.Outcome, capacity, m.committed(r.EventID, now, r.ID), now)
	result := &ReconcileResult{Action: action}
	confirmationID := outcome.confirmationID()

	switch action {
	case ActionCancelled:
		r.Status = StatusCancelled
		r.ClosedAt = &now
		r.UpdatedAt = now

	case ActionConfirmed, ActionLateConfirmed:
		ticket, err := newTicket(r, now)
		if err != nil {
			return nil, err
		}
		r.Status = StatusConfirmed
		r.ConfirmationID = &confirmationID
		r.ClosedAt = &now
		r.UpdatedAt = now
		ticket.ReservationID = r.ID
		m.tickets[r.ID] = ticket
		out := *ticket
		result.Ticket = &out

	case ActionConflict:
		r.ConfirmationID = &confirmationID
		r.UpdatedAt = now
		issue := newIssue(r, outcome, now)
		m.issues = append(m.issues, *issue)
		result.Issue = issue
	}

	m.processed[outcome.ExternalEventID] = ProcessedNotification{
		ExternalEventID:  outcome.ExternalEventID,
		PaymentSessionID: outcome.PaymentSessionID,
		Outcome:          outcome.Outcome,
		Result:           string(action),
		ProcessedAt:      now,
	}

	out := *r
	result.Reservation = &out
	return result, nil
}
