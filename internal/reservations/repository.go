package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketing/internal/events"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the capacity ledger and the only writer of reservation rows.
// Every status change is a conditional write against the stored status.
type Repository interface {
	// Reserve inserts a PENDING reservation only if the event still has room.
	// It returns the remaining capacity, and ErrSoldOut when it does not fit.
	Reserve(ctx context.Context, reservation *Reservation, now time.Time) (int, error)
	Snapshot(ctx context.Context, eventID uuid.UUID, now time.Time) (*events.Availability, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	GetTicketByReservationID(ctx context.Context, reservationID uuid.UUID) (*Ticket, error)
	ListOpenIssues(ctx context.Context, limit int) ([]ReconciliationIssue, error)

	AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID string, now time.Time) error
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) (*Reservation, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
	ApplyPaymentOutcome(ctx context.Context, outcome PaymentOutcome, now time.Time) (*ReconcileResult, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type lockedEvent struct {
	ID       uuid.UUID `gorm:"column:id"`
	Capacity int       `gorm:"column:capacity"`
}

// lockEvent takes the per-event row lock that serialises capacity decisions
func lockEvent(tx *gorm.DB, eventID uuid.UUID) (*lockedEvent, error) {
	var event lockedEvent
	err := tx.Table("events").
		Select("id, capacity").
		Where("id = ?", eventID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, events.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	return &event, nil
}

// committedQuantity sums CONFIRMED and live PENDING units for an event
func committedQuantity(tx *gorm.DB, eventID uuid.UUID, now time.Time, exclude uuid.UUID) (int, error) {
	var total int64
	query := tx.Model(&Reservation{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("event_id = ?", eventID).
		Where("(status = ? OR (status = ? AND expires_at > ?))", StatusConfirmed, StatusPending, now)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	if err := query.Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum committed quantity: %w", err)
	}
	return int(total), nil
}

func (r *repository) Reserve(ctx context.Context, reservation *Reservation, now time.Time) (int, error) {
	remaining := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := lockEvent(tx, reservation.EventID)
		if err != nil {
			return err
		}

		committed, err := committedQuantity(tx, reservation.EventID, now, uuid.Nil)
		if err != nil {
			return err
		}

		remaining = event.Capacity - committed
		if remaining < 0 {
			remaining = 0
		}
		if reservation.Quantity > remaining {
			return ErrSoldOut
		}

		if err := tx.Create(reservation).Error; err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		remaining -= reservation.Quantity
		return nil
	})

	return remaining, err
}

func (r *repository) Snapshot(ctx context.Context, eventID uuid.UUID, now time.Time) (*events.Availability, error) {
	var event lockedEvent
	err := r.db.WithContext(ctx).Table("events").Select("id, capacity").Where("id = ?", eventID).Take(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, events.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event capacity: %w", err)
	}

	var sums struct {
		Sold int64
		Held int64
	}
	err = r.db.WithContext(ctx).Model(&Reservation{}).
		Select(`COALESCE(SUM(CASE WHEN status = ? THEN quantity ELSE 0 END), 0) AS sold,
			COALESCE(SUM(CASE WHEN status = ? AND expires_at > ? THEN quantity ELSE 0 END), 0) AS held`,
			StatusConfirmed, StatusPending, now).
		Where("event_id = ?", eventID).
		Scan(&sums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum reservations: %w", err)
	}

	return events.NewAvailability(eventID.String(), event.Capacity, int(sums.Sold), int(sums.Held)), nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	var reservation Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) GetTicketByReservationID(ctx context.Context, reservationID uuid.UUID) (*Ticket, error) {
	var ticket Ticket
	err := r.db.WithContext(ctx).Where("reservation_id = ?", reservationID).First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) ListOpenIssues(ctx context.Context, limit int) ([]ReconciliationIssue, error) {
	var issues []ReconciliationIssue
	err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&issues).Error
	return issues, err
}

func (r *repository) AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND payment_session_id IS NULL", id).
		Updates(map[string]interface{}{
			"payment_session_id": sessionID,
			"updated_at":         now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to attach payment session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrFieldAlreadySet
	}
	return nil
}

func (r *repository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (*Reservation, error) {
	result := r.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]interface{}{
			"status":     StatusCancelled,
			"closed_at":  now,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", result.Error)
	}

	reservation, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return reservation, ErrNotPending
	}
	return reservation, nil
}

func (r *repository) ExpireDue(ctx context.Context, now time.Time, limit int) ([]Reservation, error) {
	var due []Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired reservations: %w", err)
	}

	expired := make([]Reservation, 0, len(due))
	for _, reservation := range due {
		result := r.db.WithContext(ctx).
			Model(&Reservation{}).
			Where("id = ? AND status = ?", reservation.ID, StatusPending).
			Updates(map[string]interface{}{
				"status":     StatusExpired,
				"closed_at":  now,
				"updated_at": now,
			})
		if result.Error != nil {
			return expired, fmt.Errorf("failed to expire reservation %s: %w", reservation.ID, result.Error)
		}
		// zero rows: the reconciler got there first
		if result.RowsAffected == 1 {
			reservation.Status = StatusExpired
			reservation.ClosedAt = &now
			reservation.UpdatedAt = now
			expired = append(expired, reservation)
		}
	}

	return expired, nil
}

var errUnknownSession = errors.New("no reservation for payment session")

func (r *repository) ApplyPaymentOutcome(ctx context.Context, outcome PaymentOutcome, now time.Time) (*ReconcileResult, error) {
	if err := outcome.validate(); err != nil {
		return nil, err
	}

	var result *ReconcileResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := ProcessedNotification{
			ExternalEventID:  outcome.ExternalEventID,
			PaymentSessionID: outcome.PaymentSessionID,
			Outcome:          outcome.Outcome,
			ProcessedAt:      now,
		}
		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if inserted.Error != nil {
			return fmt.Errorf("failed to record notification: %w", inserted.Error)
		}
		if inserted.RowsAffected == 0 {
			result = &ReconcileResult{Action: ActionDuplicate}
			return nil
		}

		var current Reservation
		if err := tx.Where("payment_session_id = ?", outcome.PaymentSessionID).Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errUnknownSession
			}
			return fmt.Errorf("failed to find reservation: %w", err)
		}

		// event row first, then the reservation row
		event, err := lockEvent(tx, current.EventID)
		if err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", current.ID).Take(&current).Error; err != nil {
			return fmt.Errorf("failed to lock reservation: %w", err)
		}

		otherCommitted, err := committedQuantity(tx, current.EventID, now, current.ID)
		if err != nil {
			return err
		}

		action := decideOutcome(&current, outcome.Outcome, event.Capacity, otherCommitted, now)
		result, err = applyAction(tx, &current, action, outcome, now)
		if err != nil {
			return err
		}

		return tx.Model(&ProcessedNotification{}).
			Where("external_event_id = ?", record.ExternalEventID).
			Update("result", string(action)).Error
	})

	if errors.Is(err, errUnknownSession) {
		return &ReconcileResult{Action: ActionUnknownSession}, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyAction(tx *gorm.DB, current *Reservation, action ReconcileAction, outcome PaymentOutcome, now time.Time) (*ReconcileResult, error) {
	result := &ReconcileResult{Action: action, Reservation: current}
	confirmationID := outcome.confirmationID()

	switch action {
	case ActionCancelled:
		if err := conditionalUpdate(tx, current, map[string]interface{}{
			"status":     StatusCancelled,
			"closed_at":  now,
			"updated_at": now,
		}); err != nil {
			return nil, err
		}
		current.Status = StatusCancelled
		current.ClosedAt = &now

	case ActionConfirmed, ActionLateConfirmed:
		if err := conditionalUpdate(tx, current, map[string]interface{}{
			"status":          StatusConfirmed,
			"confirmation_id": confirmationID,
			"closed_at":       now,
			"updated_at":      now,
		}); err != nil {
			return nil, err
		}
		current.Status = StatusConfirmed
		current.ConfirmationID = &confirmationID
		current.ClosedAt = &now

		ticket, err := newTicket(current, now)
		if err != nil {
			return nil, err
		}
		if err := tx.Create(ticket).Error; err != nil {
			return nil, fmt.Errorf("failed to create ticket: %w", err)
		}
		result.Ticket = ticket

	case ActionConflict:
		if err := conditionalUpdate(tx, current, map[string]interface{}{
			"confirmation_id": confirmationID,
			"updated_at":      now,
		}); err != nil {
			return nil, err
		}
		current.ConfirmationID = &confirmationID

		issue := newIssue(current, outcome, now)
		if err := tx.Create(issue).Error; err != nil {
			return nil, fmt.Errorf("failed to record reconciliation issue: %w", err)
		}
		result.Issue = issue
	}

	if action != ActionNoop {
		current.UpdatedAt = now
	}
	return result, nil
}

// conditionalUpdate writes only if the row still has the status and empty
// confirmation id we decided on
func conditionalUpdate(tx *gorm.DB, current *Reservation, updates map[string]interface{}) error {
	result := tx.Model(&Reservation{}).
		Where("id = ? AND status = ? AND confirmation_id IS NULL", current.ID, current.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update reservation: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		return errConcurrentUpdate
	}
	return nil
}
