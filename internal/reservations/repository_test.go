package reservations

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"ticketing/internal/events"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	lockEventSQL         = `SELECT .*id.*capacity.* FROM "events" WHERE id = \$1.*FOR UPDATE`
	committedSQL         = regexp.QuoteMeta(`SELECT COALESCE(SUM(quantity), 0) FROM "reservations" WHERE event_id = $1`)
	insertReservationSQL = regexp.QuoteMeta(`INSERT INTO "reservations"`)
	insertProcessedSQL   = regexp.QuoteMeta(`INSERT INTO "processed_notifications"`) + `.*ON CONFLICT DO NOTHING`
	bySessionSQL         = regexp.QuoteMeta(`SELECT * FROM "reservations" WHERE payment_session_id = $1`)
	lockReservationSQL   = regexp.QuoteMeta(`SELECT * FROM "reservations" WHERE id = $1`) + `.*FOR UPDATE`
	conditionalSQL       = regexp.QuoteMeta(`UPDATE "reservations" SET`) + `.*WHERE id = \$\d+ AND status = \$\d+ AND confirmation_id IS NULL`
	insertTicketSQL      = regexp.QuoteMeta(`INSERT INTO "tickets"`)
	insertIssueSQL       = regexp.QuoteMeta(`INSERT INTO "reconciliation_issues"`)
	recordResultSQL      = regexp.QuoteMeta(`UPDATE "processed_notifications" SET "result"`)
	dueSQL               = regexp.QuoteMeta(`SELECT * FROM "reservations" WHERE status = $1 AND expires_at < $2 ORDER BY expires_at ASC`)
	expireSQL            = regexp.QuoteMeta(`UPDATE "reservations" SET`) + `.*WHERE id = \$\d+ AND status = \$\d+`
)

var reservationColumns = []string{
	"id", "event_id", "tier_code", "quantity", "unit_price_cents", "currency", "buyer_id",
	"status", "created_at", "expires_at", "payment_session_id", "confirmation_id", "closed_at", "updated_at",
}

func newSQLMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewRepository(db), mock
}

func reservationRow(r *Reservation) []driver.Value {
	var session interface{}
	if r.PaymentSessionID != nil {
		session = *r.PaymentSessionID
	}
	return []driver.Value{
		r.ID.String(), r.EventID.String(), r.TierCode, r.Quantity, r.UnitPriceCents, r.Currency, r.BuyerID,
		string(r.Status), r.CreatedAt, r.ExpiresAt, session, nil, nil, r.CreatedAt,
	}
}

func pendingReservation(eventID uuid.UUID, quantity int, now time.Time, sessionID string) *Reservation {
	r := &Reservation{
		ID:             uuid.New(),
		EventID:        eventID,
		TierCode:       "STANDARD",
		Quantity:       quantity,
		UnitPriceCents: 3000,
		Currency:       "EUR",
		BuyerID:        "buyer-1",
		Status:         StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(30 * time.Minute),
		UpdatedAt:      now,
	}
	if sessionID != "" {
		r.PaymentSessionID = &sessionID
	}
	return r
}

func TestRepository_ReserveLocksEventBeforeSumming(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	eventID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockEventSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity"}).AddRow(eventID.String(), 5))
	mock.ExpectQuery(committedSQL).
		WithArgs(eventID.String(), string(StatusConfirmed), string(StatusPending), now).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(2)))
	mock.ExpectExec(insertReservationSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	remaining, err := repo.Reserve(context.Background(), pendingReservation(eventID, 2, now, ""), now)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReserveSoldOutRollsBackWithoutInsert(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	eventID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockEventSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity"}).AddRow(eventID.String(), 3))
	mock.ExpectQuery(committedSQL).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(2)))
	mock.ExpectRollback()

	remaining, err := repo.Reserve(context.Background(), pendingReservation(eventID, 2, now, ""), now)
	assert.ErrorIs(t, err, ErrSoldOut)
	assert.Equal(t, 1, remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReserveUnknownEvent(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockEventSQL).WillReturnRows(sqlmock.NewRows([]string{"id", "capacity"}))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), pendingReservation(uuid.New(), 1, now, ""), now)
	assert.ErrorIs(t, err, events.ErrEventNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReserveRejectsUnknownStatus(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	eventID := uuid.New()

	reservation := pendingReservation(eventID, 1, now, "")
	reservation.Status = "HELD"

	mock.ExpectBegin()
	mock.ExpectQuery(lockEventSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity"}).AddRow(eventID.String(), 5))
	mock.ExpectQuery(committedSQL).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), reservation, now)
	assert.ErrorContains(t, err, "invalid reservation status")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ApplyPaymentOutcomeDuplicateNotification(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(insertProcessedSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := repo.ApplyPaymentOutcome(context.Background(), PaymentOutcome{
		ExternalEventID:  "evt_1",
		PaymentSessionID: "cs_1",
		Outcome:          OutcomeSucceeded,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, ActionDuplicate, result.Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ApplyPaymentOutcomeUnknownSessionRollsBack(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(insertProcessedSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(bySessionSQL).WillReturnRows(sqlmock.NewRows(reservationColumns))
	mock.ExpectRollback()

	result, err := repo.ApplyPaymentOutcome(context.Background(), PaymentOutcome{
		ExternalEventID:  "evt_1",
		PaymentSessionID: "cs_missing",
		Outcome:          OutcomeSucceeded,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, ActionUnknownSession, result.Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ApplyPaymentOutcomeConfirmsUnderLocks(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	eventID := uuid.New()
	held := pendingReservation(eventID, 2, now.Add(-5*time.Minute), "cs_1")

	mock.ExpectBegin()
	mock.ExpectExec(insertProcessedSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(bySessionSQL).
		WillReturnRows(sqlmock.NewRows(reservationColumns).AddRow(reservationRow(held)...))
	mock.ExpectQuery(lockEventSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity"}).AddRow(eventID.String(), 5))
	mock.ExpectQuery(lockReservationSQL).
		WillReturnRows(sqlmock.NewRows(reservationColumns).AddRow(reservationRow(held)...))
	mock.ExpectQuery(committedSQL + `.*id <> \$\d+`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(3)))
	mock.ExpectExec(conditionalSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTicketSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(recordResultSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.ApplyPaymentOutcome(context.Background(), PaymentOutcome{
		ExternalEventID:  "evt_1",
		PaymentSessionID: "cs_1",
		Outcome:          OutcomeSucceeded,
		ConfirmationID:   "pi_1",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, ActionConfirmed, result.Action)
	assert.Equal(t, StatusConfirmed, result.Reservation.Status)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, held.ID, result.Ticket.ReservationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ApplyPaymentOutcomeFlagsConflict(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	eventID := uuid.New()
	lapsed := pendingReservation(eventID, 2, now.Add(-time.Hour), "cs_1")
	lapsed.Status = StatusExpired

	mock.ExpectBegin()
	mock.ExpectExec(insertProcessedSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(bySessionSQL).
		WillReturnRows(sqlmock.NewRows(reservationColumns).AddRow(reservationRow(lapsed)...))
	mock.ExpectQuery(lockEventSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity"}).AddRow(eventID.String(), 5))
	mock.ExpectQuery(lockReservationSQL).
		WillReturnRows(sqlmock.NewRows(reservationColumns).AddRow(reservationRow(lapsed)...))
	mock.ExpectQuery(committedSQL).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(5)))
	mock.ExpectExec(conditionalSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertIssueSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(recordResultSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.ApplyPaymentOutcome(context.Background(), PaymentOutcome{
		ExternalEventID:  "evt_1",
		PaymentSessionID: "cs_1",
		Outcome:          OutcomeSucceeded,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, ActionConflict, result.Action)
	assert.Equal(t, StatusExpired, result.Reservation.Status)
	assert.Nil(t, result.Ticket)
	require.NotNil(t, result.Issue)
	assert.Equal(t, int64(6000), result.Issue.AmountCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ApplyPaymentOutcomeLostRaceRollsBack(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	eventID := uuid.New()
	held := pendingReservation(eventID, 1, now.Add(-5*time.Minute), "cs_1")

	mock.ExpectBegin()
	mock.ExpectExec(insertProcessedSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(bySessionSQL).
		WillReturnRows(sqlmock.NewRows(reservationColumns).AddRow(reservationRow(held)...))
	mock.ExpectQuery(lockEventSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity"}).AddRow(eventID.String(), 5))
	mock.ExpectQuery(lockReservationSQL).
		WillReturnRows(sqlmock.NewRows(reservationColumns).AddRow(reservationRow(held)...))
	mock.ExpectQuery(committedSQL).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))
	mock.ExpectExec(conditionalSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.ApplyPaymentOutcome(context.Background(), PaymentOutcome{
		ExternalEventID:  "evt_1",
		PaymentSessionID: "cs_1",
		Outcome:          OutcomeSucceeded,
	}, now)
	assert.ErrorIs(t, err, errConcurrentUpdate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ExpireDueSkipsRowsAlreadyClosed(t *testing.T) {
	repo, mock := newSQLMockRepository(t)
	now := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	eventID := uuid.New()
	first := pendingReservation(eventID, 1, now.Add(-time.Hour), "")
	second := pendingReservation(eventID, 2, now.Add(-time.Hour), "cs_2")

	mock.ExpectQuery(dueSQL).
		WillReturnRows(sqlmock.NewRows(reservationColumns).
			AddRow(reservationRow(first)...).
			AddRow(reservationRow(second)...))
	mock.ExpectBegin()
	mock.ExpectExec(expireSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// the reconciler confirmed the second one in between
	mock.ExpectBegin()
	mock.ExpectExec(expireSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	expired, err := repo.ExpireDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, first.ID, expired[0].ID)
	assert.Equal(t, StatusExpired, expired[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
