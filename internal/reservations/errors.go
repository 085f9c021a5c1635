package reservations

import "errors"

var (
	ErrInvalidQuantity          = errors.New("quantity must be between 1 and 10")
	ErrMissingBuyer             = errors.New("buyer identifier is required")
	ErrSoldOut                  = errors.New("not enough capacity remaining")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrTicketNotFound           = errors.New("ticket not found")
	ErrNotReservationOwner      = errors.New("reservation belongs to another buyer")
	ErrNotPending               = errors.New("reservation is no longer pending")
	ErrFieldAlreadySet          = errors.New("write-once field already set")
	ErrLateConfirmationConflict = errors.New("payment succeeded after the hold lapsed and capacity is gone")

	// errConcurrentUpdate means a conditional write matched no row while the
	// row lock was held. The transaction is rolled back and the caller retries.
	errConcurrentUpdate = errors.New("reservation changed concurrently")
)
