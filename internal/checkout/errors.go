package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
	ErrSessionAlreadyOpen      = errors.New("reservation already has a payment session")
	ErrEventNotOnSale          = errors.New("event is not on sale")
)

// SoldOutError carries how many units were left when a checkout was refused
type SoldOutError struct {
	Remaining int
}

func (e *SoldOutError) Error() string {
	return fmt.Sprintf("sold out: %d remaining", e.Remaining)
}
