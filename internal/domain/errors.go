package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the lending core wraps exactly one of these.
var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidTemporalState = errors.New("invalid temporal state")
	ErrGatewayError         = errors.New("payment gateway error")
	ErrPaymentNotSucceeded  = errors.New("payment not succeeded")
	ErrInvalidInput         = errors.New("invalid input")
)

var (
	ErrItemNotFound   = fmt.Errorf("item %w", ErrNotFound)
	ErrPersonNotFound = fmt.Errorf("person %w", ErrNotFound)

	ErrAlreadyHeld      = fmt.Errorf("%w: item is already held", ErrConflict)
	ErrNotHeld          = fmt.Errorf("%w: item is not held", ErrConflict)
	ErrAlreadyReserved  = fmt.Errorf("%w: item is already reserved", ErrConflict)
	ErrAlreadySettled   = fmt.Errorf("%w: debt is already settled", ErrConflict)
	ErrNothingToPay     = fmt.Errorf("%w: no unpaid debt", ErrConflict)
	ErrStaleItem        = fmt.Errorf("%w: item was modified concurrently", ErrConflict)
	ErrIntentUsed       = fmt.Errorf("%w: payment intent already used", ErrConflict)
	ErrPersonHoldsItems = fmt.Errorf("%w: person still holds items", ErrConflict)
	ErrItemInUse        = fmt.Errorf("%w: item is held, reserved or owing", ErrConflict)
	ErrEmailTaken       = fmt.Errorf("%w: email is already registered", ErrConflict)
	ErrNotReserver      = fmt.Errorf("%w: item is reserved by someone else", ErrConflict)

	ErrIntentMismatch = fmt.Errorf("%w: intent does not match the debt", ErrPaymentNotSucceeded)

	ErrNoBorrowDate = fmt.Errorf("%w: borrow date is not set", ErrInvalidTemporalState)
)
