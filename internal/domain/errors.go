package domain

import "errors"

var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientLockedFunds = errors.New("insufficient locked funds")
	ErrDuplicateHold           = errors.New("duplicate hold")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrCarNotAvailable         = errors.New("car not available")
	ErrValidation              = errors.New("validation error")
	ErrConcurrentModification  = errors.New("concurrent modification")
	ErrNotFound                = errors.New("not found")

	// ErrFatalInconsistency marks a failed compensation. Records must be
	// reconciled by hand.
	ErrFatalInconsistency = errors.New("fatal inconsistency")
)
