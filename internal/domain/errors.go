package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrIllegalTransition      = errors.New("illegal transition")
	ErrInvalidAmount          = errors.New("amount must be positive and at most R10 000 000.00")
	ErrAmountImmutable        = errors.New("total amount is already set")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrNotParticipant         = errors.New("actor is not a party to this booking")
	ErrPaymentRequired        = errors.New("booking has not been paid")
)

// IllegalTransitionError names the rejected move. It matches ErrIllegalTransition with errors.Is.
type IllegalTransitionError struct {
	From BookingStatus
	To   BookingStatus
	Role Role
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s by %s", e.From, e.To, e.Role)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// StorageError wraps a store failure so callers can match ErrStorageUnavailable
// while the cause stays available for logging.
func StorageError(op string, err error) error {
	return &storageError{op: op, err: err}
}

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, ErrStorageUnavailable, e.err)
}

func (e *storageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.err}
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}
