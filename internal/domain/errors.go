package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound            = errors.New("domain: not found")
	ErrConflict            = errors.New("domain: conflict")
	ErrUnauthorized        = errors.New("domain: unauthorized")
	ErrForbidden           = errors.New("domain: forbidden")
	ErrInvalidInput        = errors.New("domain: invalid input")
	ErrInvalidTransition   = errors.New("domain: invalid state transition")
	ErrInvalidLedgerState  = errors.New("domain: invalid ledger state")
	ErrInvalidAssignment   = errors.New("domain: invalid assignment")
	ErrAlreadyFailed       = errors.New("domain: payment already failed")
	ErrExternalUnavailable = errors.New("domain: external service unavailable")
)

// ErrUnknownPayment is returned when no payment matches a gateway reference.
// It wraps ErrNotFound so callers can treat it as a plain lookup miss.
var ErrUnknownPayment = fmt.Errorf("%w: unknown payment", ErrNotFound)

// TransitionError names the rejected move of a state machine.
type TransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: cannot transition from %q to %q", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NewTransitionError builds a TransitionError for any string-backed status type.
func NewTransitionError[S ~string](entity string, from, to S, reason string) *TransitionError {
	return &TransitionError{Entity: entity, From: string(from), To: string(to), Reason: reason}
}
