package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownItem      = errors.New("unknown item")
	ErrUnknownUser      = errors.New("unknown user")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNoStockAvailable = errors.New("no stock available")

	// ErrPersistenceFailure wraps every error surfaced by the persistence
	// gateway. It is propagated to the caller of the tick that triggered it.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrInconsistentState marks a broken invariant (negative stock,
	// duplicate identifier). It aborts the current tick and is never retried.
	ErrInconsistentState = errors.New("inconsistent state")
)

type UnknownItemError struct {
	ItemID ItemID
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("unknown item %d", e.ItemID)
}

func (e *UnknownItemError) Unwrap() error {
	return ErrUnknownItem
}

type InvalidAmountError struct {
	ItemID ItemID
	Amount int
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %d for item %d", e.Amount, e.ItemID)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

type InconsistentStateError struct {
	Reason string
}

func (e *InconsistentStateError) Error() string {
	return "inconsistent state: " + e.Reason
}

func (e *InconsistentStateError) Unwrap() error {
	return ErrInconsistentState
}

func Inconsistent(format string, args ...any) error {
	return &InconsistentStateError{Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError carries the gateway operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceFailure, e.Err}
}

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsRecoverable reports outcomes that are handled inline and never abort a run.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNoStockAvailable)
}

// IsFatal reports errors that must stop the simulation.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInconsistentState)
}
