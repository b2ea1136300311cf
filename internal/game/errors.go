package game

import (
	"errors"
	"fmt"
)

var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrInsufficientChips = errors.New("insufficient chips")
	ErrInvalidAction     = errors.New("invalid action")

	// ErrTableFull is carried by a CapacityError when every seat is taken
	ErrTableFull = errors.New("table is full")
	// ErrNotEnoughPlayers is returned by StartHand with fewer than two funded seats
	ErrNotEnoughPlayers = errors.New("not enough players")
	// ErrChipConservation means a settlement would create or destroy chips.
	// The settlement is discarded and the table halts.
	ErrChipConservation = errors.New("chip conservation violated")
	// ErrTableHalted is returned for every intent after a fatal error
	ErrTableHalted = errors.New("table halted")
	// ErrNotTournament is returned for tournament queries on a cash table
	ErrNotTournament = errors.New("not a tournament table")
)

// Code classifies a ValidationError
type Code string

const (
	CodeNotYourTurn       Code = "not_your_turn"
	CodeInsufficientChips Code = "insufficient_chips"
	CodeInvalidAction     Code = "invalid_action"
	CodeInvalidAmount     Code = "invalid_amount"
	CodeHandNotInProgress Code = "hand_not_in_progress"
	CodeHandInProgress    Code = "hand_in_progress"
	CodeUnknownSeat       Code = "unknown_seat"
	CodeDuplicateIdentity Code = "duplicate_identity"
)

// ValidationError rejects an intent without touching table state. It is
// reported only to the seat that sent the intent.
type ValidationError struct {
	Code Code
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is lets errors.Is match the sentinel for the error's code
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrNotYourTurn:
		return e.Code == CodeNotYourTurn
	case ErrInsufficientChips:
		return e.Code == CodeInsufficientChips
	case ErrInvalidAction:
		return e.Code == CodeInvalidAction || e.Code == CodeInvalidAmount
	}
	return false
}

func invalid(code Code, format string, args ...any) error {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CapacityError reports an exhausted resource: a full table or an empty
// deck. An empty deck means the engine was driven incorrectly.
type CapacityError struct {
	Resource string
	Err      error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Resource, e.Err)
}

func (e *CapacityError) Unwrap() error { return e.Err }

// ConcurrencyError reports a seat that disappeared between pot building
// and showdown. Settlement recovers by re-deriving eligibility.
type ConcurrencyError struct {
	Seat int
	Msg  string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("seat %d: %s", e.Seat, e.Msg)
}
