package mutree

import (
	"errors"
	"fmt"
)

// ErrInvalidMove is matched by errors.Is against every *MoveError.
var ErrInvalidMove = errors.New("invalid move")

// MoveError reports that an operator found no legal candidate, or that a
// deterministic primitive was asked for an illegal move. The tree is
// unchanged whenever a MoveError is returned.
type MoveError struct {
	Op     Operation
	Reason string
}

// Error implements the error interface.
func (e *MoveError) Error() string {
	return fmt.Sprintf("INVALID_MOVE: %s: %s", e.Op, e.Reason)
}

// Unwrap returns ErrInvalidMove.
func (e *MoveError) Unwrap() error {
	return ErrInvalidMove
}

// IsInvalidMove returns true if err is a move error.
// Uses errors.As to handle wrapped errors.
func IsInvalidMove(err error) bool {
	var me *MoveError
	return errors.As(err, &me)
}

func invalid(op Operation, format string, args ...any) *MoveError {
	return &MoveError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
