package node

import (
	"errors"
	"fmt"
)

// StructureErrorCode categorizes structural errors.
type StructureErrorCode string

const (
	// ErrCodeIndexOutOfBounds indicates a position outside the children list.
	ErrCodeIndexOutOfBounds StructureErrorCode = "INDEX_OUT_OF_BOUNDS"

	// ErrCodeUnknownNode indicates an ID that does not name a live node.
	ErrCodeUnknownNode StructureErrorCode = "UNKNOWN_NODE"

	// ErrCodeCycle indicates an attach that would make a node its own ancestor.
	ErrCodeCycle StructureErrorCode = "CYCLE"

	// ErrCodeDuplicateUID indicates a uid already used in the arena.
	ErrCodeDuplicateUID StructureErrorCode = "DUPLICATE_UID"

	// ErrCodeNotDetached indicates an operation that requires a parentless node.
	ErrCodeNotDetached StructureErrorCode = "NOT_DETACHED"

	// ErrCodeRoot indicates an operation that cannot apply to a root.
	ErrCodeRoot StructureErrorCode = "ROOT"
)

// Sentinels matched by errors.Is against a *StructureError of the same code.
var (
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	ErrUnknownNode      = errors.New("unknown node")
	ErrCycle            = errors.New("attach would create a cycle")
	ErrDuplicateUID     = errors.New("duplicate uid")
	ErrNotDetached      = errors.New("node is still attached")
	ErrRoot             = errors.New("node is a root")
)

// StructureError reports a refused structural operation.
type StructureError struct {
	// Code identifies the error category.
	Code StructureErrorCode

	// Op names the arena method that failed (e.g. "AddChildAt").
	Op string

	// Node is the node the operation targeted.
	Node ID

	// Position and Count are set for index errors.
	Position int
	Count    int
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	if e.Code == ErrCodeIndexOutOfBounds {
		return fmt.Sprintf("%s: %s: position %d out of range for node %d with %d children",
			e.Code, e.Op, e.Position, e.Node, e.Count)
	}
	return fmt.Sprintf("%s: %s: node %d", e.Code, e.Op, e.Node)
}

// Unwrap maps the code onto its sentinel so errors.Is works.
func (e *StructureError) Unwrap() error {
	switch e.Code {
	case ErrCodeIndexOutOfBounds:
		return ErrIndexOutOfBounds
	case ErrCodeUnknownNode:
		return ErrUnknownNode
	case ErrCodeCycle:
		return ErrCycle
	case ErrCodeDuplicateUID:
		return ErrDuplicateUID
	case ErrCodeNotDetached:
		return ErrNotDetached
	case ErrCodeRoot:
		return ErrRoot
	}
	return nil
}

// IsIndexOutOfBounds returns true if err is an index error.
// Uses errors.As to handle wrapped errors.
func IsIndexOutOfBounds(err error) bool {
	var se *StructureError
	if errors.As(err, &se) {
		return se.Code == ErrCodeIndexOutOfBounds
	}
	return false
}

func indexError(op string, n ID, pos, count int) *StructureError {
	return &StructureError{Code: ErrCodeIndexOutOfBounds, Op: op, Node: n, Position: pos, Count: count}
}

func unknownNode(op string, n ID) *StructureError {
	return &StructureError{Code: ErrCodeUnknownNode, Op: op, Node: n}
}

func cycleError(op string, n ID) *StructureError {
	return &StructureError{Code: ErrCodeCycle, Op: op, Node: n}
}
