package genotype

import (
	"errors"
	"fmt"
)

// LoadErrorCode categorizes input loading failures.
type LoadErrorCode string

const (
	// ErrCodeNotFound indicates a missing input file.
	ErrCodeNotFound LoadErrorCode = "NOT_FOUND"

	// ErrCodeEmptyMatrix indicates a matrix with no rows or no columns.
	ErrCodeEmptyMatrix LoadErrorCode = "EMPTY_MATRIX"

	// ErrCodeBadValue indicates a cell outside 0, 1 and 2.
	ErrCodeBadValue LoadErrorCode = "BAD_VALUE"

	// ErrCodeNameCountMismatch indicates fewer names than matrix columns.
	ErrCodeNameCountMismatch LoadErrorCode = "NAME_COUNT_MISMATCH"
)

// LoadError reports an input file that cannot be used. Every LoadError is
// fatal for a run.
type LoadError struct {
	// Code identifies the error category.
	Code LoadErrorCode

	// Path is the offending file, empty when reading from a stream.
	Path string

	// Line is the 1-based line of the offending value, 0 when not
	// tied to a line.
	Line int

	// Message is a human-readable description.
	Message string

	// Err is the underlying I/O error, if any.
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	var loc string
	switch {
	case e.Path != "" && e.Line > 0:
		loc = fmt.Sprintf(" (%s:%d)", e.Path, e.Line)
	case e.Path != "":
		loc = fmt.Sprintf(" (%s)", e.Path)
	case e.Line > 0:
		loc = fmt.Sprintf(" (line %d)", e.Line)
	}
	return fmt.Sprintf("%s: %s%s", e.Code, e.Message, loc)
}

// Unwrap returns the underlying I/O error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError returns true if err is or wraps a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsNameCountMismatch returns true if err reports too few mutation names.
func IsNameCountMismatch(err error) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code == ErrCodeNameCountMismatch
	}
	return false
}

// CodeOf returns the LoadErrorCode carried by err, or "" if err is not a
// load error.
func CodeOf(err error) LoadErrorCode {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
