package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrRetrieval          = errors.New("retrieval error")
	ErrGeneration         = errors.New("generation error")
	ErrCitationResolution = errors.New("citation resolution error")
	ErrTemporary          = errors.New("temporary failure")
	ErrCaseNotFound       = errors.New("case not found")
	ErrSnapshotMismatch   = errors.New("snapshot embedding model mismatch")

	// Both are retrieval failures from the caller's point of view.
	ErrEmptyIndex          = fmt.Errorf("%w: vector index is empty", ErrRetrieval)
	ErrSnapshotUnavailable = fmt.Errorf("%w: no active snapshot", ErrRetrieval)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// NewError builds a typed error that has no underlying cause.
func NewError(kind error, operation, message string) error {
	return fmt.Errorf("%s: %w: %s", operation, kind, message)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
