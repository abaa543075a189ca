// Package core provides the MemGrid client and memory orchestration.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested memory was not found.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreUnavailable indicates that the persistence layer failed.
	// This is the only error class that aborts ingestion or search; it is
	// retryable from the caller's point of view.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrValidation indicates an invalid record: unknown tier, confidence
	// out of range, empty category level, or mismatched embedding dimension.
	ErrValidation = errors.New("validation failed")

	// ErrExtractionFailed indicates that fact extraction failed.
	// Recovered locally via the degraded single-fact fallback.
	ErrExtractionFailed = errors.New("fact extraction failed")

	// ErrCategorizationFailed indicates that category assignment failed.
	// Recovered locally via the "uncategorized" fallback.
	ErrCategorizationFailed = errors.New("categorization failed")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	// The affected memory is persisted without a vector.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrRoutingFailed indicates that query intent classification failed.
	// Recovered locally via the default hybrid fallback.
	ErrRoutingFailed = errors.New("query routing failed")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed, making error
// messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{Op: "Ingest", Err: ErrStoreUnavailable}
//	// Error() returns: "memgrid: Ingest: store unavailable"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "memgrid: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("memgrid: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Ingest", err)
//	}
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
