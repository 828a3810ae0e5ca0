package errors

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrStorage is returned when a durable read or write fails.
	// A failed flush never commits the in-memory mutation that triggered it.
	ErrStorage = errors.New("durable storage failure")

	// ErrNotFound is returned when a requested record is not found
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned when the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch is returned when an embedding's dimension does not
	// match the dimension established by the store instance
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbedding is returned when the embedder collaborator fails
	ErrEmbedding = errors.New("embedding generation failed")

	// ErrDecision is returned when the decider collaborator fails
	ErrDecision = errors.New("memory decision failed")

	// ErrExtraction is returned when the fact extractor collaborator fails
	ErrExtraction = errors.New("fact extraction failed")
)

// Wrap wraps an error with additional context
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience function that wraps errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target, and if so, sets
// target to that error value and returns true. Otherwise, it returns false.
// This is a convenience function that wraps errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
