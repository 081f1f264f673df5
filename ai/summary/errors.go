package summary

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every *InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrChunkingDefect means the chunker produced nothing for text that passed validation.
	ErrChunkingDefect = errors.New("chunking produced no chunks")
	// ErrNoResults is returned by Combine when there is nothing to combine.
	ErrNoResults = errors.New("no results to combine")
)

// InvalidInputError rejects a request before any model call.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ModelUnavailableError is one failed model attempt.
type ModelUnavailableError struct {
	Model   string
	Attempt int
	Err     error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s attempt %d: %v", e.Model, e.Attempt, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// ParseError is malformed model output.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse model output: " + e.Reason + ": " + e.Err.Error()
	}
	return "parse model output: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
