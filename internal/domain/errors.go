package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks records rejected before they enter the core
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced holding, lot or quote that does not exist
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks startup configuration that cannot be used
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInvalidQuote is the cause of a FetchError when the upstream price is not positive and finite
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrUpstreamStatus is the cause of a FetchError when the upstream answers with a non-success status
	ErrUpstreamStatus = errors.New("upstream returned non-success status")

	// ErrSymbolNotFound is the cause of a FetchError when the upstream does not know the symbol
	ErrSymbolNotFound = errors.New("symbol not found upstream")
)

// ValidationError describes a single rejected field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FetchError is the per-symbol failure carried in quote resolution results.
// It is never raised for a whole batch.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch quote for %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a FetchError for symbol
func NewFetchError(symbol string, err error) *FetchError {
	return &FetchError{Symbol: symbol, Err: err}
}
