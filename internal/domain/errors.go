package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a rejected upload (bad extension, size, or magic bytes).
	ErrValidation = errors.New("validation failed")
	// ErrExtraction signals an unreadable or corrupt document.
	ErrExtraction = errors.New("extraction failed")
	// ErrIndexNotBuilt signals a retrieval issued before any index exists.
	ErrIndexNotBuilt = errors.New("index not built")
	// ErrNoDocument signals an operation that requires an analyzed document.
	ErrNoDocument = errors.New("no document analyzed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
)

// ValidationError wraps ErrValidation with the user-facing reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation creates a validation error with a user-facing reason.
func NewValidation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ValidationReason extracts the user-facing reason from a validation error.
// Falls back to the full error text for plain ErrValidation wraps.
func ValidationReason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return err.Error()
}
