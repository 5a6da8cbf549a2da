package book

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no book has the requested id.
	ErrNotFound = errors.New("book not found")
	// ErrInvalidInput is returned when a create or update input breaks a business rule.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTimeout is returned when the store did not answer before the request deadline.
	ErrTimeout = errors.New("store timeout")
	// ErrStoreUnavailable is returned for any other storage failure.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Book represents one catalog item.
type Book struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Input carries the client supplied fields for create and update.
// Update replaces both fields wholesale.
type Input struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

// ValidationError names the offending field of an Input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrInvalidInput) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidField(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
