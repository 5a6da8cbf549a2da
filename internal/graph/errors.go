package graph

import (
	"context"
	"errors"

	"bookdash/internal/auth"
	"bookdash/internal/book"
)

const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// Error is a resolver error carrying GraphQL extensions.
type Error struct {
	Code      string
	Message   string
	Field     string
	Retryable bool

	cause error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Extensions is picked up by graphql-go and rendered under "extensions".
func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.Code}
	if e.Field != "" {
		ext["field"] = e.Field
	}
	if e.Retryable {
		ext["retryable"] = true
	}
	return ext
}

// toError maps a guard or service error to the error the client sees.
// Internal causes are kept for logging but never rendered.
func toError(err error) *Error {
	var verr *book.ValidationError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return &Error{Code: CodeUnauthenticated, Message: "Unauthorized", cause: err}
	case errors.As(err, &verr):
		return &Error{Code: CodeBadUserInput, Message: verr.Message, Field: verr.Field, cause: err}
	case errors.Is(err, book.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: "Book not found", cause: err}
	case errors.Is(err, book.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeInternal, Message: "The request timed out, please retry", Retryable: true, cause: err}
	case errors.Is(err, book.ErrStoreUnavailable):
		return &Error{Code: CodeInternal, Message: "Service temporarily unavailable, please retry", Retryable: true, cause: err}
	default:
		return &Error{Code: CodeInternal, Message: "Internal server error", cause: err}
	}
}
