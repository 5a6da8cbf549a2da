// Package graph serves the book API over GraphQL. Every operation passes the
// authorization guard before it reaches the book service.
package graph

import (
	"context"
	_ "embed"
	"fmt"
	"math"

	"bookdash/internal/auth"
	"bookdash/internal/book"
	"bookdash/internal/httpx"

	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
)

//go:embed schema.graphql
var schemaSDL string

// Authorizer is implemented by *auth.Guard.
type Authorizer interface {
	Authorize(ctx context.Context) (context.Context, auth.Identity, error)
}

// BookService is implemented by *book.Service.
type BookService interface {
	List(ctx context.Context) ([]book.Book, error)
	Create(ctx context.Context, in book.Input) (book.Book, error)
	Update(ctx context.Context, id int64, in book.Input) (book.Book, error)
	Delete(ctx context.Context, id int64) (book.Book, error)
}

// OperationRecorder counts operations by outcome.
type OperationRecorder interface {
	RecordOperation(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, string) {}

// Resolver is the root resolver for both Query and Mutation.
type Resolver struct {
	guard   Authorizer
	books   BookService
	log     *zap.Logger
	metrics OperationRecorder
}

func NewResolver(guard Authorizer, books BookService, log *zap.Logger, metrics OperationRecorder) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Resolver{guard: guard, books: books, log: log, metrics: metrics}
}

// NewSchema parses the embedded schema against r.
func NewSchema(r *Resolver) *graphql.Schema {
	return graphql.MustParseSchema(schemaSDL, r,
		graphql.MaxDepth(8),
		graphql.Logger(panicLogger{log: r.log}),
	)
}

// guarded authorizes the request and only then runs body with the caller's
// identity. Errors from either step leave through toError.
func guarded[T any](ctx context.Context, r *Resolver, op string, body func(context.Context, auth.Identity) (T, error)) (T, error) {
	var zero T

	ctx, id, err := r.guard.Authorize(ctx)
	if err != nil {
		r.metrics.RecordOperation(op, CodeUnauthenticated)
		return zero, toError(err)
	}

	out, err := body(ctx, id)
	if err != nil {
		gqlErr := toError(err)
		r.metrics.RecordOperation(op, gqlErr.Code)
		if gqlErr.Code == CodeInternal {
			r.log.Error("operation failed",
				zap.String("operation", op),
				zap.String("subject", id.Subject),
				zap.String("request_id", httpx.RequestIDFromContext(ctx)),
				zap.Error(err),
			)
		}
		return zero, gqlErr
	}

	r.metrics.RecordOperation(op, "ok")
	r.log.Debug("operation",
		zap.String("operation", op),
		zap.String("subject", id.Subject),
		zap.String("request_id", httpx.RequestIDFromContext(ctx)),
	)
	return out, nil
}

type bookInput struct {
	Name        *string
	Description *string
}

func (in bookInput) toInput() book.Input {
	var out book.Input
	if in.Name != nil {
		out.Name = *in.Name
	}
	if in.Description != nil {
		out.Description = *in.Description
	}
	return out
}

func (r *Resolver) Books(ctx context.Context) ([]*bookResolver, error) {
	return guarded(ctx, r, "books", func(ctx context.Context, _ auth.Identity) ([]*bookResolver, error) {
		books, err := r.books.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]*bookResolver, 0, len(books))
		for _, b := range books {
			out = append(out, &bookResolver{b: b})
		}
		return out, nil
	})
}

func (r *Resolver) CreateBook(ctx context.Context, args struct{ Input bookInput }) (*bookResolver, error) {
	return guarded(ctx, r, "createBook", func(ctx context.Context, id auth.Identity) (*bookResolver, error) {
		b, err := r.books.Create(ctx, args.Input.toInput())
		if err != nil {
			return nil, err
		}
		r.log.Info("book created", zap.Int64("book_id", b.ID), zap.String("subject", id.Subject))
		return &bookResolver{b: b}, nil
	})
}

func (r *Resolver) UpdateBook(ctx context.Context, args struct {
	ID    int32
	Input bookInput
}) (*bookResolver, error) {
	return guarded(ctx, r, "updateBook", func(ctx context.Context, id auth.Identity) (*bookResolver, error) {
		b, err := r.books.Update(ctx, int64(args.ID), args.Input.toInput())
		if err != nil {
			return nil, err
		}
		r.log.Info("book updated", zap.Int64("book_id", b.ID), zap.String("subject", id.Subject))
		return &bookResolver{b: b}, nil
	})
}

func (r *Resolver) DeleteBook(ctx context.Context, args struct{ ID int32 }) (*bookResolver, error) {
	return guarded(ctx, r, "deleteBook", func(ctx context.Context, id auth.Identity) (*bookResolver, error) {
		b, err := r.books.Delete(ctx, int64(args.ID))
		if err != nil {
			return nil, err
		}
		r.log.Info("book deleted", zap.Int64("book_id", b.ID), zap.String("subject", id.Subject))
		return &bookResolver{b: b}, nil
	})
}

type bookResolver struct {
	b book.Book
}

// ID is Int! in the schema, which graphql-go carries as int32.
func (r *bookResolver) ID() (int32, error) {
	if r.b.ID > math.MaxInt32 || r.b.ID < math.MinInt32 {
		return 0, &Error{Code: CodeInternal, Message: "Internal server error", cause: fmt.Errorf("book id %d overflows Int", r.b.ID)}
	}
	return int32(r.b.ID), nil
}

func (r *bookResolver) Name() string { return r.b.Name }

func (r *bookResolver) Description() string { return r.b.Description }

type panicLogger struct {
	log *zap.Logger
}

func (l panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.log.Error("resolver panic",
		zap.Any("panic", value),
		zap.String("request_id", httpx.RequestIDFromContext(ctx)),
	)
}
