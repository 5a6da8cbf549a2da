package book

import (
	"context"
	"errors"
	"fmt"
)

// Service provides book-related business logic.
// It performs no authorization; callers must have passed the guard already.
type Service struct {
	repo Repository
}

// NewService creates a new book service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every persisted book in repository order.
func (s *Service) List(ctx context.Context) ([]Book, error) {
	books, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, classify("list books", err)
	}
	if books == nil {
		books = []Book{}
	}
	return books, nil
}

// Create validates in and stores a new book.
func (s *Service) Create(ctx context.Context, in Input) (Book, error) {
	in = normalize(in)
	if err := ValidateInput(in); err != nil {
		return Book{}, err
	}
	b, err := s.repo.Insert(ctx, in)
	if err != nil {
		return Book{}, classify("create book", err)
	}
	return b, nil
}

// Update validates in and replaces the fields of book id.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Book, error) {
	in = normalize(in)
	if err := ValidateInput(in); err != nil {
		return Book{}, err
	}
	b, err := s.repo.Replace(ctx, id, in)
	if err != nil {
		return Book{}, classify("update book", err)
	}
	return b, nil
}

// Delete removes book id and returns it as it was just before removal.
func (s *Service) Delete(ctx context.Context, id int64) (Book, error) {
	b, err := s.repo.Remove(ctx, id)
	if err != nil {
		return Book{}, classify("delete book", err)
	}
	return b, nil
}

// classify maps repository errors onto the service error kinds.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
}
