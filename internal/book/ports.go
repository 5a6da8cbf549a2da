package book

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=book

import (
	"context"
)

// Repository defines the contract for book data storage.
// Single-record operations return ErrNotFound when the id does not exist.
type Repository interface {
	FindAll(ctx context.Context) ([]Book, error)
	FindByID(ctx context.Context, id int64) (Book, error)
	Insert(ctx context.Context, in Input) (Book, error)
	Replace(ctx context.Context, id int64, in Input) (Book, error)
	Remove(ctx context.Context, id int64) (Book, error)
}
