package book

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo keeps books in process memory. Ids start at 1 and are never reused.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	books  map[int64]Book
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1, books: make(map[int64]Book)}
}

func (r *MemoryRepo) FindAll(ctx context.Context) ([]Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id int64) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, in Input) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b := Book{ID: r.nextID, Name: in.Name, Description: in.Description}
	r.books[b.ID] = b
	r.nextID++
	return b, nil
}

func (r *MemoryRepo) Replace(ctx context.Context, id int64, in Input) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.books[id]; !ok {
		return Book{}, ErrNotFound
	}
	b := Book{ID: id, Name: in.Name, Description: in.Description}
	r.books[id] = b
	return b, nil
}

func (r *MemoryRepo) Remove(ctx context.Context, id int64) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	delete(r.books, id)
	return b, nil
}
