package book

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) FindAll(ctx context.Context) ([]Book, error) {
	const query = `
		SELECT id, name, description
		FROM books
		ORDER BY id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Name, &b.Description); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindByID(ctx context.Context, id int64) (Book, error) {
	const query = `
		SELECT id, name, description
		FROM books
		WHERE id = $1`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanOne(r.db.QueryRow(timeoutCtx, query, id))
}

func (r *PostgresRepo) Insert(ctx context.Context, in Input) (Book, error) {
	const query = `
		INSERT INTO books (name, description, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, name, description`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanOne(r.db.QueryRow(timeoutCtx, query, in.Name, in.Description))
}

func (r *PostgresRepo) Replace(ctx context.Context, id int64, in Input) (Book, error) {
	const query = `
		UPDATE books
		SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanOne(r.db.QueryRow(timeoutCtx, query, id, in.Name, in.Description))
}

func (r *PostgresRepo) Remove(ctx context.Context, id int64) (Book, error) {
	const query = `
		DELETE FROM books
		WHERE id = $1
		RETURNING id, name, description`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanOne(r.db.QueryRow(timeoutCtx, query, id))
}

func scanOne(row pgx.Row) (Book, error) {
	var b Book
	if err := row.Scan(&b.ID, &b.Name, &b.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}
