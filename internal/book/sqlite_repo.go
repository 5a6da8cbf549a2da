package book

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteRepo stores books through database/sql. It is used with the
// modernc.org/sqlite driver but only relies on portable SQL plus RETURNING.
type SQLiteRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLiteRepo(db *sql.DB, timeout time.Duration) *SQLiteRepo {
	return &SQLiteRepo{db: db, timeout: timeout}
}

func (r *SQLiteRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *SQLiteRepo) FindAll(ctx context.Context) ([]Book, error) {
	const query = `SELECT id, name, description FROM books ORDER BY id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(timeoutCtx, query)
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

func (r *SQLiteRepo) FindByID(ctx context.Context, id int64) (Book, error) {
	const query = `SELECT id, name, description FROM books WHERE id = ?`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanRow(r.db.QueryRowContext(timeoutCtx, query, id))
}

func (r *SQLiteRepo) Insert(ctx context.Context, in Input) (Book, error) {
	const query = `
		INSERT INTO books (name, description, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, name, description`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanRow(r.db.QueryRowContext(timeoutCtx, query, in.Name, in.Description))
}

func (r *SQLiteRepo) Replace(ctx context.Context, id int64, in Input) (Book, error) {
	const query = `
		UPDATE books
		SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING id, name, description`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanRow(r.db.QueryRowContext(timeoutCtx, query, in.Name, in.Description, id))
}

func (r *SQLiteRepo) Remove(ctx context.Context, id int64) (Book, error) {
	const query = `DELETE FROM books WHERE id = ? RETURNING id, name, description`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanRow(r.db.QueryRowContext(timeoutCtx, query, id))
}

func scanRow(row *sql.Row) (Book, error) {
	var b Book
	if err := row.Scan(&b.ID, &b.Name, &b.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}
