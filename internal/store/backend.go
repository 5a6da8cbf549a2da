package store

import (
	"context"
	"fmt"

	"bookdash/internal/book"
	"bookdash/internal/config"
)

// Backend is an opened book repository plus its lifecycle hooks.
type Backend struct {
	Repo   book.Repository
	Driver string

	ping  func(context.Context) error
	close func()
}

func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open builds the repository selected by cfg.Driver. Postgres is expected to
// be migrated with cmd/migrate; sqlite migrates itself on open.
func Open(ctx context.Context, cfg config.Store) (*Backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Repo:   book.NewPostgresRepo(pool, cfg.Timeout),
			Driver: cfg.Driver,
			ping:   pool.Ping,
			close:  pool.Close,
		}, nil
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Repo:   book.NewSQLiteRepo(db, cfg.Timeout),
			Driver: cfg.Driver,
			ping:   db.PingContext,
			close:  func() { _ = db.Close() },
		}, nil
	case config.DriverMemory:
		return &Backend{Repo: book.NewMemoryRepo(), Driver: cfg.Driver}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
