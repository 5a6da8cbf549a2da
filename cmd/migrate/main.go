package main

import (
	"context"
	"fmt"
	"os"

	"bookdash/db"
	"bookdash/internal/logging"
	"bookdash/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		command = pflag.StringP("command", "c", "up", "Migration command: up, down, status, version, create")
		name    = pflag.StringP("name", "n", "", "Name for 'create' command")
	)
	pflag.Parse()

	loadEnvFiles()
	logger := logging.Must(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "console"))
	defer func() { _ = logger.Sync() }()

	if *command == "create" {
		if *name == "" {
			logger.Fatal("name is required for 'create' command")
		}
		dir := migrationsDir()
		if err := goose.Create(nil, dir, *name, "sql"); err != nil {
			logger.Fatal("failed to create migration", zap.Error(err))
		}
		fmt.Printf("Migration created in %s: %s\n", dir, *name)
		return
	}

	ctx := context.Background()
	pool, err := store.OpenPostgres(ctx, databaseDSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := runCommand(pool, *command); err != nil {
		logger.Fatal("migration failed", zap.String("command", *command), zap.Error(err))
	}
}

// migrateUp is swapped out in tests.
var migrateUp = store.MigratePostgres

func runCommand(pool *pgxpool.Pool, command string) error {
	switch command {
	case "up":
		if err := migrateUp(pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		fmt.Println("Migrations applied successfully")
		return nil
	case "down", "status", "version":
	default:
		return fmt.Errorf("unknown command %q, use: up, down, status, version, create", command)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "down":
		if err := goose.Down(sqlDB, db.PostgresDir); err != nil {
			return fmt.Errorf("rollback migration: %w", err)
		}
		fmt.Println("Migration rolled back successfully")
	case "status":
		return goose.Status(sqlDB, db.PostgresDir)
	case "version":
		return goose.Version(sqlDB, db.PostgresDir)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
