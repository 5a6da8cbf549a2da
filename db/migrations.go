// Package db embeds the SQL migrations applied by goose.
package db

import "embed"

// Migrations holds one directory of goose migrations per SQL dialect.
//
//go:embed migrations
var Migrations embed.FS

const (
	PostgresDir = "migrations/postgres"
	SQLiteDir   = "migrations/sqlite"
)
