package main

import (
	"io/fs"
	"strings"
	"testing"

	"bookdash/db"
)

func TestSQLMigrations_HaveGooseDirectives(t *testing.T) {
	err := fs.WalkDir(db.Migrations, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		b, err := fs.ReadFile(db.Migrations, path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", path, err)
		}
		s := string(b)
		if !strings.Contains(s, "-- +goose Up") {
			t.Fatalf("%s missing '-- +goose Up'", path)
		}
		if !strings.Contains(s, "-- +goose Down") {
			t.Fatalf("%s missing '-- +goose Down'", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk migrations: %v", err)
	}
}
