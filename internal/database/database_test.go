package database

import (
	"path/filepath"
	"testing"
)

func TestNewAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Migrating an up-to-date database is a no-op.
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var name string
	err = db.Conn().QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'download_history'`,
	).Scan(&name)
	if err != nil {
		t.Fatalf("download_history table missing: %v", err)
	}
}
