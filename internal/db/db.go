package db

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Open connects to the on-device cache database. A file that is not a
// healthy SQLite database fails with ErrStoreCorrupt.
func Open(path string) (*sqlx.DB, error) {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// SQLite serializes writers; a single connection keeps upserts atomic without lock errors
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	err = db.Ping()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", Classify(err))
	}

	// the header alone does not prove the schema pages are readable
	var check string
	err = db.Get(&check, `PRAGMA quick_check`)
	if err == nil && check != "ok" {
		err = fmt.Errorf("%w: quick_check: %s", ErrStoreCorrupt, check)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to check database: %w", Classify(err))
	}

	slog.Info("local store connected", "path", path)
	return db, nil
}

// Remove deletes the cache database at path together with its WAL files.
// Missing files are ignored.
func Remove(path string) error {
	for _, name := range []string{path, path + "-wal", path + "-shm"} {
		err := os.Remove(name)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	slog.Info("local store removed", "path", path)
	return nil
}

func Close(db *sqlx.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
