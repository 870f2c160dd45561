package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

// Migration sets: the on-device cache and the remote document database.
const (
	LocalMigrations  = "local"
	RemoteMigrations = "remote"
)

var dialects = map[string]string{
	LocalMigrations:  "sqlite3",
	RemoteMigrations: "postgres",
}

// setupGoose configures Goose with the dialect and embedded directory of a migration set
func setupGoose(set string) error {
	dialect, ok := dialects[set]
	if !ok {
		return fmt.Errorf("unknown migration set: %s", set)
	}

	err := goose.SetDialect(dialect)
	if err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	migrationsDir, err := fs.Sub(migrationsFS, "migrations/"+set)
	if err != nil {
		return fmt.Errorf("failed to get migrations directory: %w", err)
	}

	goose.SetBaseFS(migrationsDir)
	goose.SetLogger(goose.NopLogger())
	return nil
}

func RunMigrations(db *sql.DB, set string) error {
	err := setupGoose(set)
	if err != nil {
		return err
	}

	err = goose.Up(db, ".")
	if err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", set, Classify(err))
	}

	slog.Debug("migrations completed successfully", "set", set)
	return nil
}

func MigrateDown(db *sql.DB, set string) error {
	err := setupGoose(set)
	if err != nil {
		return err
	}

	err = goose.Down(db, ".")
	if err != nil {
		return fmt.Errorf("failed to rollback %s migration: %w", set, err)
	}

	slog.Info("rolled back one migration", "set", set)
	return nil
}
