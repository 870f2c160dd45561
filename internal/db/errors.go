package db

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrStoreCorrupt marks an unrecoverable local database. Retrying will not help;
// the cache file has to be removed.
var ErrStoreCorrupt = errors.New("local store is corrupt")

// Classify tags corruption errors from SQLite so callers can tell them apart.
// Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrStoreCorrupt) {
		return err
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
		}
	}

	return err
}

func IsCorrupt(err error) bool {
	return errors.Is(err, ErrStoreCorrupt)
}
