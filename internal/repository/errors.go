package repository

import (
	"errors"

	"github.com/travelog/travelog/internal/db"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrPostNotFound       = errors.New("post not found")
	ErrCredentialNotFound = errors.New("no signed-in user")
	ErrUnknownField       = errors.New("unknown query field")

	// ErrStoreCorrupt marks an unrecoverable local database.
	ErrStoreCorrupt = db.ErrStoreCorrupt
)

func classify(err error) error {
	return db.Classify(err)
}

func IsFatal(err error) bool {
	return db.IsCorrupt(err)
}
