// Package remote talks to the authoritative document database holding the
// users and posts collections.
package remote

import (
	"context"
	"errors"
	"regexp"
)

type Collection string

const (
	Users Collection = "users"
	Posts Collection = "posts"
)

var (
	// ErrRemoteUnavailable covers network and service failures. Reads recover from
	// it by falling back to the local cache.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrNotFound is an authoritative absence, not a fault.
	ErrNotFound = errors.New("not found")
	// ErrMalformed means a document could not be parsed even with defaults.
	ErrMalformed = errors.New("malformed document")

	ErrInvalidField   = errors.New("invalid field name")
	ErrImmutableField = errors.New("field cannot be changed")
)

// RawDocument is a stored JSON object and its key within the collection.
type RawDocument struct {
	ID   string
	Body []byte
}

// Query selects documents of one collection.
// Field/Value is an optional equality filter on a top-level string field.
type Query struct {
	Collection Collection
	Field      string
	Value      string
	OrderBy    string
	Desc       bool
	Limit      int
}

// Store is a document database driver.
// Implementations report failures as ErrRemoteUnavailable or ErrNotFound.
type Store interface {
	Get(ctx context.Context, collection Collection, id string) (RawDocument, error)
	Find(ctx context.Context, q Query) ([]RawDocument, error)
	// Set writes the whole document, creating it if needed.
	Set(ctx context.Context, collection Collection, id string, body []byte) error
	// Merge overwrites only the top-level fields present in fields.
	// It fails with ErrNotFound when the document does not exist.
	Merge(ctx context.Context, collection Collection, id string, fields []byte) error
	Delete(ctx context.Context, collection Collection, id string) error
	// Changes signals every write to the collection until ctx is done.
	// The channel is closed when the stream ends.
	Changes(ctx context.Context, collection Collection) (<-chan struct{}, error)
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}
