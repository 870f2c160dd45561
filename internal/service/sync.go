package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/travelog/travelog/internal/observe"
	"github.com/travelog/travelog/internal/remote"
)

var (
	ErrNotSignedIn = errors.New("sign in first")
	ErrNotOwner    = errors.New("only the author can change this post")
)

// Session tells the coordinators who is signed in.
type Session interface {
	UserID() (string, bool)
}

func signedIn(session Session) (string, error) {
	id, ok := session.UserID()
	if !ok {
		return "", ErrNotSignedIn
	}
	return id, nil
}

// readThrough describes one read-through load of a resource.
type readThrough[T any] struct {
	name       string
	projection *observe.Projection[T]
	// fetch asks the remote
	fetch func(ctx context.Context) (T, error)
	// cached reads the local store; absence is the zero value, not an error
	cached func(ctx context.Context) (T, error)
	// store mirrors a fresh remote result into the local store
	store func(ctx context.Context, v T) error
	// clone copies a result before it is queued for the mirror
	clone func(v T) T
}

// load runs r: remote first, cache on RemoteUnavailable, nothing on NotFound.
// Fresh results are mirrored only when the projection accepted them.
func load[T any](ctx context.Context, mirror *Mirror, r readThrough[T]) (T, error) {
	var zero T
	ticket := r.projection.Begin()

	value, err := r.fetch(ctx)
	switch {
	case err == nil:
		if ticket.Online(value) {
			mirrored := r.clone(value)
			mirror.Enqueue(r.name, func(ctx context.Context) error {
				return r.store(ctx, mirrored)
			})
		}
		return value, nil

	case remote.IsNotFound(err):
		ticket.Online(zero)
		return zero, nil

	case remote.IsUnavailable(err):
		slog.Warn("remote unavailable, serving cache", "resource", r.name, "error", err)

		cached, cacheErr := r.cached(ctx)
		if cacheErr != nil {
			slog.Error("cache read failed", "resource", r.name, "error", cacheErr)
			ticket.Fail(cacheErr)
			return zero, cacheErr
		}
		ticket.Offline(cached)
		return cached, nil

	default:
		ticket.Fail(err)
		return zero, err
	}
}
