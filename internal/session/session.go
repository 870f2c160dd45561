// Package session is the explicit "who is signed in" context handed to the
// coordinators at construction.
package session

import (
	"context"
	"log/slog"

	"github.com/travelog/travelog/internal/auth"
	"github.com/travelog/travelog/internal/observe"
)

type Session struct {
	userID *observe.Value[string]
	stop   func()
	done   chan struct{}
}

// New restores the stored sign-in and follows the authenticator from then on.
// Close releases the subscription.
func New(ctx context.Context, authenticator auth.Authenticator) *Session {
	s := &Session{
		userID: observe.NewValue(""),
		done:   make(chan struct{}),
	}

	if id, ok := authenticator.CurrentUserID(ctx); ok {
		s.userID.Set(id)
	}

	changes, stop := authenticator.Changes()
	s.stop = stop

	go func() {
		defer close(s.done)
		for id := range changes {
			if id != s.userID.Get() {
				slog.Debug("session changed", "user_id", id)
			}
			s.userID.Set(id)
		}
	}()

	return s
}

// UserID returns the signed-in user, or false when nobody is.
func (s *Session) UserID() (string, bool) {
	id := s.userID.Get()
	return id, id != ""
}

// Changes delivers the user id now and after every sign-in or sign-out.
func (s *Session) Changes() (<-chan string, func()) {
	return s.userID.Subscribe()
}

func (s *Session) Close() {
	s.stop()
	<-s.done
}
