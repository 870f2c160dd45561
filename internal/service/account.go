package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/travelog/travelog/internal/auth"
	"github.com/travelog/travelog/internal/model"
	"github.com/travelog/travelog/internal/remote"
	"github.com/travelog/travelog/internal/repository"
	"github.com/travelog/travelog/internal/validation"
)

type AccountService struct {
	authenticator auth.Authenticator
	gateway       *remote.Gateway
	users         repository.UserRepository
	posts         repository.PostRepository
	mirror        *Mirror
}

func NewAccountService(
	authenticator auth.Authenticator,
	gateway *remote.Gateway,
	users repository.UserRepository,
	posts repository.PostRepository,
	mirror *Mirror,
) *AccountService {
	return &AccountService{
		authenticator: authenticator,
		gateway:       gateway,
		users:         users,
		posts:         posts,
		mirror:        mirror,
	}
}

// Register creates the account and its profile, and signs the user in.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = validation.NormalizeText(username)
	err := validation.ValidateUsername(username)
	if err != nil {
		return nil, err
	}

	userID, err := s.authenticator.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		UserID:    userID,
		Username:  username,
		Email:     validation.NormalizeEmail(email),
		CreatedAt: model.Now(),
	}

	_, err = s.gateway.CreateUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("account created but profile could not be saved: %w", err)
	}

	mirrored := *user
	s.mirror.Enqueue("profile", func(ctx context.Context) error {
		return s.users.Upsert(ctx, &mirrored)
	})

	return user, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (string, error) {
	return s.authenticator.Login(ctx, email, password)
}

// Logout signs out and empties the cache.
func (s *AccountService) Logout(ctx context.Context) error {
	err := s.authenticator.Logout(ctx)
	if err != nil {
		return err
	}
	return s.ClearCache(ctx)
}

func (s *AccountService) CurrentUserID(ctx context.Context) (string, bool) {
	return s.authenticator.CurrentUserID(ctx)
}

// ClearCache removes every cached user and post once pending writes are done.
func (s *AccountService) ClearCache(ctx context.Context) error {
	err := s.mirror.Flush(ctx)
	if err != nil {
		return err
	}

	err = s.posts.DeleteAll(ctx)
	if err != nil {
		return err
	}

	err = s.users.DeleteAll(ctx)
	if err != nil {
		return err
	}

	slog.Info("cache cleared")
	return nil
}
