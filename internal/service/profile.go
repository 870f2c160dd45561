package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/travelog/travelog/internal/media"
	"github.com/travelog/travelog/internal/model"
	"github.com/travelog/travelog/internal/observe"
	"github.com/travelog/travelog/internal/remote"
	"github.com/travelog/travelog/internal/repository"
	"github.com/travelog/travelog/internal/validation"
)

// ProfileUpdate is the edit form of a profile. An empty ImagePath keeps the
// current picture.
type ProfileUpdate struct {
	Username  string
	ImagePath string
}

type ProfileService struct {
	gateway *remote.Gateway
	users   repository.UserRepository
	mirror  *Mirror
	session Session
	encoder media.Encoder

	// Profile is the profile on screen.
	Profile *observe.Projection[*model.User]
}

func NewProfileService(
	gateway *remote.Gateway,
	users repository.UserRepository,
	mirror *Mirror,
	session Session,
	encoder media.Encoder,
	ordering observe.Ordering,
) *ProfileService {
	return &ProfileService{
		gateway: gateway,
		users:   users,
		mirror:  mirror,
		session: session,
		encoder: encoder,
		Profile: observe.NewProjection[*model.User]("profile", ordering),
	}
}

// Load shows the signed-in user's profile.
func (s *ProfileService) Load(ctx context.Context) (*model.User, error) {
	userID, err := signedIn(s.session)
	if err != nil {
		s.Profile.Begin().Fail(err)
		return nil, err
	}
	return s.LoadUser(ctx, userID)
}

// LoadUser shows any user's profile. A nil user means the remote has none.
func (s *ProfileService) LoadUser(ctx context.Context, userID string) (*model.User, error) {
	return load(ctx, s.mirror, readThrough[*model.User]{
		name:       "profile",
		projection: s.Profile,
		fetch: func(ctx context.Context) (*model.User, error) {
			return s.gateway.FetchUser(ctx, userID)
		},
		cached: func(ctx context.Context) (*model.User, error) {
			user, err := s.users.ByID(ctx, userID)
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, nil
			}
			return user, err
		},
		store: func(ctx context.Context, user *model.User) error {
			return s.users.Upsert(ctx, user)
		},
		clone: (*model.User).Clone,
	})
}

// Update changes the signed-in user's profile. Posts keep the username they
// were published with. The returned user is nil when the write succeeded but
// the profile could not be read back.
func (s *ProfileService) Update(ctx context.Context, update ProfileUpdate) (*model.User, error) {
	userID, err := signedIn(s.session)
	if err != nil {
		return nil, err
	}

	username := validation.NormalizeText(update.Username)
	err = validation.ValidateUsername(username)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{remote.FieldUsername: username}

	if update.ImagePath != "" {
		ref, err := s.encoder.Encode(ctx, update.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to process image: %w", err)
		}
		fields[remote.FieldProfileImageURL] = ref
	}

	err = s.gateway.UpdateUser(ctx, userID, fields)
	if err != nil {
		if ref, ok := fields[remote.FieldProfileImageURL].(string); ok {
			s.encoder.Release(ctx, ref)
		}
		return nil, err
	}

	user, err := s.gateway.FetchUser(ctx, userID)
	if err != nil {
		slog.Warn("profile updated but could not be read back", "user_id", userID, "error", err)
		return nil, nil
	}

	// another user's profile may be on screen
	if current := s.Profile.Value.Get(); current != nil && current.UserID == userID {
		s.Profile.Begin().Online(user.Clone())
	}

	mirrored := user.Clone()
	s.mirror.Enqueue("profile", func(ctx context.Context) error {
		return s.users.Upsert(ctx, mirrored)
	})

	return user, nil
}
