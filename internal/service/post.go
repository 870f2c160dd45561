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

type PostService struct {
	gateway *remote.Gateway
	posts   repository.PostRepository
	users   repository.UserRepository
	mirror  *Mirror
	session Session
	encoder media.Encoder
	feed    *FeedService

	// Detail is the post on screen.
	Detail *observe.Projection[*model.Post]
}

func NewPostService(
	gateway *remote.Gateway,
	posts repository.PostRepository,
	users repository.UserRepository,
	mirror *Mirror,
	session Session,
	encoder media.Encoder,
	feed *FeedService,
	ordering observe.Ordering,
) *PostService {
	return &PostService{
		gateway: gateway,
		posts:   posts,
		users:   users,
		mirror:  mirror,
		session: session,
		encoder: encoder,
		feed:    feed,
		Detail:  observe.NewProjection[*model.Post]("post", ordering),
	}
}

// Load shows one post. A nil post means the remote has none.
func (s *PostService) Load(ctx context.Context, postID string) (*model.Post, error) {
	return load(ctx, s.mirror, readThrough[*model.Post]{
		name:       "post",
		projection: s.Detail,
		fetch: func(ctx context.Context) (*model.Post, error) {
			return s.gateway.FetchPost(ctx, postID)
		},
		cached: func(ctx context.Context) (*model.Post, error) {
			post, err := s.posts.ByID(ctx, postID)
			if errors.Is(err, repository.ErrPostNotFound) {
				return nil, nil
			}
			return post, err
		},
		store: func(ctx context.Context, post *model.Post) error {
			return s.posts.Upsert(ctx, post)
		},
		clone: (*model.Post).Clone,
	})
}

// Create publishes a post by the signed-in user. imagePath may be empty.
func (s *PostService) Create(ctx context.Context, in validation.PostInput, imagePath string) (*model.Post, error) {
	userID, err := signedIn(s.session)
	if err != nil {
		return nil, err
	}

	in = in.Normalize()
	err = validation.ValidateNewPost(in)
	if err != nil {
		return nil, err
	}

	imageURI, err := s.encode(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	now := model.Now()
	post := &model.Post{
		UserID:      userID,
		Username:    s.authorName(ctx, userID),
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		ImageURI:    imageURI,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.gateway.CreatePost(ctx, post)
	if err != nil {
		s.release(ctx, imageURI)
		return nil, err
	}

	slog.Info("post created", "post_id", post.PostID, "user_id", userID)
	s.written(post)
	return post, nil
}

// Update edits a post of the signed-in user. The creation time, the author's
// name and the coordinates are kept; an empty imagePath keeps the image.
func (s *PostService) Update(ctx context.Context, postID string, in validation.PostInput, imagePath string) (*model.Post, error) {
	userID, err := signedIn(s.session)
	if err != nil {
		return nil, err
	}

	in = in.Normalize()
	err = validation.ValidatePostEdit(in)
	if err != nil {
		return nil, err
	}

	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	imageURI, err := s.encode(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	previousImage := post.ImageURI
	post.Title = in.Title
	post.Description = in.Description
	post.Location = in.Location
	post.UpdatedAt = model.Now()

	fields := map[string]any{
		remote.FieldTitle:       post.Title,
		remote.FieldDescription: post.Description,
		remote.FieldLocation:    post.Location,
		remote.FieldUpdatedAt:   post.UpdatedAt,
	}
	if imageURI != "" {
		post.ImageURI = imageURI
		fields[remote.FieldImageURI] = imageURI
	}

	err = s.gateway.UpdatePost(ctx, postID, fields)
	if err != nil {
		s.release(ctx, imageURI)
		return nil, err
	}
	if imageURI != "" {
		s.release(ctx, previousImage)
	}

	slog.Info("post updated", "post_id", postID)
	s.written(post)
	return post, nil
}

// Delete removes a post of the signed-in user. Deleting a post that is already
// gone succeeds.
func (s *PostService) Delete(ctx context.Context, postID string) error {
	userID, err := signedIn(s.session)
	if err != nil {
		return err
	}

	post, err := s.owned(ctx, userID, postID)
	if err != nil && !remote.IsNotFound(err) {
		return err
	}

	if post != nil {
		err = s.gateway.DeletePost(ctx, postID)
		if err != nil {
			return err
		}
		slog.Info("post deleted", "post_id", postID)
		s.release(ctx, post.ImageURI)
	}

	s.mirror.Enqueue("delete post", func(ctx context.Context) error {
		return s.posts.Delete(ctx, postID)
	})
	if current := s.Detail.Value.Get(); current != nil && current.PostID == postID {
		s.Detail.Begin().Online(nil)
	}
	s.feed.changed(userID)
	return nil
}

// IsOwner reports whether the signed-in user wrote post.
func (s *PostService) IsOwner(post *model.Post) bool {
	userID, ok := s.session.UserID()
	return ok && post != nil && post.UserID == userID
}

// owned fetches the remote copy of a post and checks its author.
func (s *PostService) owned(ctx context.Context, userID, postID string) (*model.Post, error) {
	post, err := s.gateway.FetchPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrNotOwner
	}
	return post, nil
}

func (s *PostService) encode(ctx context.Context, imagePath string) (string, error) {
	if imagePath == "" {
		return "", nil
	}

	ref, err := s.encoder.Encode(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to process image: %w", err)
	}
	return ref, nil
}

func (s *PostService) release(ctx context.Context, ref string) {
	if ref != "" {
		s.encoder.Release(ctx, ref)
	}
}

// authorName is the name stamped on a new post: the remote profile, else the
// cached one, else a placeholder.
func (s *PostService) authorName(ctx context.Context, userID string) string {
	user, err := s.gateway.FetchUser(ctx, userID)
	if err != nil {
		user, err = s.users.ByID(ctx, userID)
	}
	if err != nil || user.Username == "" {
		return model.AnonymousUsername
	}
	return user.Username
}

// written mirrors a successful write and refreshes the views showing it.
func (s *PostService) written(post *model.Post) {
	mirrored := *post
	s.mirror.Enqueue("post", func(ctx context.Context) error {
		return s.posts.Upsert(ctx, &mirrored)
	})

	if current := s.Detail.Value.Get(); current != nil && current.PostID == post.PostID {
		s.Detail.Begin().Online(post)
	}
	s.feed.changed(post.UserID)
}
