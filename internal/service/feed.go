package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/travelog/travelog/internal/model"
	"github.com/travelog/travelog/internal/observe"
	"github.com/travelog/travelog/internal/remote"
	"github.com/travelog/travelog/internal/repository"
)

type FeedService struct {
	gateway *remote.Gateway
	posts   repository.PostRepository
	mirror  *Mirror

	// Feed is the global feed, newest first.
	Feed *observe.Projection[[]*model.Post]
	// UserPosts is the listing of one author's posts.
	UserPosts *observe.Projection[[]*model.Post]

	mu       sync.Mutex
	sub      *remote.Subscription
	listedBy string // author of the current UserPosts listing
	closed   bool
	wg       sync.WaitGroup
}

func NewFeedService(
	gateway *remote.Gateway,
	posts repository.PostRepository,
	mirror *Mirror,
	ordering observe.Ordering,
) *FeedService {
	return &FeedService{
		gateway:   gateway,
		posts:     posts,
		mirror:    mirror,
		Feed:      observe.NewProjection[[]*model.Post]("feed", ordering),
		UserPosts: observe.NewProjection[[]*model.Post]("user_posts", ordering),
	}
}

// Load subscribes the feed to the remote and returns after the first delivery.
// A previous subscription is released. When the remote cannot be reached, or
// the subscription breaks later, the feed falls back to the cache.
func (s *FeedService) Load(ctx context.Context) ([]*model.Post, error) {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}

	ticket := s.Feed.Begin()
	first := make(chan struct{})
	var firstErr error
	var once sync.Once

	s.sub = s.gateway.SubscribePosts(context.Background(), remote.FeedQuery(), func(posts []*model.Post, err error) {
		if err == nil {
			if !ticket.Online(posts) {
				s.Feed.Push(posts)
			}
			mirrored := model.ClonePosts(posts)
			s.mirror.Enqueue("feed", func(ctx context.Context) error {
				return s.posts.UpsertMany(ctx, mirrored)
			})
		} else {
			err = s.fallback(context.Background(), ticket, err)
		}

		once.Do(func() {
			firstErr = err
			close(first)
		})
	})
	s.mu.Unlock()

	select {
	case <-first:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return s.Feed.Value.Get(), nil
}

// fallback serves the cached page after a subscription failure. Later
// failures start a fresh ticket since the first one is already spent.
func (s *FeedService) fallback(ctx context.Context, ticket *observe.Ticket[[]*model.Post], cause error) error {
	if !remote.IsUnavailable(cause) {
		if !ticket.Fail(cause) {
			s.Feed.Begin().Fail(cause)
		}
		return cause
	}

	slog.Warn("feed subscription unavailable, serving cache", "error", cause)

	cached, err := s.posts.Recent(ctx, remote.FeedPageSize)
	if err != nil {
		slog.Error("cache read failed", "resource", "feed", "error", err)
		if !ticket.Fail(err) {
			s.Feed.Begin().Fail(err)
		}
		return err
	}

	if !ticket.Offline(cached) {
		s.Feed.Begin().Offline(cached)
	}
	return nil
}

// live reports whether a subscription is currently feeding the feed.
func (s *FeedService) live() bool {
	if s.sub == nil {
		return false
	}
	select {
	case <-s.sub.Done():
		return false
	default:
		return true
	}
}

// Refresh reads one page of the global feed without subscribing.
func (s *FeedService) Refresh(ctx context.Context) ([]*model.Post, error) {
	return load(ctx, s.mirror, readThrough[[]*model.Post]{
		name:       "feed",
		projection: s.Feed,
		fetch:      s.gateway.Feed,
		cached: func(ctx context.Context) ([]*model.Post, error) {
			return s.posts.Recent(ctx, remote.FeedPageSize)
		},
		store: s.posts.UpsertMany,
		clone: model.ClonePosts,
	})
}

// LoadUser lists every post of one author, newest first.
func (s *FeedService) LoadUser(ctx context.Context, userID string) ([]*model.Post, error) {
	s.mu.Lock()
	s.listedBy = userID
	s.mu.Unlock()

	return load(ctx, s.mirror, readThrough[[]*model.Post]{
		name:       "user_posts",
		projection: s.UserPosts,
		fetch: func(ctx context.Context) ([]*model.Post, error) {
			return s.gateway.UserPosts(ctx, userID)
		},
		cached: func(ctx context.Context) ([]*model.Post, error) {
			return s.posts.ByUser(ctx, userID)
		},
		store: s.posts.UpsertMany,
		clone: model.ClonePosts,
	})
}

// Cached follows the locally cached posts of one author, or the cached global
// feed when userID is empty. It never touches the remote.
func (s *FeedService) Cached(ctx context.Context, userID string) <-chan []*model.Post {
	if userID == "" {
		return s.posts.Watch(ctx, repository.PostQuery{Limit: remote.FeedPageSize})
	}
	return s.posts.Watch(ctx, repository.PostQuery{Field: "userId", Value: userID})
}

// Mapped returns the feed posts that carry a location.
func (s *FeedService) Mapped() []*model.Post {
	var mapped []*model.Post
	for _, post := range s.Feed.Value.Get() {
		if post.HasLocation() {
			mapped = append(mapped, post)
		}
	}
	return mapped
}

// changed reloads the listings affected by a write to a post of userID.
// A live feed picks the change up by itself.
func (s *FeedService) changed(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if !s.live() && s.Feed.State.Get() != observe.Idle {
		s.background(func(ctx context.Context) {
			_, _ = s.Refresh(ctx)
		})
	}

	if s.listedBy == userID {
		s.background(func(ctx context.Context) {
			_, _ = s.LoadUser(ctx, userID)
		})
	}
}

func (s *FeedService) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(context.Background())
	}()
}

// Wait blocks until background reloads have finished.
func (s *FeedService) Wait() {
	s.wg.Wait()
}

// Close releases the live subscription and waits for background reloads.
func (s *FeedService) Close() {
	s.mu.Lock()
	s.closed = true
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}
