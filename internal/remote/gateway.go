package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/travelog/travelog/internal/model"
)

// FeedPageSize caps the global feed.
const FeedPageSize = 20

// PostQuery describes a listing of posts ordered by creation time, newest first.
type PostQuery struct {
	Field string
	Value string
	Limit int
}

// FeedQuery is the global feed: every post, newest first, one page.
func FeedQuery() PostQuery {
	return PostQuery{Limit: FeedPageSize}
}

// UserPostsQuery lists all posts of one author.
func UserPostsQuery(userID string) PostQuery {
	return PostQuery{Field: FieldUserID, Value: userID}
}

// Gateway maps documents of the remote store to records.
type Gateway struct {
	store Store
	now   func() time.Time
}

func NewGateway(store Store) *Gateway {
	return &Gateway{
		store: store,
		now:   model.Now,
	}
}

func (g *Gateway) FetchUser(ctx context.Context, id string) (*model.User, error) {
	doc, err := g.store.Get(ctx, Users, id)
	if err != nil {
		return nil, err
	}

	user, err := decodeUser(doc, g.now())
	if err != nil {
		slog.Error("malformed user document", "user_id", id, "error", err)
		return nil, err
	}
	return user, nil
}

func (g *Gateway) FetchPost(ctx context.Context, id string) (*model.Post, error) {
	doc, err := g.store.Get(ctx, Posts, id)
	if err != nil {
		return nil, err
	}

	post, err := decodePost(doc, g.now())
	if err != nil {
		slog.Error("malformed post document", "post_id", id, "error", err)
		return nil, err
	}
	return post, nil
}

func (g *Gateway) QueryUsers(ctx context.Context, field, value string, limit int) ([]*model.User, error) {
	if !userFields[field] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}

	docs, err := g.store.Find(ctx, Query{Collection: Users, Field: field, Value: value, Limit: limit})
	if err != nil {
		return nil, err
	}

	now := g.now()
	users := make([]*model.User, 0, len(docs))
	for _, doc := range docs {
		user, err := decodeUser(doc, now)
		if err != nil {
			slog.Error("skipping malformed user document", "user_id", doc.ID, "error", err)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// QueryPosts runs q once. Bounded queries are ordered by the store; unbounded
// listings are sorted here after the fetch.
func (g *Gateway) QueryPosts(ctx context.Context, q PostQuery) ([]*model.Post, error) {
	query := Query{Collection: Posts, Limit: q.Limit}
	if q.Field != "" {
		if !postFields[q.Field] {
			return nil, fmt.Errorf("%w: %s", ErrInvalidField, q.Field)
		}
		query.Field = q.Field
		query.Value = q.Value
	}
	if q.Limit > 0 {
		query.OrderBy = FieldCreatedAt
		query.Desc = true
	}

	docs, err := g.store.Find(ctx, query)
	if err != nil {
		return nil, err
	}

	now := g.now()
	posts := make([]*model.Post, 0, len(docs))
	for _, doc := range docs {
		post, err := decodePost(doc, now)
		if err != nil {
			slog.Error("skipping malformed post document", "post_id", doc.ID, "error", err)
			continue
		}
		posts = append(posts, post)
	}

	if q.Limit <= 0 {
		model.SortByCreatedDesc(posts)
	} else if len(posts) > q.Limit {
		posts = posts[:q.Limit]
	}
	return posts, nil
}

func (g *Gateway) Feed(ctx context.Context) ([]*model.Post, error) {
	return g.QueryPosts(ctx, FeedQuery())
}

func (g *Gateway) UserPosts(ctx context.Context, userID string) ([]*model.Post, error) {
	return g.QueryPosts(ctx, UserPostsQuery(userID))
}

// CreateUser writes the profile document under the account's user id.
func (g *Gateway) CreateUser(ctx context.Context, user *model.User) (string, error) {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}

	body, err := encodeUser(user)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	err = g.store.Set(ctx, Users, user.UserID, body)
	if err != nil {
		return "", err
	}
	return user.UserID, nil
}

// CreatePost assigns a post id when the record has none and writes the full record.
func (g *Gateway) CreatePost(ctx context.Context, post *model.Post) (string, error) {
	if post.PostID == "" {
		post.PostID = uuid.New().String()
	}

	body, err := encodePost(post)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	err = g.store.Set(ctx, Posts, post.PostID, body)
	if err != nil {
		return "", err
	}
	return post.PostID, nil
}

// UpdateUser changes only the named fields.
func (g *Gateway) UpdateUser(ctx context.Context, id string, fields map[string]any) error {
	body, err := encodeFields(userFields, fields)
	if err != nil {
		return err
	}
	return g.store.Merge(ctx, Users, id, body)
}

// UpdatePost changes only the named fields.
func (g *Gateway) UpdatePost(ctx context.Context, id string, fields map[string]any) error {
	body, err := encodeFields(postFields, fields)
	if err != nil {
		return err
	}
	return g.store.Merge(ctx, Posts, id, body)
}

func (g *Gateway) DeletePost(ctx context.Context, id string) error {
	return g.store.Delete(ctx, Posts, id)
}

// Subscription is a live query. Cancel it when the consumer goes away.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the subscription and waits until no callback is running.
// It must not be called from inside the callback.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed once the subscription has ended, by Cancel or by a broken stream.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// SubscribePosts calls fn with the result of q right away and again after every
// change to the posts collection. When the change stream breaks, fn receives an
// error wrapping ErrRemoteUnavailable and the subscription ends.
// Callbacks run one at a time on the subscription's goroutine.
func (g *Gateway) SubscribePosts(ctx context.Context, q PostQuery, fn func([]*model.Post, error)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer cancel()

		changes, err := g.store.Changes(ctx, Posts)
		if err != nil {
			fn(nil, err)
			return
		}

		deliver := func() {
			posts, err := g.QueryPosts(ctx, q)
			if ctx.Err() != nil {
				return
			}
			fn(posts, err)
		}

		deliver()
		for {
			select {
			case _, ok := <-changes:
				if !ok {
					if ctx.Err() == nil {
						fn(nil, fmt.Errorf("%w: change stream closed", ErrRemoteUnavailable))
					}
					return
				}
				deliver()
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub
}

// IsUnavailable reports whether err is a recoverable remote failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
