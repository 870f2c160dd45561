package remote_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelog/travelog/internal/model"
	"github.com/travelog/travelog/internal/remote"
	"github.com/travelog/travelog/internal/remote/remotetest"
)

func newPost(id, userID string, createdAt time.Time) *model.Post {
	return &model.Post{
		PostID:      id,
		UserID:      userID,
		Username:    "walker",
		Title:       "Lake",
		Description: "Nice",
		Location:    "Tahoe",
		Latitude:    39.0,
		Longitude:   -120.0,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestGatewayUsers(t *testing.T) {
	ctx := context.Background()
	gw := remote.NewGateway(remotetest.New())

	user := &model.User{UserID: "u1", Username: "walker", Email: "walker@example.com", CreatedAt: model.Now()}
	id, err := gw.CreateUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	got, err := gw.FetchUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, *user, *got)

	require.NoError(t, gw.UpdateUser(ctx, "u1", map[string]any{remote.FieldUsername: "wanderer"}))
	got, err = gw.FetchUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "wanderer", got.Username)
	assert.Equal(t, "walker@example.com", got.Email)

	byEmail, err := gw.QueryUsers(ctx, remote.FieldEmail, "walker@example.com", 0)
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	_, err = gw.FetchUser(ctx, "nobody")
	assert.True(t, remote.IsNotFound(err))
}

func TestGatewayDefensiveDecoding(t *testing.T) {
	ctx := context.Background()
	store := remotetest.New()
	gw := remote.NewGateway(store)

	store.PutRaw(remote.Posts, "p1", []byte(`{"title": 42, "latitude": "north", "longitude": 12.5, "createdAt": 1700000000000}`))
	store.PutRaw(remote.Posts, "p2", []byte(`[1, 2, 3]`))
	store.PutRaw(remote.Posts, "p3", []byte(`{"postId": "p3", "userId": "u1", "title": "Ok"}`))

	before := time.Now().Add(-time.Second)

	post, err := gw.FetchPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", post.PostID)
	assert.Equal(t, "", post.Title)
	assert.Equal(t, 0.0, post.Latitude)
	assert.Equal(t, 12.5, post.Longitude)
	assert.Equal(t, int64(1700000000000), model.Millis(post.CreatedAt))
	assert.True(t, post.UpdatedAt.After(before))

	_, err = gw.FetchPost(ctx, "p2")
	assert.ErrorIs(t, err, remote.ErrMalformed)

	t.Run("malformed records are skipped in listings", func(t *testing.T) {
		posts, err := gw.QueryPosts(ctx, remote.PostQuery{})
		require.NoError(t, err)
		assert.Len(t, posts, 2)
	})

	t.Run("empty keys fall back to the document id", func(t *testing.T) {
		store.PutRaw(remote.Posts, "p4", []byte(`{"postId": "", "userId": "u1", "title": "Blank"}`))
		store.PutRaw(remote.Users, "u9", []byte(`{"userId": "", "username": "blank"}`))

		post, err := gw.FetchPost(ctx, "p4")
		require.NoError(t, err)
		assert.Equal(t, "p4", post.PostID)

		user, err := gw.FetchUser(ctx, "u9")
		require.NoError(t, err)
		assert.Equal(t, "u9", user.UserID)
	})
}

func TestGatewayFeed(t *testing.T) {
	ctx := context.Background()
	gw := remote.NewGateway(remotetest.New())
	base := model.Now()

	for i := 0; i < 30; i++ {
		userID := "u1"
		if i%3 == 0 {
			userID = "u2"
		}
		_, err := gw.CreatePost(ctx, newPost(fmt.Sprintf("p%02d", i), userID, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	t.Run("global feed is capped and newest first", func(t *testing.T) {
		feed, err := gw.Feed(ctx)
		require.NoError(t, err)
		require.Len(t, feed, remote.FeedPageSize)
		assert.Equal(t, "p29", feed[0].PostID)
		assert.Equal(t, "p10", feed[len(feed)-1].PostID)
	})

	t.Run("user listing is unbounded and sorted", func(t *testing.T) {
		posts, err := gw.UserPosts(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, posts, 10)
		for i := 1; i < len(posts); i++ {
			assert.True(t, posts[i-1].CreatedAt.After(posts[i].CreatedAt))
		}
	})

	t.Run("unknown query field", func(t *testing.T) {
		_, err := gw.QueryPosts(ctx, remote.PostQuery{Field: "secret", Value: "x"})
		assert.ErrorIs(t, err, remote.ErrInvalidField)
	})
}

func TestGatewayWrites(t *testing.T) {
	ctx := context.Background()
	store := remotetest.New()
	gw := remote.NewGateway(store)

	post := newPost("", "u1", model.Now())
	id, err := gw.CreatePost(ctx, post)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, post.PostID)

	t.Run("partial update leaves other fields", func(t *testing.T) {
		updatedAt := post.UpdatedAt.Add(time.Minute)
		require.NoError(t, gw.UpdatePost(ctx, id, map[string]any{
			remote.FieldTitle:     "Lake at dusk",
			remote.FieldUpdatedAt: updatedAt,
		}))

		got, err := gw.FetchPost(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Lake at dusk", got.Title)
		assert.Equal(t, "Nice", got.Description)
		assert.True(t, got.UpdatedAt.Equal(updatedAt))
		assert.True(t, got.CreatedAt.Equal(post.CreatedAt))
	})

	t.Run("immutable and unknown fields are rejected", func(t *testing.T) {
		err := gw.UpdatePost(ctx, id, map[string]any{remote.FieldCreatedAt: time.Now()})
		assert.ErrorIs(t, err, remote.ErrImmutableField)

		err = gw.UpdatePost(ctx, id, map[string]any{"owner": "u2"})
		assert.ErrorIs(t, err, remote.ErrInvalidField)
	})

	t.Run("update of a missing post", func(t *testing.T) {
		err := gw.UpdatePost(ctx, "missing", map[string]any{remote.FieldTitle: "x"})
		assert.True(t, remote.IsNotFound(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, gw.DeletePost(ctx, id))
		_, err := gw.FetchPost(ctx, id)
		assert.True(t, remote.IsNotFound(err))
		require.NoError(t, gw.DeletePost(ctx, id))
	})

	t.Run("offline", func(t *testing.T) {
		store.SetOffline(true)
		defer store.SetOffline(false)

		_, err := gw.CreatePost(ctx, newPost("", "u1", model.Now()))
		assert.True(t, remote.IsUnavailable(err))
		_, err = gw.Feed(ctx)
		assert.True(t, remote.IsUnavailable(err))
	})
}

type delivery struct {
	posts []*model.Post
	err   error
}

func TestGatewaySubscribePosts(t *testing.T) {
	ctx := context.Background()
	store := remotetest.New()
	gw := remote.NewGateway(store)

	_, err := gw.CreatePost(ctx, newPost("p1", "u1", model.Now()))
	require.NoError(t, err)

	var mu sync.Mutex
	var got []delivery
	sub := gw.SubscribePosts(ctx, remote.FeedQuery(), func(posts []*model.Post, err error) {
		mu.Lock()
		got = append(got, delivery{posts: posts, err: err})
		mu.Unlock()
	})

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(got)
	}

	require.Eventually(t, func() bool { return count() == 1 }, 5*time.Second, 10*time.Millisecond)

	_, err = gw.CreatePost(ctx, newPost("p2", "u1", model.Now().Add(time.Second)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		last := got[len(got)-1]
		return last.err == nil && len(last.posts) == 2
	}, 5*time.Second, 10*time.Millisecond)

	sub.Cancel()
	n := count()

	_, err = gw.CreatePost(ctx, newPost("p3", "u1", model.Now()))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, count())
}

func TestGatewaySubscriptionBreaks(t *testing.T) {
	store := remotetest.New()
	gw := remote.NewGateway(store)

	errs := make(chan error, 4)
	sub := gw.SubscribePosts(context.Background(), remote.FeedQuery(), func(_ []*model.Post, err error) {
		errs <- err
	})
	defer sub.Cancel()

	require.NoError(t, <-errs)

	store.SetOffline(true)

	select {
	case err := <-errs:
		assert.True(t, remote.IsUnavailable(err))
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not report the broken stream")
	}

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not end")
	}
}
