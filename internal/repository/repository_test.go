package repository

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelog/travelog/internal/db"
	"github.com/travelog/travelog/internal/model"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	require.NoError(t, db.RunMigrations(database.DB, db.LocalMigrations))
	return database
}

func testPost(id, userID string, createdAt time.Time) *model.Post {
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

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t), NewHub())

	user := &model.User{
		UserID:    "u1",
		Username:  "walker",
		Email:     "walker@example.com",
		CreatedAt: model.Now(),
	}

	t.Run("absent user is not found", func(t *testing.T) {
		_, err := repo.ByID(ctx, "u1")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("upsert then lookup", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, user))

		got, err := repo.ByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, user.Username, got.Username)
		assert.Equal(t, user.Email, got.Email)
		assert.True(t, user.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("upsert replaces", func(t *testing.T) {
		renamed := *user
		renamed.Username = "wanderer"
		require.NoError(t, repo.Upsert(ctx, &renamed))
		require.NoError(t, repo.Upsert(ctx, &renamed))

		got, err := repo.ByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "wanderer", got.Username)

		byEmail, err := repo.ByField(ctx, "email", "walker@example.com")
		require.NoError(t, err)
		assert.Len(t, byEmail, 1)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := repo.ByField(ctx, "password", "x")
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("delete is a no-op when absent", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "u1"))
		require.NoError(t, repo.Delete(ctx, "u1"))

		_, err := repo.ByID(ctx, "u1")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestPostRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(newTestDB(t), NewHub())
	base := model.Now()

	var posts []*model.Post
	for i := 0; i < 25; i++ {
		userID := "u1"
		if i%5 == 0 {
			userID = "u2"
		}
		posts = append(posts, testPost(fmt.Sprintf("p%02d", i), userID, base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, repo.UpsertMany(ctx, posts))

	t.Run("lookup by id", func(t *testing.T) {
		got, err := repo.ByID(ctx, "p03")
		require.NoError(t, err)
		assert.Equal(t, "Tahoe", got.Location)
		assert.True(t, got.HasLocation())
		assert.True(t, posts[3].CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("by field", func(t *testing.T) {
		got, err := repo.ByField(ctx, "userId", "u2")
		require.NoError(t, err)
		assert.Len(t, got, 5)
		for _, p := range got {
			assert.Equal(t, "u2", p.UserID)
		}

		mine, err := repo.ByUser(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, mine, 5)
		assert.Equal(t, "p20", mine[0].PostID)
		assert.Equal(t, "p00", mine[4].PostID)
	})

	t.Run("recent is ordered and limited", func(t *testing.T) {
		got, err := repo.Recent(ctx, 20)
		require.NoError(t, err)
		require.Len(t, got, 20)
		assert.Equal(t, "p24", got[0].PostID)
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt))
		}
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "p24"))
		_, err := repo.ByID(ctx, "p24")
		assert.ErrorIs(t, err, ErrPostNotFound)
		require.NoError(t, repo.Delete(ctx, "p24"))
	})

	t.Run("delete all", func(t *testing.T) {
		require.NoError(t, repo.DeleteAll(ctx))
		got, err := repo.Query(ctx, PostQuery{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestPostRepositoryWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewPostRepository(newTestDB(t), NewHub())
	updates := repo.Watch(ctx, PostQuery{Field: "userId", Value: "u1"})

	next := func() []*model.Post {
		t.Helper()
		select {
		case posts := <-updates:
			return posts
		case <-time.After(5 * time.Second):
			t.Fatal("no delivery from watch")
			return nil
		}
	}

	assert.Empty(t, next())

	require.NoError(t, repo.Upsert(ctx, testPost("p1", "u1", model.Now())))
	assert.Len(t, next(), 1)

	require.NoError(t, repo.Delete(ctx, "p1"))
	assert.Empty(t, next())

	cancel()
	for range updates {
	}
}

func TestUserRepositoryWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewUserRepository(newTestDB(t), NewHub())
	updates := repo.Watch(ctx, "u1")

	assert.Nil(t, <-updates)

	require.NoError(t, repo.Upsert(ctx, &model.User{UserID: "u1", Username: "walker", CreatedAt: model.Now()}))
	select {
	case user := <-updates:
		require.NotNil(t, user)
		assert.Equal(t, "walker", user.Username)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery from watch")
	}
}

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(newTestDB(t))

	_, err := repo.Current(ctx)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	require.NoError(t, repo.Save(ctx, &model.Credential{UserID: "u1", Email: "a@example.com", Token: "t1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, repo.Save(ctx, &model.Credential{UserID: "u2", Email: "b@example.com", Token: "t2", ExpiresAt: time.Now().Add(time.Hour)}))

	current, err := repo.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u2", current.UserID)
	assert.False(t, current.IsExpired())

	require.NoError(t, repo.Clear(ctx))
	_, err = repo.Current(ctx)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestCorruptStoreIsFatal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 2048), 0o644))

	// sqlx.Open does not connect, so the first query hits the bad file
	database, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer database.Close()

	hub := NewHub()
	users := NewUserRepository(database, hub)
	posts := NewPostRepository(database, hub)

	_, err = users.ByID(ctx, "u1")
	assert.True(t, IsFatal(err), "lookup: %v", err)
	assert.ErrorIs(t, err, ErrStoreCorrupt)

	err = users.Upsert(ctx, &model.User{UserID: "u1", CreatedAt: model.Now()})
	assert.True(t, IsFatal(err), "upsert: %v", err)

	_, err = posts.Recent(ctx, 20)
	assert.True(t, IsFatal(err), "listing: %v", err)

	err = NewCredentialRepository(database).Clear(ctx)
	assert.True(t, IsFatal(err), "credentials: %v", err)
}
