package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/travelog/travelog/internal/model"
)

type PostRepository interface {
	Upsert(ctx context.Context, post *model.Post) error
	UpsertMany(ctx context.Context, posts []*model.Post) error
	ByID(ctx context.Context, id string) (*model.Post, error)
	ByField(ctx context.Context, field, value string) ([]*model.Post, error)
	Query(ctx context.Context, q PostQuery) ([]*model.Post, error)
	// Recent lists the newest posts across all authors.
	Recent(ctx context.Context, limit int) ([]*model.Post, error)
	ByUser(ctx context.Context, userID string) ([]*model.Post, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Watch(ctx context.Context, q PostQuery) <-chan []*model.Post
}

// PostQuery selects cached posts, newest first.
// An empty Field matches every post; Limit <= 0 means no limit.
type PostQuery struct {
	Field string
	Value string
	Limit int
}

var postFields = map[string]string{
	"postId":   "post_id",
	"userId":   "user_id",
	"username": "username",
	"location": "location",
}

type postRow struct {
	PostID      string  `db:"post_id"`
	UserID      string  `db:"user_id"`
	Username    string  `db:"username"`
	Title       string  `db:"title"`
	Description string  `db:"description"`
	Location    string  `db:"location"`
	Latitude    float64 `db:"latitude"`
	Longitude   float64 `db:"longitude"`
	ImageURI    string  `db:"image_uri"`
	CreatedAt   int64   `db:"created_at"`
	UpdatedAt   int64   `db:"updated_at"`
}

func (r postRow) toModel() *model.Post {
	return &model.Post{
		PostID:      r.PostID,
		UserID:      r.UserID,
		Username:    r.Username,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		ImageURI:    r.ImageURI,
		CreatedAt:   model.FromMillis(r.CreatedAt),
		UpdatedAt:   model.FromMillis(r.UpdatedAt),
	}
}

type postRepository struct {
	db  *sqlx.DB
	hub *Hub
}

func NewPostRepository(db *sqlx.DB, hub *Hub) PostRepository {
	return &postRepository{db: db, hub: hub}
}

const upsertPostQuery = `INSERT INTO posts (post_id, user_id, username, title, description, location, latitude, longitude, image_uri, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (post_id) DO UPDATE SET
		user_id = excluded.user_id,
		username = excluded.username,
		title = excluded.title,
		description = excluded.description,
		location = excluded.location,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		image_uri = excluded.image_uri,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPost(ctx context.Context, e execer, post *model.Post) error {
	_, err := e.ExecContext(ctx, upsertPostQuery,
		post.PostID,
		post.UserID,
		post.Username,
		post.Title,
		post.Description,
		post.Location,
		post.Latitude,
		post.Longitude,
		post.ImageURI,
		model.Millis(post.CreatedAt),
		model.Millis(post.UpdatedAt),
	)
	return err
}

func (r *postRepository) Upsert(ctx context.Context, post *model.Post) error {
	err := upsertPost(ctx, r.db, post)
	if err != nil {
		return classify(err)
	}

	r.hub.publish(TablePosts)
	return nil
}

func (r *postRepository) UpsertMany(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	for _, post := range posts {
		err := upsertPost(ctx, tx, post)
		if err != nil {
			return fmt.Errorf("failed to upsert post %s: %w", post.PostID, classify(err))
		}
	}

	err = tx.Commit()
	if err != nil {
		return classify(err)
	}

	r.hub.publish(TablePosts)
	return nil
}

func (r *postRepository) ByID(ctx context.Context, id string) (*model.Post, error) {
	var row postRow
	query := `SELECT * FROM posts WHERE post_id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, classify(err)
	}

	return row.toModel(), nil
}

func (r *postRepository) ByField(ctx context.Context, field, value string) ([]*model.Post, error) {
	return r.Query(ctx, PostQuery{Field: field, Value: value})
}

func (r *postRepository) Query(ctx context.Context, q PostQuery) ([]*model.Post, error) {
	query := `SELECT * FROM posts`
	var args []any

	if q.Field != "" {
		column, ok := postFields[q.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, q.Field)
		}
		query += ` WHERE ` + column + ` = $1`
		args = append(args, q.Value)
	}

	query += ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, q.Limit)
	}

	var rows []postRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, classify(err)
	}

	posts := make([]*model.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.toModel())
	}
	return posts, nil
}

func (r *postRepository) Recent(ctx context.Context, limit int) ([]*model.Post, error) {
	return r.Query(ctx, PostQuery{Limit: limit})
}

func (r *postRepository) ByUser(ctx context.Context, userID string) ([]*model.Post, error) {
	return r.Query(ctx, PostQuery{Field: "userId", Value: userID})
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM posts WHERE post_id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return classify(err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows > 0 {
		r.hub.publish(TablePosts)
	}

	return nil
}

func (r *postRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts`)
	if err != nil {
		return classify(err)
	}

	r.hub.publish(TablePosts)
	return nil
}

// Watch delivers the full result of q now and after every change to the posts table.
func (r *postRepository) Watch(ctx context.Context, q PostQuery) <-chan []*model.Post {
	return watch(ctx, r.hub, TablePosts, func(ctx context.Context) ([]*model.Post, error) {
		return r.Query(ctx, q)
	})
}
