package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/travelog/travelog/internal/model"
)

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	UpsertMany(ctx context.Context, users []*model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByField(ctx context.Context, field, value string) ([]*model.User, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Watch(ctx context.Context, id string) <-chan *model.User
}

// userFields maps record field names to columns that may be queried
var userFields = map[string]string{
	"userId":   "user_id",
	"username": "username",
	"email":    "email",
}

type userRow struct {
	UserID          string `db:"user_id"`
	Username        string `db:"username"`
	Email           string `db:"email"`
	ProfileImageURL string `db:"profile_image_url"`
	CreatedAt       int64  `db:"created_at"`
}

func (r userRow) toModel() *model.User {
	return &model.User{
		UserID:          r.UserID,
		Username:        r.Username,
		Email:           r.Email,
		ProfileImageURL: r.ProfileImageURL,
		CreatedAt:       model.FromMillis(r.CreatedAt),
	}
}

type userRepository struct {
	db  *sqlx.DB
	hub *Hub
}

func NewUserRepository(db *sqlx.DB, hub *Hub) UserRepository {
	return &userRepository{db: db, hub: hub}
}

const upsertUserQuery = `INSERT INTO users (user_id, username, email, profile_image_url, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id) DO UPDATE SET
		username = excluded.username,
		email = excluded.email,
		profile_image_url = excluded.profile_image_url,
		created_at = excluded.created_at`

func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx, upsertUserQuery,
		user.UserID,
		user.Username,
		user.Email,
		user.ProfileImageURL,
		model.Millis(user.CreatedAt),
	)
	if err != nil {
		return classify(err)
	}

	r.hub.publish(TableUsers)
	return nil
}

func (r *userRepository) UpsertMany(ctx context.Context, users []*model.User) error {
	if len(users) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	for _, user := range users {
		_, err := tx.ExecContext(ctx, upsertUserQuery,
			user.UserID,
			user.Username,
			user.Email,
			user.ProfileImageURL,
			model.Millis(user.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert user %s: %w", user.UserID, classify(err))
		}
	}

	err = tx.Commit()
	if err != nil {
		return classify(err)
	}

	r.hub.publish(TableUsers)
	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	var row userRow
	query := `SELECT * FROM users WHERE user_id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, classify(err)
	}

	return row.toModel(), nil
}

func (r *userRepository) ByField(ctx context.Context, field, value string) ([]*model.User, error) {
	column, ok := userFields[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	var rows []userRow
	query := `SELECT * FROM users WHERE ` + column + ` = $1`

	err := r.db.SelectContext(ctx, &rows, query, value)
	if err != nil {
		return nil, classify(err)
	}

	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return classify(err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows > 0 {
		r.hub.publish(TableUsers)
	}

	return nil
}

func (r *userRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return classify(err)
	}

	r.hub.publish(TableUsers)
	return nil
}

// Watch delivers the cached user (nil when absent) now and after every users change.
func (r *userRepository) Watch(ctx context.Context, id string) <-chan *model.User {
	return watch(ctx, r.hub, TableUsers, func(ctx context.Context) (*model.User, error) {
		user, err := r.ByID(ctx, id)
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return user, err
	})
}
