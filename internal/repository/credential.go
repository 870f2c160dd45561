package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/travelog/travelog/internal/model"
)

// CredentialRepository keeps the session token of the one signed-in user.
type CredentialRepository interface {
	Save(ctx context.Context, credential *model.Credential) error
	Current(ctx context.Context) (*model.Credential, error)
	Clear(ctx context.Context) error
}

type credentialRepository struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

// Save replaces any stored credential, so at most one user is signed in
func (r *credentialRepository) Save(ctx context.Context, credential *model.Credential) error {
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		return classify(err)
	}

	query := `INSERT INTO credentials (user_id, email, token, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err = tx.ExecContext(ctx, query,
		credential.UserID,
		credential.Email,
		credential.Token,
		credential.ExpiresAt,
		credential.CreatedAt,
	)
	if err != nil {
		return classify(err)
	}

	return classify(tx.Commit())
}

func (r *credentialRepository) Current(ctx context.Context) (*model.Credential, error) {
	var credential model.Credential
	query := `SELECT * FROM credentials ORDER BY created_at DESC LIMIT 1`

	err := r.db.GetContext(ctx, &credential, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, classify(err)
	}

	return &credential, nil
}

func (r *credentialRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials`)
	return classify(err)
}
