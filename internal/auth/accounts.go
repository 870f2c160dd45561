package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/travelog/travelog/internal/model"
	"github.com/travelog/travelog/internal/remote"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountStore persists sign-in identities.
type AccountStore interface {
	Create(ctx context.Context, account *model.Account) error
	ByEmail(ctx context.Context, email string) (*model.Account, error)
}

type accountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore keeps accounts in the accounts table of the remote database.
func NewAccountStore(pool *pgxpool.Pool) AccountStore {
	return &accountStore{pool: pool}
}

func (s *accountStore) Create(ctx context.Context, account *model.Account) error {
	query := `INSERT INTO accounts (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query, account.ID, account.Email, account.PasswordHash, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("%w: %v", remote.ErrRemoteUnavailable, err)
	}

	return nil
}

func (s *accountStore) ByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1`

	var account model.Account
	err := s.pool.QueryRow(ctx, query, email).Scan(&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", remote.ErrRemoteUnavailable, err)
	}

	return &account, nil
}
