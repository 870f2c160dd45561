// Package postgres stores remote documents as JSONB rows in PostgreSQL.
// Live queries are driven by LISTEN/NOTIFY on the documents channel.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/travelog/travelog/internal/db"
	"github.com/travelog/travelog/internal/remote"
)

const notifyChannel = "documents"

// Open builds a pool for url. No connection is made until the first query, so
// the app can start while the remote is unreachable.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse remote database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.ConnectTimeout = 10 * time.Second
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create remote pool: %w", err)
	}
	return pool, nil
}

// Migrate applies the remote schema: documents, change trigger and accounts.
func Migrate(pool *pgxpool.Pool) error {
	// connections go back to the pool, which stays open
	sqlDB := stdlib.OpenDBFromPool(pool)
	return db.RunMigrations(sqlDB, db.RemoteMigrations)
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, collection remote.Collection, id string) (remote.RawDocument, error) {
	query := `SELECT body::text FROM documents WHERE collection = $1 AND id = $2`

	var body string
	err := s.pool.QueryRow(ctx, query, string(collection), id).Scan(&body)
	if err != nil {
		return remote.RawDocument{}, classify(err)
	}

	return remote.RawDocument{ID: id, Body: []byte(body)}, nil
}

func (s *Store) Find(ctx context.Context, q remote.Query) ([]remote.RawDocument, error) {
	query, args, err := buildFind(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var docs []remote.RawDocument
	for rows.Next() {
		var id, body string
		err := rows.Scan(&id, &body)
		if err != nil {
			return nil, classify(err)
		}
		docs = append(docs, remote.RawDocument{ID: id, Body: []byte(body)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return docs, nil
}

// buildFind renders q as SQL. Field names are inlined as literals so the
// planner can match the expression indexes; ValidField keeps them to
// identifier characters.
func buildFind(q remote.Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{string(q.Collection)}

	sb.WriteString(`SELECT id, body::text FROM documents WHERE collection = $1`)

	if q.Field != "" {
		if !remote.ValidField(q.Field) {
			return "", nil, fmt.Errorf("%w: %s", remote.ErrInvalidField, q.Field)
		}
		args = append(args, q.Value)
		fmt.Fprintf(&sb, ` AND body->>'%s' = $%d`, q.Field, len(args))
	}

	if q.OrderBy != "" {
		if !remote.ValidField(q.OrderBy) {
			return "", nil, fmt.Errorf("%w: %s", remote.ErrInvalidField, q.OrderBy)
		}
		direction := "ASC"
		if q.Desc {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, ` ORDER BY body->'%s' %s NULLS LAST`, q.OrderBy, direction)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	return sb.String(), args, nil
}

func (s *Store) Set(ctx context.Context, collection remote.Collection, id string, body []byte) error {
	query := `
		INSERT INTO documents (collection, id, body, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query, string(collection), id, string(body))
	return classify(err)
}

func (s *Store) Merge(ctx context.Context, collection remote.Collection, id string, fields []byte) error {
	query := `
		UPDATE documents SET body = body || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`

	tag, err := s.pool.Exec(ctx, query, string(collection), id, string(fields))
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection remote.Collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	_, err := s.pool.Exec(ctx, query, string(collection), id)
	return classify(err)
}

// Changes holds one pooled connection in LISTEN mode for as long as ctx lives.
func (s *Store) Changes(ctx context.Context, collection remote.Collection) (<-chan struct{}, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}

	_, err = conn.Exec(ctx, "LISTEN "+notifyChannel)
	if err != nil {
		conn.Release()
		return nil, classify(err)
	}

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer func() {
			if !conn.Conn().IsClosed() {
				unlistenCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_, _ = conn.Exec(unlistenCtx, "UNLISTEN "+notifyChannel)
				cancel()
			}
			conn.Release()
		}()

		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("remote change stream ended", "collection", collection, "error", err)
				}
				return
			}
			if notification.Payload != string(collection) {
				continue
			}

			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out, nil
}

// classify maps driver errors onto the remote error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return remote.ErrNotFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", "22032":
			return fmt.Errorf("%w: %v", remote.ErrMalformed, err)
		}
	}

	return fmt.Errorf("%w: %v", remote.ErrRemoteUnavailable, err)
}
