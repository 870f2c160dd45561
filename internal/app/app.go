package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/travelog/travelog/internal/auth"
	"github.com/travelog/travelog/internal/config"
	"github.com/travelog/travelog/internal/db"
	"github.com/travelog/travelog/internal/media"
	"github.com/travelog/travelog/internal/observe"
	"github.com/travelog/travelog/internal/remote"
	"github.com/travelog/travelog/internal/remote/postgres"
	"github.com/travelog/travelog/internal/repository"
	"github.com/travelog/travelog/internal/service"
	"github.com/travelog/travelog/internal/session"
	"github.com/travelog/travelog/internal/storage"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	Pool           *pgxpool.Pool
	Session        *session.Session
	Mirror         *service.Mirror
	AccountService *service.AccountService
	ProfileService *service.ProfileService
	PostService    *service.PostService
	FeedService    *service.FeedService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	database, err := db.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	err = db.RunMigrations(database.DB, db.LocalMigrations)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to run local migrations: %w", err)
	}

	pool, err := postgres.Open(ctx, cfg.RemoteDatabaseURL)
	if err != nil {
		_ = db.Close(database)
		return nil, err
	}

	// The cache serves reads while the remote is down, so a failed migration
	// is not fatal.
	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = migrateRemote(migrateCtx, pool)
	cancel()
	if err != nil {
		slog.Warn("remote database unreachable, starting offline", "error", err)
	}

	encoder, err := newEncoder(ctx, cfg)
	if err != nil {
		pool.Close()
		_ = db.Close(database)
		return nil, err
	}

	a := assemble(ctx, cfg, database, postgres.New(pool), auth.NewAccountStore(pool), encoder)
	a.Pool = pool
	return a, nil
}

func migrateRemote(ctx context.Context, pool *pgxpool.Pool) error {
	err := pool.Ping(ctx)
	if err != nil {
		return err
	}
	return postgres.Migrate(pool)
}

func newEncoder(ctx context.Context, cfg *config.Config) (media.Encoder, error) {
	if cfg.MediaMode != config.MediaS3 {
		return media.InlineEncoder{}, nil
	}

	s3, err := storage.NewS3Storage(ctx, storage.S3Config{
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Endpoint:  cfg.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return media.NewS3Encoder(s3), nil
}

// assemble wires the coordinators on top of a local store and a remote.
func assemble(
	ctx context.Context,
	cfg *config.Config,
	database *sqlx.DB,
	store remote.Store,
	accounts auth.AccountStore,
	encoder media.Encoder,
) *App {
	ordering := observe.LastResponse
	if cfg.StrictOrdering {
		ordering = observe.Latest
	}

	// Repositories
	hub := repository.NewHub()
	userRepository := repository.NewUserRepository(database, hub)
	postRepository := repository.NewPostRepository(database, hub)
	credentialRepository := repository.NewCredentialRepository(database)

	gateway := remote.NewGateway(store)
	authService := auth.NewService(accounts, credentialRepository, cfg.JWTSecret, cfg.JWTExpiry)
	sess := session.New(ctx, authService)
	mirror := service.NewMirror()

	// Services
	feedService := service.NewFeedService(gateway, postRepository, mirror, ordering)
	postService := service.NewPostService(gateway, postRepository, userRepository, mirror, sess, encoder, feedService, ordering)
	profileService := service.NewProfileService(gateway, userRepository, mirror, sess, encoder, ordering)
	accountService := service.NewAccountService(authService, gateway, userRepository, postRepository, mirror)

	return &App{
		Cfg:            cfg,
		DB:             database,
		Session:        sess,
		Mirror:         mirror,
		AccountService: accountService,
		ProfileService: profileService,
		PostService:    postService,
		FeedService:    feedService,
	}
}

// Close releases subscriptions, finishes pending cache writes and closes
// both databases.
func (a *App) Close() error {
	a.FeedService.Close()
	a.Mirror.Close()
	a.Session.Close()

	if a.Pool != nil {
		a.Pool.Close()
	}
	return db.Close(a.DB)
}
