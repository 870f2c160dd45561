package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	MediaInline = "inline"
	MediaS3     = "s3"
)

type Config struct {
	// Application
	AppEnv string

	// Local cache (SQLite)
	LocalDBPath string

	// Remote document database (PostgreSQL)
	RemoteDatabaseURL string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Sync
	StrictOrdering bool // drop results of superseded loads

	// Observability (optional)
	SentryDSN string

	// Media: "inline" embeds base64 JPEGs in records, "s3" uploads and stores URLs
	MediaMode string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		AppEnv: envRequired("APP_ENV"), // Required: 'development' or 'production'

		LocalDBPath:       envString("LOCAL_DB_PATH", "./data/travelog.db"),
		RemoteDatabaseURL: envRequired("REMOTE_DATABASE_URL"),

		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 720*time.Hour), // 30 days

		StrictOrdering: envBool("STRICT_ORDERING", true),

		SentryDSN: envString("SENTRY_DSN", ""),

		MediaMode: envString("MEDIA_MODE", MediaInline),

		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	if cfg.MediaMode != MediaInline && cfg.MediaMode != MediaS3 {
		slog.Warn("config unknown media mode, using inline", "value", cfg.MediaMode)
		cfg.MediaMode = MediaInline
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures uploads have somewhere to go.
func validateProduction(cfg *Config) {
	if cfg.MediaMode == MediaS3 && (cfg.S3Bucket == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "") {
		slog.Error("MEDIA_MODE=s3 requires S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY",
			"hint", "set MEDIA_MODE=inline to embed images in records")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
