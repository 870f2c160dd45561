package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("REMOTE_DATABASE_URL", "postgres://localhost/travelog")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MEDIA_MODE", "carrier-pigeon")
	t.Setenv("STRICT_ORDERING", "false")

	cfg := Load()
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "./data/travelog.db", cfg.LocalDBPath)
	assert.Equal(t, 720*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, MediaInline, cfg.MediaMode)
	assert.False(t, cfg.StrictOrdering)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TRAVELOG_BOOL", "nope")
	t.Setenv("TRAVELOG_DURATION", "90s")
	t.Setenv("TRAVELOG_BAD_DURATION", "soon")

	assert.True(t, envBool("TRAVELOG_BOOL", true))
	assert.False(t, envBool("TRAVELOG_UNSET", false))
	assert.Equal(t, 90*time.Second, envDuration("TRAVELOG_DURATION", time.Minute))
	assert.Equal(t, time.Minute, envDuration("TRAVELOG_BAD_DURATION", time.Minute))
	assert.Equal(t, "fallback", envString("TRAVELOG_UNSET", "fallback"))
}
