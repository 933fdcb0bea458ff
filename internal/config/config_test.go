package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "3000", cfg.ServerPort)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, BackendFile, cfg.HistoryBackend)
	assert.Equal(t, BlobLocal, cfg.BlobBackend)
	assert.False(t, cfg.RequireJoin)
	assert.True(t, cfg.PresenceEnabled)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("ADMIN_KEY", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("REQUIRE_JOIN", "true")
	t.Setenv("PRESENCE_ENABLED", "0")
	t.Setenv("MAX_FILE_SIZE", "2048")
	t.Setenv("HISTORY_BACKEND", "Redis")

	cfg := LoadConfig()

	assert.Equal(t, "4000", cfg.ServerPort)
	assert.True(t, cfg.AdminEnabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.RequireJoin)
	assert.False(t, cfg.PresenceEnabled)
	assert.Equal(t, int64(2048), cfg.MaxFileSize)
	assert.Equal(t, BackendRedis, cfg.HistoryBackend)
}

func TestServerPortPrefersServerPort(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("SERVER_PORT", "5000")

	assert.Equal(t, "5000", LoadConfig().ServerPort)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "-1")
	t.Setenv("RATE_LIMIT_BURST", "abc")
	t.Setenv("RATE_LIMIT_RPS", "0")

	cfg := LoadConfig()
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, float64(5), cfg.RateLimitRPS)
}
