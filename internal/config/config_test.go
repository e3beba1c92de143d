package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEV_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageInMemory, cfg.Storage)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, DevJWTSecret, cfg.JWTSecret)
	assert.False(t, cfg.DevMode)
	assert.Error(t, cfg.Validate(), "default secret outside dev mode")

	t.Setenv("DEV_MODE", "true")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE", "pgx")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StoragePGX, cfg.Storage)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{Port: "8080", Storage: StorageInMemory, JWTSecret: "s3cret", RateLimitRPS: 1, RateLimitBurst: 1}
	require.NoError(t, base.Validate())

	pg := base
	pg.Storage = StoragePostgres
	assert.Error(t, pg.Validate())
	pg.DatabaseURL = "postgres://x"
	assert.NoError(t, pg.Validate())

	unknown := base
	unknown.Storage = "redis"
	assert.Error(t, unknown.Validate())

	noLimit := base
	noLimit.RateLimitRPS = 0
	assert.Error(t, noLimit.Validate())

	devSecret := base
	devSecret.JWTSecret = DevJWTSecret
	assert.Error(t, devSecret.Validate())
	devSecret.DevMode = true
	assert.NoError(t, devSecret.Validate())

	noSecret := base
	noSecret.JWTSecret = ""
	assert.Error(t, noSecret.Validate())
}
