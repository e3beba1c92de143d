// Package config читает настройки сервера из окружения (и .env, если он есть).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Типы хранилища.
const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
	StoragePGX      = "pgx"
)

// DevJWTSecret - секрет по умолчанию, допустимый только в DevMode.
const DevJWTSecret = "dev-secret"

// Config - настройки сервера.
type Config struct {
	Port        string `env:"PORT,default=8080"`
	Storage     string `env:"STORAGE,default=in-memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS,default=10"`

	// JWTSecret - общий секрет с провайдером личности.
	JWTSecret string `env:"JWT_SECRET,default=dev-secret"`
	// DevMode разрешает общеизвестный DevJWTSecret для локального запуска.
	DevMode bool `env:"DEV_MODE,default=false"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=40"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load загружает .env (если файл указан и существует) и декодирует окружение.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageInMemory:
	case StoragePostgres, StoragePGX:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for %s storage", c.Storage)
		}
	default:
		return fmt.Errorf("unknown storage type %q (in-memory, postgres or pgx)", c.Storage)
	}
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.JWTSecret == DevJWTSecret && !c.DevMode {
		return errors.New("JWT_SECRET is the development default; set a real secret or DEV_MODE=true")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}
