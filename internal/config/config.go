package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Store and lock backends.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"

	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // zap level name; empty picks one from Env

	StoreDriver string // "mysql" or "memory"
	DBUser      string // database username
	DBPass      string // database password (optional)
	DBHost      string // database host address
	DBPort      string // database port number
	DBName      string // database name
	DBMigrate   bool   // apply the embedded schema on start

	HoldTTL       time.Duration // how long a pending booking keeps its seats
	SweepSchedule string        // cron expression for the expiry sweeper

	LockBackend string        // "local" or "redis"
	LockTTL     time.Duration // redis lock lease
	LockWait    time.Duration // longest wait for a show lock

	EventsEnabled bool   // publish booking events to RabbitMQ
	RabbitMQURL   string // broker URL
}

// Load reads configuration values from environment variables. Every
// missing required variable is reported in one error.
func Load() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		StoreDriver:   strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		DBPass:        os.Getenv("DB_PASS"),
		DBMigrate:     envBool("DB_MIGRATE", false),
		HoldTTL:       envDur("HOLD_TTL", 15*time.Minute),
		SweepSchedule: envStr("SWEEP_SCHEDULE", "@every 30s"),
		LockBackend:   strings.ToLower(envStr("LOCK_BACKEND", LockLocal)),
		LockTTL:       envDur("LOCK_TTL", 10*time.Second),
		LockWait:      envDur("LOCK_WAIT", 5*time.Second),
		EventsEnabled: envBool("EVENTS_ENABLED", true),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
	}
	if cfg.RabbitMQURL == "" {
		cfg.RabbitMQURL = os.Getenv("AMQP_URL")
	}

	switch cfg.StoreDriver {
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case StoreMemory:
	default:
		return cfg, fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", cfg.StoreDriver, StoreMySQL, StoreMemory)
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	switch cfg.LockBackend {
	case LockLocal, LockRedis:
	default:
		return cfg, fmt.Errorf("invalid LOCK_BACKEND %q: want %s or %s", cfg.LockBackend, LockLocal, LockRedis)
	}
	if cfg.HoldTTL <= 0 {
		return cfg, errors.New("HOLD_TTL must be positive")
	}
	if cfg.LockWait <= 0 || cfg.LockTTL <= 0 {
		return cfg, errors.New("LOCK_WAIT and LOCK_TTL must be positive")
	}
	return cfg, nil
}
