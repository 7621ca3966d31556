package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"APP_ENV", "APP_PORT", "LOG_LEVEL", "STORE_DRIVER",
	"DB_USER", "DB_PASS", "DB_HOST", "DB_PORT", "DB_NAME", "DB_MIGRATE",
	"HOLD_TTL", "SWEEP_SCHEDULE", "LOCK_BACKEND", "LOCK_TTL", "LOCK_WAIT",
	"EVENTS_ENABLED", "RABBITMQ_URL", "AMQP_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_MySQLDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "movies")
	t.Setenv("AMQP_URL", "amqp://x")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMySQL, cfg.StoreDriver)
	assert.Equal(t, LockLocal, cfg.LockBackend)
	assert.Equal(t, 15*time.Minute, cfg.HoldTTL)
	assert.Equal(t, "@every 30s", cfg.SweepSchedule)
	assert.True(t, cfg.EventsEnabled)
	assert.False(t, cfg.DBMigrate)
	assert.Equal(t, "amqp://x", cfg.RabbitMQURL)
}

func TestLoad_ReportsAllMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "dev")

	_, err := Load()
	require.Error(t, err)
	for _, k := range []string{"APP_PORT", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
		assert.Contains(t, err.Error(), k)
	}
}

func TestLoad_MemoryStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("HOLD_TTL", "2m")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("EVENTS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 2*time.Minute, cfg.HoldTTL)
	assert.Equal(t, LockRedis, cfg.LockBackend)
	assert.False(t, cfg.EventsEnabled)
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOCK_BACKEND", "zookeeper")
	_, err = Load()
	assert.ErrorContains(t, err, "LOCK_BACKEND")

	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("HOLD_TTL", "-1m")
	_, err = Load()
	assert.ErrorContains(t, err, "HOLD_TTL")
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL, "TTL is raised to five refill intervals")
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	t.Setenv("CACHE_TTL", "45s")

	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 45*time.Second, cfg.TTL)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "1")

	opts := RedisOptions()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", RedisOptions().Addr)
}
