package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "STORE_DRIVER", "JWT_TTL", "OVERLOAD_DISABLED", "OVERLOAD_PROBABILITY", "MAX_UPLOAD_SIZE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "4000", cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.False(t, cfg.OverloadDisabled)
	assert.InDelta(t, 0.2, cfg.OverloadProbability, 1e-9)
	assert.Equal(t, "5M", cfg.MaxUploadSize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("OVERLOAD_DISABLED", "true")
	t.Setenv("OVERLOAD_PROBABILITY", "0.5")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.True(t, cfg.OverloadDisabled)
	assert.InDelta(t, 0.5, cfg.OverloadProbability, 1e-9)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "abc")
	t.Setenv("OVERLOAD_DISABLED", "maybe")
	t.Setenv("JWT_TTL", "forever")

	cfg := Load()

	assert.Equal(t, 0, cfg.RedisDB)
	assert.False(t, cfg.OverloadDisabled)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
}
