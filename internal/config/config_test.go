package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PRECHECKOUT_TIMEOUT", "")
	t.Setenv("LIFETIME_PRICE", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, int64(19900), cfg.LifetimePrice)
	assert.Equal(t, 5*time.Second, cfg.PreCheckoutTimeout)
	assert.Equal(t, "RUB", cfg.Currency)
}

func TestFromEnvRequiresBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsLongPreCheckoutTimeout(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("PRECHECKOUT_TIMEOUT", "15s")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("CURRENCY", "xtr")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "XTR", cfg.Currency)
}
