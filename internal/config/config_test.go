package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "cinema")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("BCRYPT_COST", "10")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c := Load()
	assert.Equal(t, "usd", c.Currency)
	assert.Equal(t, 15*time.Minute, c.HoldTTL)
	assert.Equal(t, time.Minute, c.SweepInterval)
	assert.Equal(t, time.UTC, c.Timezone)
	assert.Equal(t, "reservation.events", c.EventQueue)
	assert.True(t, c.AutoMigrate)
	assert.False(t, c.SeedHalls)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HOLD_TTL", "2m")
	t.Setenv("SEED_HALLS", "yes")
	t.Setenv("CINEMA_TIMEZONE", "Europe/Berlin")
	t.Setenv("SWEEP_INTERVAL", "bogus")

	c := Load()
	assert.Equal(t, 2*time.Minute, c.HoldTTL)
	assert.True(t, c.SeedHalls)
	assert.Equal(t, "Europe/Berlin", c.Timezone.String())
	assert.Equal(t, time.Minute, c.SweepInterval)
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 50*time.Second, c.TTL)
}

func TestCacheMethodsUpperCased(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	c := LoadCacheConfig()
	assert.True(t, c.Methods["GET"])
	assert.True(t, c.Methods["HEAD"])
	assert.False(t, c.Methods["POST"])
}
