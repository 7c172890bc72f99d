package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080", "DB_USER": "app", "DB_HOST": "localhost",
		"DB_PORT": "3306", "DB_NAME": "tickets", "JWT_SECRET": "jwt-secret",
		"ACCESS_TOKEN_TTL_MIN": "15", "BCRYPT_COST": "4",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c := Load()
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 15, c.AccessTTLMin)
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, "usd", c.Currency)
	assert.Equal(t, "jwt-secret", c.TicketSigningSecret)
	assert.Zero(t, c.PendingBookingTTL)
	assert.Equal(t, 10, c.LimitedPercent)
	assert.False(t, c.IsProd())
}

func TestLoadOptionalOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("PENDING_BOOKING_TTL", "30m")
	t.Setenv("AVAILABILITY_LIMITED_PERCENT", "20")
	t.Setenv("RABBITMQ_URL", "amqp://u:p@mq:5672/")
	t.Setenv("CURRENCY", "EUR")

	c := Load()
	assert.True(t, c.IsProd())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	assert.Equal(t, 30*time.Minute, c.PendingBookingTTL)
	assert.Equal(t, 20, c.LimitedPercent)
	assert.Equal(t, "amqp://u:p@mq:5672/", c.AMQPURL)
	assert.Equal(t, "eur", c.Currency)
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL)
	assert.InDelta(t, 0.5, c.PerSecond(), 1e-9)
}

func TestCacheConfigSets(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	c := LoadCacheConfig()
	assert.True(t, c.Methods["GET"])
	assert.True(t, c.Methods["HEAD"])
	assert.True(t, c.Paths["/v1/events"])
	assert.False(t, c.Paths["/v1/bookings/mine"])
}
