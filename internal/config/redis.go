package config // config reads process settings from the environment

// Redis backs the availability cache, the response cache and distributed
// rate limiting.  When the server cannot be reached at startup the client is
// nil and callers degrade to uncached, in-process behaviour.

import (
	"context"    // bounds the startup ping
	"crypto/tls" // managed Redis offerings usually require TLS
	"os"         // settings come from environment variables
	"strings"    // case-insensitive flag parsing
	"time"       // ping timeout

	"github.com/redis/go-redis/v9" // go-redis is the Redis client used across the service
	"github.com/sirupsen/logrus"   // structured logging for the degraded-mode warning
)

// RedisOptions reads the connection settings:
//
//	REDIS_HOST and REDIS_PORT, or REDIS_ADDR as host:port shorthand
//	REDIS_PASSWORD, REDIS_DB (default 0), REDIS_TLS ("true" or "1")
func RedisOptions() *redis.Options {
	// REDIS_ADDR is the shorthand; an explicit host and port pair overrides it.
	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379" // local development default
	}
	opts := &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"), // empty means no AUTH
		DB:       envInt("REDIS_DB", 0),
	}
	// Only turn TLS on when asked; a plain local server would reject the handshake.
	if v := os.Getenv("REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient connects with RedisOptions and pings the server.  It returns
// nil when the server is unreachable.
func NewRedisClient(log logrus.FieldLogger) *redis.Client {
	opts := RedisOptions()
	client := redis.NewClient(opts) // lazy; no connection is made yet
	// A short ping keeps startup fast when Redis is down.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", opts.Addr).Warn("redis unavailable; caching and distributed rate limiting disabled")
		_ = client.Close() // release the pool; callers get nil and skip Redis entirely
		return nil
	}
	return client
}
