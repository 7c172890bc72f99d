// Package cache keeps derived availability views in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// Availability is a read-through store for model.Availability keyed by
// event id.  Entries are dropped whenever the event's seats change.
type Availability struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewAvailability returns a cache storing entries for ttl.
func NewAvailability(rdb redis.Cmdable, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Availability{rdb: rdb, ttl: ttl, prefix: "availability"}
}

// Key returns the Redis key for eventID.
func (c *Availability) Key(eventID uint64) string {
	return fmt.Sprintf("%s:%d", c.prefix, eventID)
}

// Get returns the cached view.  A miss is (zero, false, nil).
func (c *Availability) Get(ctx context.Context, eventID uint64) (model.Availability, bool, error) {
	raw, err := c.rdb.Get(ctx, c.Key(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Availability{}, false, nil
	}
	if err != nil {
		return model.Availability{}, false, err
	}
	var a model.Availability
	if err := json.Unmarshal(raw, &a); err != nil {
		return model.Availability{}, false, fmt.Errorf("decode %s: %w", c.Key(eventID), err)
	}
	return a, true, nil
}

// Set stores a under its event id.
func (c *Availability) Set(ctx context.Context, a model.Availability) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.Key(a.EventID), raw, c.ttl).Err()
}

// Invalidate drops the entry for eventID.
func (c *Availability) Invalidate(ctx context.Context, eventID uint64) error {
	return c.rdb.Del(ctx, c.Key(eventID)).Err()
}
