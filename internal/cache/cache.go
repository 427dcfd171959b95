// Package cache stores analytics snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
)

// Analytics caches EventAnalytics snapshots per event for a fixed TTL.
type Analytics struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAnalytics returns a cache using rdb. A non-positive ttl defaults to a
// minute.
func NewAnalytics(rdb *redis.Client, ttl time.Duration) *Analytics {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Analytics{rdb: rdb, ttl: ttl}
}

// Key returns the Redis key holding eventID's snapshot.
func Key(eventID string) string {
	return "analytics:" + eventID
}

// GenerationKey returns the Redis key holding eventID's invalidation
// counter. It carries no TTL so the counter never resets.
func GenerationKey(eventID string) string {
	return "analytics:gen:" + eventID
}

// setIfGeneration writes the snapshot only while the counter at KEYS[1]
// still equals ARGV[1]. A missing counter reads as 0.
var setIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[1]) or '0'
if cur ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Get returns the cached snapshot, or nil on a miss.
func (c *Analytics) Get(ctx context.Context, eventID string) (*model.EventAnalytics, error) {
	raw, err := c.rdb.Get(ctx, Key(eventID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get analytics %s: %w", eventID, err)
	}
	var snap model.EventAnalytics
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode analytics %s: %w", eventID, err)
	}
	return &snap, nil
}

// Generation returns eventID's invalidation counter, 0 if never invalidated.
func (c *Analytics) Generation(ctx context.Context, eventID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, GenerationKey(eventID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get analytics generation %s: %w", eventID, err)
	}
	return gen, nil
}

// Set stores snap under its event id if the event's generation is still
// gen. A snapshot from an older generation is dropped without error.
func (c *Analytics) Set(ctx context.Context, snap *model.EventAnalytics, gen int64) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode analytics: %w", err)
	}
	keys := []string{GenerationKey(snap.EventID), Key(snap.EventID)}
	err = setIfGeneration.Run(ctx, c.rdb, keys,
		strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("set analytics %s: %w", snap.EventID, err)
	}
	return nil
}

// Invalidate drops the snapshot for eventID and advances its generation.
func (c *Analytics) Invalidate(ctx context.Context, eventID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey(eventID))
		pipe.Del(ctx, Key(eventID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate analytics %s: %w", eventID, err)
	}
	return nil
}
