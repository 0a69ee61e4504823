package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "console:reference:version"
	// InvalidationChannel carries the new cache version after a bump.
	InvalidationChannel = "console.reference.bump"
)

// Cache is a Redis JSON cache whose keys embed a global version, so bumping the version
// invalidates every entry at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising it when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		// SetNX so concurrent initialisers agree on one value.
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	case err != nil:
		return 0, err
	case ver <= 0:
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return ver, nil
}

// Key composes a cache key for parts under the current version.
func (c *Cache) Key(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"console", "reference"}, parts...), ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// Bump invalidates every entry by incrementing the version and announces the new version.
func (c *Cache) Bump(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return 0, err
	}
	if err := c.client.Publish(ctx, InvalidationChannel, strconv.FormatInt(ver, 10)).Err(); err != nil {
		return ver, err
	}
	return ver, nil
}

// Listen calls onBump for every version announced on InvalidationChannel until ctx ends.
func (c *Cache) Listen(ctx context.Context, onBump func(version int64)) error {
	if !c.enabled() || onBump == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, InvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				onBump(ver)
			}
		}
	}()
	return nil
}

// cached serves key from Redis or fills it with load. Redis trouble degrades to calling load
// directly; only load errors are returned.
func cached[T any](ctx context.Context, c *Cache, name string, load func(context.Context) (T, error)) (T, error) {
	if !c.enabled() {
		return load(ctx)
	}
	key, err := c.Key(ctx, name)
	if err != nil {
		return load(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var value T
		if json.Unmarshal(payload, &value) == nil {
			return value, nil
		}
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if raw, err := json.Marshal(value); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return value, nil
}
