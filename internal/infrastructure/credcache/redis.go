package credcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"newsintel/internal/domain"
	"newsintel/internal/ports"
)

const keyPrefix = "newsintel:credentials:"

// RedisCache is the durable local credential cache keyed by user identity.
// Entries expire on a session-scale TTL so rotated keys eventually converge.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.CredentialCache = (*RedisCache)(nil)

// NewRedisCache wires a go-redis client; zero TTL means entries never expire.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached credentials and whether they were present.
func (c *RedisCache) Get(ctx context.Context, userID string) (domain.Credentials, bool, error) {
	if c.client == nil {
		return domain.Credentials{}, false, nil
	}

	raw, err := c.client.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Credentials{}, false, nil
		}
		return domain.Credentials{}, false, fmt.Errorf("cache get %s: %w", userID, err)
	}

	var creds domain.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		// A corrupt entry behaves like a miss so the resolver refetches.
		return domain.Credentials{}, false, nil
	}

	return creds, true, nil
}

// Put stores the credentials under the user's key.
func (c *RedisCache) Put(ctx context.Context, userID string, creds domain.Credentials) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+userID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put %s: %w", userID, err)
	}

	return nil
}

// Invalidate drops the cached entry, typically after key rotation.
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", userID, err)
	}

	return nil
}
