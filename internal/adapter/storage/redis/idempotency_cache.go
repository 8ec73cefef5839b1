package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const idempotencyNamespace = KeyPrefix + "idem:"

// IdempotencyCache keeps committed wallet responses in redis so retries of a
// transfer or charge can be answered without touching postgres. The
// idempotency_logs table stays the source of truth.
type IdempotencyCache struct {
	client goredis.UniversalClient
}

func NewIdempotencyCache(client goredis.UniversalClient) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

func (c *IdempotencyCache) key(k string) string {
	return idempotencyNamespace + k
}

// Get returns the stored response, or nil when the key is unknown or expired.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	stored, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("idempotency cache get %q: %w", key, err)
	}
	return stored, nil
}

// Set records a response for ttl. The first committed response wins.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.SetNX(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency cache set %q: %w", key, err)
	}
	return nil
}
