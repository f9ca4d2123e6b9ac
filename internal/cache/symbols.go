package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"newsimpact/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// SymbolCache stores resolver mappings in redis. Resolved entries have no
// TTL; unresolved entries expire at their ExpiresAt.
type SymbolCache struct {
	tracer trace.Tracer
	redis  RedisClient
	now    func() time.Time
}

func NewSymbolCache(tracer trace.Tracer, client RedisClient) *SymbolCache {
	return &SymbolCache{tracer: tracer, redis: client, now: time.Now}
}

func symbolKey(key string) string { return "symbol:" + key }

func (c *SymbolCache) Get(ctx context.Context, key string) (*domain.SymbolMapping, error) {
	ctx, span := c.tracer.Start(ctx, "symbol-cache.get")
	defer span.End()

	data, err := c.redis.Get(ctx, symbolKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m domain.SymbolMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *SymbolCache) Put(ctx context.Context, key string, m domain.SymbolMapping) error {
	ctx, span := c.tracer.Start(ctx, "symbol-cache.put")
	defer span.End()

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if m.ExpiresAt != nil {
		ttl = m.ExpiresAt.Sub(c.now())
		if ttl < time.Second {
			ttl = time.Second
		}
	}
	return c.redis.Set(ctx, symbolKey(key), data, ttl).Err()
}

func (c *SymbolCache) Delete(ctx context.Context, key string) error {
	ctx, span := c.tracer.Start(ctx, "symbol-cache.delete")
	defer span.End()

	return c.redis.Del(ctx, symbolKey(key)).Err()
}
