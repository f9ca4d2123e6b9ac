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

// SnapshotCache keeps one price snapshot per symbol per trading day.
type SnapshotCache struct {
	tracer trace.Tracer
	redis  RedisClient
}

func NewSnapshotCache(tracer trace.Tracer, client RedisClient) *SnapshotCache {
	return &SnapshotCache{tracer: tracer, redis: client}
}

func (c *SnapshotCache) Get(ctx context.Context, key string) (*domain.PriceSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "snapshot-cache.get")
	defer span.End()

	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.PriceSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *SnapshotCache) Put(ctx context.Context, key string, snap *domain.PriceSnapshot, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "snapshot-cache.put")
	defer span.End()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, ttl).Err()
}
