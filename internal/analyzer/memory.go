package analyzer

import (
	"context"
	"sync"
	"time"

	"newsimpact/internal/domain"
)

// MemorySnapshotCache is an in-process SnapshotCache used when redis is not
// configured.
type MemorySnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]memorySnapshot
	now     func() time.Time
}

type memorySnapshot struct {
	snap      domain.PriceSnapshot
	expiresAt time.Time
}

func NewMemorySnapshotCache() *MemorySnapshotCache {
	return &MemorySnapshotCache{entries: make(map[string]memorySnapshot), now: time.Now}
}

func (c *MemorySnapshotCache) Get(ctx context.Context, key string) (*domain.PriceSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, nil
	}
	snap := e.snap
	snap.Closes = append([]domain.ClosePoint(nil), e.snap.Closes...)
	return &snap, nil
}

func (c *MemorySnapshotCache) Put(ctx context.Context, key string, snap *domain.PriceSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *snap
	stored.Closes = append([]domain.ClosePoint(nil), snap.Closes...)
	c.entries[key] = memorySnapshot{snap: stored, expiresAt: c.now().Add(ttl)}
	return nil
}
