package resolver

import (
	"context"
	"sync"

	"newsimpact/internal/domain"
)

// MemoryCache is an in-process Cache used when redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]domain.SymbolMapping
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]domain.SymbolMapping)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.SymbolMapping, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		m.ExpiresAt = &t
	}
	return &m, nil
}

func (c *MemoryCache) Put(ctx context.Context, key string, m domain.SymbolMapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = m
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
