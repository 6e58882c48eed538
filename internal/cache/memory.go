package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// memoryCache — in-memory реализация Cache для локальной разработки и тестов.
type memoryCache struct {
	mu        sync.RWMutex
	namespace string
	items     map[string]memoryEntry
}

// NewMemoryCache создаёт кэш без внешних зависимостей.
func NewMemoryCache(namespace string) Cache {
	return &memoryCache{
		namespace: namespace,
		items:     make(map[string]memoryEntry),
	}
}

func (c *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.items[key] = entry
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return "", ErrMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return "", ErrMiss
	}
	return entry.value, nil
}

func (c *memoryCache) Key(parts ...string) string {
	key := c.namespace
	for _, part := range parts {
		key = fmt.Sprintf("%s:%s", key, part)
	}
	return key
}

var _ Cache = (*memoryCache)(nil)
