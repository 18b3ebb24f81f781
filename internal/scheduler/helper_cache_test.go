package scheduler_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rohmanhakim/pyq-crawler/internal/cachestore"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
)

// memCache is an in-memory scheduler.CacheStore that counts persists.
type memCache struct {
	mu         sync.Mutex
	entries    map[string]json.RawMessage
	persists   int
	persistErr failure.ClassifiedError
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]json.RawMessage)}
}

func (c *memCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *memCache) Put(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *memCache) Persist(ctx context.Context) failure.ClassifiedError {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persists++
	return c.persistErr
}

func (c *memCache) persistCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persists
}

func lockTimeoutError() *cachestore.CacheError {
	return &cachestore.CacheError{
		Message:   "timed out",
		Retryable: true,
		Cause:     cachestore.ErrCauseLockTimeout,
	}
}
