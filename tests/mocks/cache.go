package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	sharedCache "github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
)

// DummyCache es una caché en memoria sin expiración, segura para concurrencia.
type DummyCache struct {
	store map[string][]byte
	mu    sync.RWMutex

	// SetErr hace fallar Set (caché caída).
	SetErr error
}

var _ sharedCache.Cache = (*DummyCache)(nil)

func NewDummyCache() *DummyCache {
	return &DummyCache{
		store: make(map[string][]byte),
	}
}

func (c *DummyCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *DummyCache) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}

	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.store[key] = data
	return nil
}

func (c *DummyCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// Raw devuelve el JSON almacenado bajo key.
func (c *DummyCache) Raw(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.store[key]
	return data, ok
}

func (c *DummyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
