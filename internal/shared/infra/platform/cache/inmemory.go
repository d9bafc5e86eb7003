package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type cacheItem struct {
	value     []byte // bytes, igual que en Redis
	expiresAt time.Time
}

// InMemoryCache implementa Cache sobre un mapa. Se usa cuando no hay Redis configurado.
type InMemoryCache struct {
	store      map[string]cacheItem
	mu         sync.RWMutex
	defaultTTL time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
}

var _ Cache = (*InMemoryCache)(nil)

// NewInMemoryCache arranca además una goroutine que purga claves expiradas cada cleanupInterval.
func NewInMemoryCache(defaultTTL, cleanupInterval time.Duration) *InMemoryCache {
	c := &InMemoryCache{
		store:      make(map[string]cacheItem),
		defaultTTL: defaultTTL,
		stopChan:   make(chan struct{}),
	}
	go c.cleanupLoop(cleanupInterval)
	return c
}

func (c *InMemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	item, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(item.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(item.value, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = cacheItem{value: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// Stop detiene la limpieza en segundo plano. Llamar al apagar la aplicación.
func (c *InMemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, item := range c.store {
				if now.After(item.expiresAt) {
					delete(c.store, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopChan:
			return
		}
	}
}
