// Package cache is an in-memory TTL cache for API query results.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const cleanupInterval = time.Minute

type entry struct {
	data      any
	expiresAt time.Time
}

// Cache is safe for concurrent use. Expired entries are dropped on read and
// swept by a background goroutine until Close is called.
type Cache struct {
	mu    sync.RWMutex
	store map[string]entry
	ttl   time.Duration

	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a cache whose Set uses ttl.
func New(ttl time.Duration) *Cache {
	c := &Cache{
		store: make(map[string]entry),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.startCleanup()
	return c
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		log.Debug().Str("key", key).Msg("cache miss")
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Only drop it if nobody replaced it meanwhile
		if cur, ok := c.store[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.store, key)
		}
		c.mu.Unlock()
		log.Debug().Str("key", key).Msg("cache expired")
		return nil, false
	}

	log.Debug().Str("key", key).Msg("cache hit")
	return e.data, true
}

func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.store[key] = entry{data: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("cache set")
}

func (c *Cache) Clear(key string) {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
}

// ClearPrefix drops every key starting with prefix and returns how many went.
func (c *Cache) ClearPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.store {
		if strings.HasPrefix(key, prefix) {
			delete(c.store, key)
			n++
		}
	}
	if n > 0 {
		log.Debug().Str("prefix", prefix).Int("count", n).Msg("cache invalidated")
	}
	return n
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.store = make(map[string]entry)
	c.mu.Unlock()
}

// Len counts entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine. The cache stays usable.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *Cache) startCleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

func (c *Cache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, key)
		}
	}
}
