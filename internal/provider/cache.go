package provider

import (
	"context"
	"sync"
	"time"
)

// ProfileCache stores company profiles between scans. Profiles change
// slowly, so they are cached far longer than quotes (which are never
// cached: every gate evaluation re-fetches).
type ProfileCache interface {
	Get(ctx context.Context, symbol string) (Profile, bool)
	Set(ctx context.Context, symbol string, profile Profile)
}

// MemoryProfileCache is an in-process TTL cache with a background janitor.
type MemoryProfileCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	stopCh  chan struct{}
}

type memEntry struct {
	profile Profile
	expires time.Time
}

// NewMemoryProfileCache creates a profile cache expiring entries after ttl.
func NewMemoryProfileCache(ttl time.Duration) *MemoryProfileCache {
	c := &MemoryProfileCache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the cached profile for symbol if present and unexpired.
func (c *MemoryProfileCache) Get(_ context.Context, symbol string) (Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[symbol]
	if !ok || time.Now().After(entry.expires) {
		return Profile{}, false
	}
	return entry.profile, true
}

// Set stores a profile for symbol.
func (c *MemoryProfileCache) Set(_ context.Context, symbol string, profile Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = memEntry{profile: profile, expires: time.Now().Add(c.ttl)}
}

// Close stops the janitor goroutine.
func (c *MemoryProfileCache) Close() {
	close(c.stopCh)
}

func (c *MemoryProfileCache) janitor() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for symbol, entry := range c.entries {
				if now.After(entry.expires) {
					delete(c.entries, symbol)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// Cached wraps a MarketData provider with a profile cache. Only profiles
// are cached; quote, volume, headline, and directory calls pass through.
type Cached struct {
	MarketData
	profiles ProfileCache
}

// WithProfileCache wraps inner so profile lookups hit cache first.
func WithProfileCache(inner MarketData, cache ProfileCache) *Cached {
	return &Cached{MarketData: inner, profiles: cache}
}

// GetProfile returns the cached profile when available, fetching and
// populating the cache otherwise.
func (c *Cached) GetProfile(ctx context.Context, symbol string) (Profile, error) {
	if profile, ok := c.profiles.Get(ctx, symbol); ok {
		return profile, nil
	}
	profile, err := c.MarketData.GetProfile(ctx, symbol)
	if err != nil {
		return Profile{}, err
	}
	c.profiles.Set(ctx, symbol, profile)
	return profile, nil
}
