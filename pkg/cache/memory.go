package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"telecare-backend/pkg/logger"
)

// MemoryCache implements an in-memory key/value store with TTL support.
// It backs the ephemeral rendezvous state (signal mailboxes, pending
// consultations) that must not outlive its usefulness.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
}

// cacheEntry represents a single cache entry
type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
	createdAt time.Time
}

// NewMemoryCache creates a new in-memory cache with a default TTL and an
// optional max size (0 = unbounded)
func NewMemoryCache(defaultTTL time.Duration, maxSize int) *MemoryCache {
	return &MemoryCache{
		data:    make(map[string]*cacheEntry),
		ttl:     defaultTTL,
		maxSize: maxSize,
	}
}

// Set stores a value, overwriting any prior entry for the key. A zero ttl
// means the cache default.
func (mc *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if ttl == 0 {
		ttl = mc.ttl
	}

	if mc.maxSize > 0 && len(mc.data) >= mc.maxSize {
		if _, exists := mc.data[key]; !exists {
			mc.evictOldest()
		}
	}

	now := time.Now()
	mc.data[key] = &cacheEntry{
		value:     value,
		expiresAt: now.Add(ttl),
		createdAt: now,
	}
}

// Get retrieves a value without removing it
func (mc *MemoryCache) Get(key string) (interface{}, bool) {
	mc.mu.RLock()
	entry, exists := mc.data[key]
	mc.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		mc.Delete(key)
		return nil, false
	}
	return entry.value, true
}

// Take atomically retrieves and removes a value (consume-on-read)
func (mc *MemoryCache) Take(key string) (interface{}, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.data[key]
	if !exists {
		return nil, false
	}
	delete(mc.data, key)
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// TakePrefix atomically drains every live entry whose key starts with prefix,
// returned in ascending key order
func (mc *MemoryCache) TakePrefix(prefix string) []interface{} {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	drained := make(map[string]interface{})
	var keys []string
	for key, entry := range mc.data {
		if strings.HasPrefix(key, prefix) {
			delete(mc.data, key)
			if now.After(entry.expiresAt) {
				continue
			}
			drained[key] = entry.value
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	values := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		values = append(values, drained[key])
	}
	return values
}

// Delete removes a value from the cache
func (mc *MemoryCache) Delete(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.data, key)
}

// Clear removes all entries from the cache
func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.data = make(map[string]*cacheEntry)
}

// Size returns the current number of entries in the cache
func (mc *MemoryCache) Size() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.data)
}

// evictOldest removes the oldest entry; caller holds the lock
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range mc.data {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

// cleanupExpired removes expired entries from the cache
func (mc *MemoryCache) cleanupExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	expiredCount := 0
	for key, entry := range mc.data {
		if now.After(entry.expiresAt) {
			delete(mc.data, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		logger.Debug("Expired cache entries cleaned up",
			zap.Int("count", expiredCount),
			zap.Int("remaining", len(mc.data)),
		)
	}
}

// StartJanitor runs a periodic sweep of expired entries until ctx is done
func (mc *MemoryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.cleanupExpired()
			}
		}
	}()
}
