package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openpreserve/flint/internal/contract"
)

// currentCacheVersion defines the version of the persisted policy map encoding.
const currentCacheVersion = 1

// cacheTTL bounds how long a persisted entry is trusted.
const cacheTTL = 7 * 24 * time.Hour

// Cache holds compiled policy maps keyed by schema content and pattern filter.
// It is safe for concurrent use and each key is compiled at most once.
// A nil *Cache compiles on every call.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	store   contract.CacheStore
	logger  *slog.Logger
}

type cacheEntry struct {
	once sync.Once
	pm   *PolicyMap
	err  error
}

// NewCache creates a cache. The store is an optional persistent tier.
func NewCache(store contract.CacheStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{entries: make(map[string]*cacheEntry), store: store, logger: logger}
}

// CacheKey identifies a compiled map by the schema bytes and the filter.
func CacheKey(schemaBytes []byte, filter PatternFilter) string {
	key := fmt.Sprintf("%x:%s", sha256.Sum256(schemaBytes), filter.Key())
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}

// PolicyMap returns the compiled map for the schema and filter.
func (c *Cache) PolicyMap(schemaBytes []byte, filter PatternFilter) (*PolicyMap, error) {
	if c == nil {
		return CompilePolicyMap(bytes.NewReader(schemaBytes), filter)
	}
	key := CacheKey(schemaBytes, filter)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		if pm := c.checkCacheHit(key); pm != nil {
			entry.pm = pm
			return
		}
		entry.pm, entry.err = CompilePolicyMap(bytes.NewReader(schemaBytes), filter)
		if entry.err == nil {
			c.persist(key, entry.pm)
		}
	})
	return entry.pm, entry.err
}

// Len returns the number of keys held in memory.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// checkCacheHit attempts to retrieve and validate a persisted map.
func (c *Cache) checkCacheHit(key string) *PolicyMap {
	if c.store == nil {
		return nil
	}
	data, version, ts, err := c.store.Get(key)
	if err != nil {
		return nil // Cache miss
	}
	if version != currentCacheVersion || time.Since(time.Unix(ts, 0)) > cacheTTL {
		return nil // Stale or version mismatch
	}
	var pm PolicyMap
	if err := json.Unmarshal(data, &pm); err != nil {
		c.logger.Debug("policy.Cache", "stage", "decode", "error", err)
		return nil
	}
	return &pm
}

// persist writes a compiled map to the persistent tier, ignoring failures.
func (c *Cache) persist(key string, pm *PolicyMap) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(pm)
	if err != nil {
		return
	}
	if err := c.store.Set(key, data, currentCacheVersion, time.Now().Unix()); err != nil {
		c.logger.Debug("policy.Cache", "stage", "persist", "error", err)
	}
}
