package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/automaton-io/automaton/logger"
	c "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// ResponseCache memoizes AI responses so that semantically identical
// requests within TTL bypass both the rate limiter and the AI call.
// Expired entries are dropped lazily on lookup and swept by the janitor;
// above maxEntries the least-recently-used entry is evicted.
type ResponseCache struct {
	ttl        time.Duration
	maxEntries int
	store      *c.Cache

	mu       sync.Mutex
	lastUsed map[string]time.Time
}

func NewResponseCache(ttl time.Duration, maxEntries int) *ResponseCache {
	rc := &ResponseCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		store:      c.New(ttl, time.Minute),
		lastUsed:   make(map[string]time.Time),
	}
	rc.store.OnEvicted(func(key string, _ any) {
		rc.mu.Lock()
		delete(rc.lastUsed, key)
		rc.mu.Unlock()
	})
	return rc
}

func (rc *ResponseCache) Get(key string) (any, bool) {
	value, found := rc.store.Get(key)
	if !found {
		return nil, false
	}
	rc.mu.Lock()
	rc.lastUsed[key] = time.Now()
	rc.mu.Unlock()
	return value, true
}

// Put stores value under key with the given ttl; zero ttl means the
// cache default. Exceeding capacity evicts the least-recently-used key.
func (rc *ResponseCache) Put(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = rc.ttl
	}
	rc.store.Set(key, value, ttl)
	rc.mu.Lock()
	rc.lastUsed[key] = time.Now()
	rc.mu.Unlock()
	if rc.maxEntries <= 0 || rc.store.ItemCount() <= rc.maxEntries {
		return
	}
	// expired entries still hold slots until the janitor sweeps; reclaim
	// those before sacrificing a live one
	rc.store.DeleteExpired()
	for rc.store.ItemCount() > rc.maxEntries {
		rc.evictOldest(key)
	}
}

func (rc *ResponseCache) evictOldest(justAdded string) {
	rc.mu.Lock()
	var oldestKey string
	var oldest time.Time
	for k, t := range rc.lastUsed {
		if k == justAdded {
			continue
		}
		if oldestKey == "" || t.Before(oldest) {
			oldestKey = k
			oldest = t
		}
	}
	rc.mu.Unlock()
	if oldestKey == "" {
		return
	}
	logger.Debug("evicting cache entry", zap.String("key", oldestKey))
	rc.store.Delete(oldestKey)
}

func (rc *ResponseCache) Size() int {
	return rc.store.ItemCount()
}

// Key derives a cache key from a normalized form of the request content.
// Strings are whitespace-collapsed before hashing so that formatting
// differences do not defeat memoization.
func Key(parts ...any) string {
	normalized := make([]any, len(parts))
	for i, p := range parts {
		if s, ok := p.(string); ok {
			normalized[i] = strings.Join(strings.Fields(s), " ")
		} else {
			normalized[i] = p
		}
	}
	data, _ := json.Marshal(normalized)
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
