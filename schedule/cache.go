package schedule

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"slices"
	"sync"
	"time"
)

type cacheEntry struct {
	events     []Event
	expiresAt  time.Time
	accessedAt time.Time
}

// GenerationCache memoizes generated schedules. Generation is deterministic, so
// a hit is always equal to what a fresh run would return.
type GenerationCache struct {
	entries         map[string]*cacheEntry
	mutex           sync.Mutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
}

// CacheConfig holds configuration for the generation cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before eviction
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for generation caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewGenerationCache creates a cache and starts its cleanup goroutine. Zero fields
// in config take their DefaultCacheConfig values.
func NewGenerationCache(config CacheConfig) *GenerationCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &GenerationCache{
		entries:         make(map[string]*cacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	go cache.cleanupLoop()

	return cache
}

// Get returns a copy of the cached events for key.
func (c *GenerationCache) Get(key string) ([]Event, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	now := c.now()
	if now.After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	entry.accessedAt = now

	return slices.Clone(entry.events), true
}

// Set stores a copy of events under key.
func (c *GenerationCache) Set(key string, events []Event) {
	now := c.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &cacheEntry{
		events:     slices.Clone(events),
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries, then the least recently accessed ones while the
// cache is over its limit. Callers hold the mutex.
func (c *GenerationCache) cleanup() {
	now := c.now()

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	excess := len(c.entries) - c.maxEntries
	if excess <= 0 {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return c.entries[a].accessedAt.Compare(c.entries[b].accessedAt)
	})
	for _, key := range keys[:excess] {
		delete(c.entries, key)
	}
}

func (c *GenerationCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call more than once.
func (c *GenerationCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
	c.mutex.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics
func (c *GenerationCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := CacheStats{TotalEntries: len(c.entries)}
	now := c.now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			stats.ExpiredEntries++
		}
	}
	stats.ActiveEntries = stats.TotalEntries - stats.ExpiredEntries

	return stats
}

// CacheStats provides information about cache occupancy
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}

// cacheKey fingerprints everything that influences a generation run.
func cacheKey(rule RecurrenceRule, start, end Date, req Request) string {
	h := sha256.New()

	fmt.Fprintf(h, "range=%s..%s;", start, end)
	fmt.Fprintf(h, "regularly=%t;cycle=%s;", rule.Regularly, rule.CycleStart)
	fmt.Fprintf(h, "freq=%d/%s;", rule.Frequency.N, rule.Frequency.Unit)
	if ex := rule.Frequency.Exclude; ex != nil {
		fmt.Fprintf(h, "exclude=%d:%v;", ex.Repeat, ex.Exclude)
	}
	for i, spec := range rule.Times {
		spec = specValue(spec)
		fmt.Fprintf(h, "time[%d]=%T%+v;", i, spec, spec)
	}
	until := untilValue(rule.Until)
	fmt.Fprintf(h, "until=%T%+v;", until, until)

	writeHabits(h, req.Habits)
	if n, ok := req.NumberTaken.Get(); ok {
		fmt.Fprintf(h, "taken=%d;", n)
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

func writeHabits(h hash.Hash, habits *Habits) {
	if habits == nil {
		fmt.Fprint(h, "habits=nil;")
		return
	}
	if tz, ok := habits.TZ.Get(); ok {
		fmt.Fprintf(h, "tz=%s;", tz)
	}
	for _, habit := range []Habit{Wake, Breakfast, Lunch, Dinner, Sleep} {
		if c, ok := habits.Get(habit).Get(); ok {
			fmt.Fprintf(h, "%s=%s;", habit, c)
		}
	}
}
