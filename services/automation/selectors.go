package automation

import (
	"sync"
	"time"

	"github.com/emailmax/warmup/internal/enum"
	"github.com/emailmax/warmup/internal/utils"
)

const DefaultSelectorTTL = 24 * time.Hour

// SelectorCache remembers selectors that heuristic detection accepted, keyed
// by (provider, element type). Entries go stale after a TTL so layout changes
// eventually force re-detection.
type SelectorCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*selectorEntry
}

type selectorEntry struct {
	Selector   string
	Confidence float64
	LearnedAt  time.Time
	Hits       int
}

func NewSelectorCache(ttl time.Duration) *SelectorCache {
	if ttl <= 0 {
		ttl = DefaultSelectorTTL
	}
	return &SelectorCache{
		ttl:     ttl,
		entries: make(map[string]*selectorEntry),
	}
}

func cacheKey(provider enum.EmailProvider, elementType string) string {
	return provider.String() + "/" + elementType
}

// Get returns a cached selector unless it is absent or stale. Takes the
// write lock because a hit mutates the entry's hit counter.
func (c *SelectorCache) Get(provider enum.EmailProvider, elementType string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey(provider, elementType)]
	if !ok {
		return "", false
	}
	if utils.Now().Sub(entry.LearnedAt) > c.ttl {
		return "", false
	}
	entry.Hits++
	return entry.Selector, true
}

// Learn stores an accepted selector for future reuse.
func (c *SelectorCache) Learn(provider enum.EmailProvider, elementType, selector string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(provider, elementType)] = &selectorEntry{
		Selector:   selector,
		Confidence: confidence,
		LearnedAt:  utils.Now(),
	}
}

// Invalidate drops a learned selector, forcing re-detection next time.
func (c *SelectorCache) Invalidate(provider enum.EmailProvider, elementType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(provider, elementType))
}

func (c *SelectorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
