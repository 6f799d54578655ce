package scanner

import (
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cacheEntry struct {
	size    int64
	modTime time.Time
	finding Finding
}

// CachedInspector remembers findings for unchanged files. An entry is reused
// only while the file's size and modification time match what was seen at
// inspection time.
type CachedInspector struct {
	next  FileInspector
	cache *expirable.LRU[string, cacheEntry]
}

// NewCachedInspector wraps next with an LRU of at most size entries, each
// kept for ttl.
func NewCachedInspector(next FileInspector, size int, ttl time.Duration) *CachedInspector {
	return &CachedInspector{
		next:  next,
		cache: expirable.NewLRU[string, cacheEntry](size, nil, ttl),
	}
}

func (c *CachedInspector) Inspect(path string) Finding {
	info, err := os.Stat(path)
	if err != nil {
		c.cache.Remove(path)
		return c.next.Inspect(path)
	}

	if e, ok := c.cache.Get(path); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.finding
	}

	f := c.next.Inspect(path)
	c.cache.Add(path, cacheEntry{size: info.Size(), modTime: info.ModTime(), finding: f})
	return f
}

// Forget drops any cached result for path.
func (c *CachedInspector) Forget(path string) {
	c.cache.Remove(path)
}

// Len returns the number of cached entries.
func (c *CachedInspector) Len() int {
	return c.cache.Len()
}
