// Package cache implements the two-tier (memory + disk) cache for encoded
// thumbnails and resized images.
//
// Keys combine the source path and the requested output size. The memory tier
// expires entries by age and is capped; the disk tier never expires and is
// unbounded. Content changes at a cached path within the expiry window are not
// reflected - candidate images are treated as immutable for the duration of a
// session.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-finder/internal/constants"
)

type entry struct {
	data       []byte
	insertedAt time.Time
}

// Cache is a two-tier image byte cache. The zero value is not usable; create
// one with New.
type Cache struct {
	dir        string
	ttl        time.Duration
	maxEntries int
	evictBatch int

	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time // overridable for tests
}

// New creates a cache backed by the given disk directory. The directory is
// created if missing; a failure to create it disables the disk tier only.
func New(dir string) *Cache {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			dir = ""
		}
	}
	return &Cache{
		dir:        dir,
		ttl:        constants.CacheTTLSeconds * time.Second,
		maxEntries: constants.CacheMaxEntries,
		evictBatch: constants.CacheEvictBatch,
		entries:    make(map[string]entry),
		now:        time.Now,
	}
}

// key returns the content-stable hash for a (path, size) pair.
func key(path string, size int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d", path, size))
	return hex.EncodeToString(sum[:])
}

// diskPath returns the on-disk file for a cache key, or "" when the disk tier
// is disabled.
func (c *Cache) diskPath(k string) string {
	if c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, k+".jpg")
}

// Get returns the cached bytes for (path, size), or nil on a full miss.
// The memory tier is consulted first; an entry older than the TTL is evicted
// and the lookup falls through to disk. Disk entries carry no age limit.
func (c *Cache) Get(path string, size int) []byte {
	k := key(path, size)

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		if c.now().Sub(e.insertedAt) < c.ttl {
			c.mu.Unlock()
			return e.data
		}
		delete(c.entries, k)
	}
	c.mu.Unlock()

	dp := c.diskPath(k)
	if dp == "" {
		return nil
	}
	data, err := os.ReadFile(dp) //nolint:gosec // path derived from hex hash inside cache dir
	if err != nil {
		return nil
	}
	c.insert(k, data)
	return data
}

// Put stores bytes for (path, size) in both tiers. The disk write is
// best-effort; a failure there is swallowed because the memory tier still
// serves the entry.
func (c *Cache) Put(path string, size int, data []byte) {
	k := key(path, size)
	if dp := c.diskPath(k); dp != "" {
		_ = os.WriteFile(dp, data, 0o600)
	}
	c.insert(k, data)
}

// insert adds an entry to the memory tier, evicting the oldest batch when the
// cap is exceeded. Eviction is by insertion time, not access time.
func (c *Cache) insert(k string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[k] = entry{data: data, insertedAt: c.now()}
	if len(c.entries) <= c.maxEntries {
		return
	}

	type aged struct {
		key        string
		insertedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for ek, e := range c.entries {
		all = append(all, aged{key: ek, insertedAt: e.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].insertedAt.Before(all[j].insertedAt) })

	n := c.evictBatch
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
}

// Len returns the number of memory-tier entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
