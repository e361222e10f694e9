package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultCacheMaxAge is how long a cached lookup is trusted.
const DefaultCacheMaxAge = 24 * time.Hour

// cachedRelease is one lookup result on disk.
type cachedRelease struct {
	Release   Release   `json:"release"`
	CheckedAt time.Time `json:"checked_at"`
}

// lookupCache keeps lookup results as one JSON file per package.
type lookupCache struct {
	dir    string
	maxAge time.Duration
}

// WithCache stores lookup results under dir and reuses them for maxAge.
func WithCache(dir string, maxAge time.Duration) Option {
	return func(cl *Client) {
		cl.cache = &lookupCache{dir: dir, maxAge: maxAge}
	}
}

func (c *lookupCache) path(name string) string {
	return filepath.Join(c.dir, normalizeName(name)+".json")
}

// load returns nil, nil when there is no entry.
func (c *lookupCache) load(name string) (*cachedRelease, error) {
	data, err := os.ReadFile(c.path(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lookup cache: %w", err)
	}

	var entry cachedRelease
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parsing lookup cache: %w", err)
	}
	return &entry, nil
}

func (c *lookupCache) save(rel *Release) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(cachedRelease{Release: *rel, CheckedAt: time.Now()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lookup cache: %w", err)
	}

	if err := os.WriteFile(c.path(rel.Name), data, 0644); err != nil {
		return fmt.Errorf("writing lookup cache: %w", err)
	}
	return nil
}

func (c *lookupCache) stale(entry *cachedRelease) bool {
	if entry == nil {
		return true
	}
	return time.Since(entry.CheckedAt) > c.maxAge
}

// fresh returns the cached release of name if it is recent enough.
func (c *lookupCache) fresh(name string) *Release {
	if c == nil {
		return nil
	}
	entry, err := c.load(name)
	if err != nil || c.stale(entry) {
		return nil
	}
	return &entry.Release
}
