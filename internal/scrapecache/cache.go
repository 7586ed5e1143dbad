// Package scrapecache is the on-disk TTL cache of raw scraped source
// documents. There is deliberately no in-memory layer: the filesystem is
// the cache, keyed by the slugified source URL.
package scrapecache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/acerestreamer/gateway/internal/streamid"
)

// Cache roots every entry under Dir as "<slug(url)>.txt".
type Cache struct {
	Dir string
}

func New(dir string) *Cache {
	return &Cache{Dir: dir}
}

func (c *Cache) pathFor(url string) string {
	return filepath.Join(c.Dir, streamid.Slugify(url)+".txt")
}

// IsFresh reports whether the cached file for url exists and was modified
// within ttl.
func (c *Cache) IsFresh(url string, ttl time.Duration) bool {
	fi, err := os.Stat(c.pathFor(url))
	if err != nil {
		return false
	}
	return time.Since(fi.ModTime()) <= ttl
}

// Load returns the cached bytes for url, or nil if absent.
func (c *Cache) Load(url string) []byte {
	b, err := os.ReadFile(c.pathFor(url))
	if err != nil {
		return nil
	}
	return b
}

// Save atomically writes body to the cache entry for url: write to a temp
// file in the same directory, then rename, so a concurrent reader never
// observes a partial write.
func (c *Cache) Save(url string, body []byte) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("scrapecache: mkdir: %w", err)
	}
	dst := c.pathFor(url)
	tmp, err := os.CreateTemp(c.Dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("scrapecache: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("scrapecache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("scrapecache: close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("scrapecache: chmod: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("scrapecache: rename: %w", err)
	}
	return nil
}
