// Package cache is the content-addressed on-disk store for synthesized
// speech. Entries are standard WAV files keyed by a digest of the request
// parameters that produced them.
package cache

import (
	"crypto/md5"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache indexes WAV files written under dir. maxBytes caps total on-disk
// size; zero means unbounded, matching spec.md §4.1 ("the cache is
// unbounded by policy"). When maxBytes is positive, least-recently-read
// entries are evicted to make room, the teacher's LRU policy generalized
// to an opt-in ceiling rather than a mandatory one.
type Cache struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	log      *slog.Logger
	entries  map[string]*entry
}

type entry struct {
	size       int64
	accessedAt time.Time
	path       string
}

// New creates (if necessary) dir and indexes any *.wav files already there.
func New(dir string, maxBytes int64, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	c := &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		log:      logger.With("component", "cache"),
		entries:  make(map[string]*entry),
	}
	c.loadExisting()
	return c, nil
}

// Key produces the hex digest of "text:voice:style:mode:language" with
// crypto/md5 — a 128-bit, non-cryptographic-purpose hash, the same choice
// original_source/tts_daemon.py makes with hashlib.md5, per spec.md §3's
// "128-bit cryptographically-uninteresting but well-distributed hash".
func Key(text, voice, style, mode, language string) string {
	composed := text + ":" + voice + ":" + style + ":" + mode + ":" + language
	sum := md5.Sum([]byte(composed))
	return fmt.Sprintf("%x", sum)
}

// PathFor returns the path an entry for key would live at, whether or not
// it exists.
func (c *Cache) PathFor(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

// Exists reports whether an entry for key is indexed. It consults only the
// in-memory index; whether the file is still readable is checked by Read.
func (c *Cache) Exists(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Read returns the WAV bytes for key and true on hit, or nil and false on
// miss. A hit refreshes the entry's recency for LRU purposes.
func (c *Cache) Read(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		c.log.Warn("cache file unreadable, removing entry", "key", key, "error", err)
		delete(c.entries, key)
		return nil, false
	}

	e.accessedAt = time.Now()
	return data, true
}

// Write stores data (a complete WAV file) under key. Writes go through a
// temporary file that is renamed into place, so a reader never observes a
// partially written entry (spec.md §4.1). When maxBytes is positive and
// data alone exceeds it, the write is skipped.
func (c *Cache) Write(key string, data []byte) error {
	newSize := int64(len(data))
	if c.maxBytes > 0 && newSize > c.maxBytes {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		os.Remove(old.path)
		delete(c.entries, key)
	}

	if c.maxBytes > 0 {
		c.evict(newSize)
	}

	dest := c.PathFor(key)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: rename into place: %w", err)
	}

	c.entries[key] = &entry{
		size:       newSize,
		accessedAt: time.Now(),
		path:       dest,
	}
	return nil
}

// totalSize returns the sum of all entry sizes. Must be called with mu held.
func (c *Cache) totalSize() int64 {
	var total int64
	for _, e := range c.entries {
		total += e.size
	}
	return total
}

// evict removes least-recently-read entries until totalSize + needed <=
// maxBytes. Must be called with mu held and maxBytes > 0.
func (c *Cache) evict(needed int64) {
	total := c.totalSize()
	for total+needed > c.maxBytes {
		oldest := c.oldestKey()
		if oldest == "" {
			break
		}
		e := c.entries[oldest]
		os.Remove(e.path)
		delete(c.entries, oldest)
		total -= e.size
		c.log.Debug("evicted cache entry", "key", oldest, "size", e.size)
	}
}

// oldestKey returns the key with the earliest accessedAt. Must be called with mu held.
func (c *Cache) oldestKey() string {
	var oldest string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.accessedAt.Before(oldestTime) {
			oldest = k
			oldestTime = e.accessedAt
			first = false
		}
	}
	return oldest
}

// loadExisting scans dir for *.wav files and rebuilds the index from mod
// times, dropping any stray *.tmp file left behind by a crash mid-write.
func (c *Cache) loadExisting() {
	stale, err := filepath.Glob(filepath.Join(c.dir, "*.tmp"))
	if err == nil {
		for _, p := range stale {
			os.Remove(p)
		}
	}

	matches, err := filepath.Glob(filepath.Join(c.dir, "*.wav"))
	if err != nil {
		c.log.Warn("cache: glob existing files", "error", err)
		return
	}
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		base := filepath.Base(p)
		key := base[:len(base)-len(".wav")]
		c.entries[key] = &entry{
			size:       info.Size(),
			accessedAt: info.ModTime(),
			path:       p,
		}
	}
	if len(c.entries) > 0 {
		c.log.Info("loaded existing cache entries", "count", len(c.entries), "total_bytes", c.totalSize())
		if c.maxBytes > 0 {
			c.evict(0)
		}
	}
}
