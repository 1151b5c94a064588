// Package cache provides a thread-safe cache of values derived from files.
//
// Entries are keyed by path and stamped with the file's size and
// modification time when they are stored. A lookup whose current stamp
// differs is a miss, so a changed file is always re-read.
package cache

import (
	"os"
	"sync"
	"time"
)

// Stamp identifies one version of a file.
type Stamp struct {
	Size    int64
	ModTime time.Time
}

// StatStamp returns the current stamp of path.
func StatStamp(path string) (Stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stamp{}, err
	}
	return Stamp{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Stats contains cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Stale  int64
	Size   int
}

type entry[V any] struct {
	stamp Stamp
	value V
}

// FileCache caches one value per file path.
type FileCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	stats   Stats
}

// New creates an empty FileCache.
func New[V any]() *FileCache[V] {
	return &FileCache[V]{entries: make(map[string]entry[V])}
}

// Get returns the value stored for path if it was stored under stamp.
func (c *FileCache[V]) Get(path string, stamp Stamp) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	switch {
	case !ok:
		c.stats.Misses++
	case e.stamp.Size != stamp.Size || !e.stamp.ModTime.Equal(stamp.ModTime):
		c.stats.Stale++
		delete(c.entries, path)
	default:
		c.stats.Hits++
		return e.value, true
	}
	var zero V
	return zero, false
}

// Put stores value for path under stamp.
func (c *FileCache[V]) Put(path string, stamp Stamp, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entry[V]{stamp: stamp, value: value}
}

// Remove drops the entry for path.
func (c *FileCache[V]) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Clear removes all entries. Statistics are kept.
func (c *FileCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of entries.
func (c *FileCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the statistics.
func (c *FileCache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}
