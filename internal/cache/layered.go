package cache

import (
	"errors"
	"sync/atomic"
	"time"
)

// LayeredCache checks memory first and falls back to disk, promoting disk
// hits into memory
type LayeredCache struct {
	memory Cache
	disk   Cache

	memoryHits atomic.Int64
	diskHits   atomic.Int64
	misses     atomic.Int64
}

// Stats counts lookups by outcome
type Stats struct {
	MemoryHits int64
	DiskHits   int64
	Misses     int64
}

// NewLayeredCache creates a new layered cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return newLayered(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(diskDir, diskTTL))
}

func newLayered(memory, disk Cache) *LayeredCache {
	return &LayeredCache{memory: memory, disk: disk}
}

// Get retrieves a value from the cache (checks memory first, then disk)
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		c.memoryHits.Add(1)
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		c.diskHits.Add(1)
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores a value in both caches
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from both caches
func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

// Clear removes all values from both caches
func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}

// Stats returns lookup counters since creation
func (c *LayeredCache) Stats() Stats {
	return Stats{
		MemoryHits: c.memoryHits.Load(),
		DiskHits:   c.diskHits.Load(),
		Misses:     c.misses.Load(),
	}
}
