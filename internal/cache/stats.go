package cache

import "sync"

// CacheStats is a point-in-time copy of cache counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Errors int64 `json:"errors"`
}

// HitRate is hits over lookups, in percent.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

type counters struct {
	mu    sync.RWMutex
	stats CacheStats
}

func (c *counters) hit() {
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
}

func (c *counters) miss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

func (c *counters) set() {
	c.mu.Lock()
	c.stats.Sets++
	c.mu.Unlock()
}

func (c *counters) failure() {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
}

func (c *counters) snapshot() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
