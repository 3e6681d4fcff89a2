package optimizer

import "sync"

// StatsCache memoizes per-table statistics (currently just total row
// count) across the groups executed in one optimizer run, so a later
// group against the same table can skip recomputing COUNT(*) when an
// earlier group already emitted it.
// Scoped to a single run: never persisted, never shared across separate
// Suite.Run calls.
type StatsCache struct {
	mu    sync.Mutex
	total map[string]int64
}

func NewStatsCache() *StatsCache {
	return &StatsCache{total: map[string]int64{}}
}

func (c *StatsCache) TotalCount(table string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.total[table]
	return n, ok
}

func (c *StatsCache) SetTotalCount(table string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total[table] = n
}
