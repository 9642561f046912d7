package cache

import "sync/atomic"

type counters struct {
	sets             atomic.Int64
	hits             atomic.Int64
	misses           atomic.Int64
	rejectedOversize atomic.Int64
	rejectedPressure atomic.Int64
	evictedItems     atomic.Int64
	evictedBytes     atomic.Int64
	disposedDeletes  atomic.Int64
	disposedClears   atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() (sets, hits, misses, rejectedOversize, rejectedPressure, evictedItems, evictedBytes, disposedDeletes, disposedClears int64) {
	return c.sets.Load(), c.hits.Load(), c.misses.Load(), c.rejectedOversize.Load(), c.rejectedPressure.Load(),
		c.evictedItems.Load(), c.evictedBytes.Load(), c.disposedDeletes.Load(), c.disposedClears.Load()
}
