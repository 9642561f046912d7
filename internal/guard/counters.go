package guard

import "sync/atomic"

type guardCounters struct {
	ticks          atomic.Int64
	pressureSets   atomic.Int64
	pressureClears atomic.Int64
	cacheFlushes   atomic.Int64
	fullFlushes    atomic.Int64
}

func newGuardCounters() *guardCounters {
	return &guardCounters{}
}

func (c *guardCounters) snapshot() (ticks, pressureSets, pressureClears, cacheFlushes, fullFlushes int64) {
	return c.ticks.Load(), c.pressureSets.Load(), c.pressureClears.Load(), c.cacheFlushes.Load(), c.fullFlushes.Load()
}
