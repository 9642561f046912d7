package telemetry

import (
	"github.com/Borislavv/go-asset-guard/internal/cache"
	"github.com/Borislavv/go-asset-guard/internal/guard"
)

type sampler struct {
	cache cache.Cacher
	guard guard.Guarder
}

func newSampler(c cache.Cacher, g guard.Guarder) sampler {
	return sampler{cache: c, guard: g}
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	sets             uint64
	hits             uint64
	misses           uint64
	rejectedOversize uint64
	rejectedPressure uint64
	evictedItems     uint64
	evictedBytes     uint64
	disposedDeletes  uint64
	disposedClears   uint64

	guardTicks     uint64
	pressureSets   uint64
	pressureClears uint64
	cacheFlushes   uint64
	fullFlushes    uint64
}

func (s sampler) snapshot() snapshot {
	sets, hits, misses, rejOversize, rejPressure, evItems, evBytes, dDeletes, dClears := s.cache.CacheCounters()
	ticks, pSets, pClears, cFlushes, fFlushes := s.guard.GuardCounters()

	return snapshot{
		sets:             uint64(max(sets, 0)),
		hits:             uint64(max(hits, 0)),
		misses:           uint64(max(misses, 0)),
		rejectedOversize: uint64(max(rejOversize, 0)),
		rejectedPressure: uint64(max(rejPressure, 0)),
		evictedItems:     uint64(max(evItems, 0)),
		evictedBytes:     uint64(max(evBytes, 0)),
		disposedDeletes:  uint64(max(dDeletes, 0)),
		disposedClears:   uint64(max(dClears, 0)),

		guardTicks:     uint64(max(ticks, 0)),
		pressureSets:   uint64(max(pSets, 0)),
		pressureClears: uint64(max(pClears, 0)),
		cacheFlushes:   uint64(max(cFlushes, 0)),
		fullFlushes:    uint64(max(fFlushes, 0)),
	}
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		sets:             delta(prev.sets, cur.sets),
		hits:             delta(prev.hits, cur.hits),
		misses:           delta(prev.misses, cur.misses),
		rejectedOversize: delta(prev.rejectedOversize, cur.rejectedOversize),
		rejectedPressure: delta(prev.rejectedPressure, cur.rejectedPressure),
		evictedItems:     delta(prev.evictedItems, cur.evictedItems),
		evictedBytes:     delta(prev.evictedBytes, cur.evictedBytes),
		disposedDeletes:  delta(prev.disposedDeletes, cur.disposedDeletes),
		disposedClears:   delta(prev.disposedClears, cur.disposedClears),

		guardTicks:     delta(prev.guardTicks, cur.guardTicks),
		pressureSets:   delta(prev.pressureSets, cur.pressureSets),
		pressureClears: delta(prev.pressureClears, cur.pressureClears),
		cacheFlushes:   delta(prev.cacheFlushes, cur.cacheFlushes),
		fullFlushes:    delta(prev.fullFlushes, cur.fullFlushes),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
