// Package cache implements the budgeted asset cache: a keyed store of
// binary payloads bounded by total bytes and per-entry size, with strict
// least-recently-used eviction, defensive copying and a pressure gate.
//
// The evict-then-insert sequence is a read-modify-write that must not
// interleave, so every mutation goes through one mutex. Disposal events
// are dispatched after the lock is released, in removal order.
package cache

import (
	"container/list"
	"context"
	"log/slog"
	"sync"

	"github.com/Borislavv/go-asset-guard/config"
	"github.com/Borislavv/go-asset-guard/internal/events"
	"github.com/Borislavv/go-asset-guard/model"
)

type Cacher interface {
	Set(key string, payload []byte, meta model.AssetMeta) bool
	Get(ctx context.Context, key string) (*model.Asset, bool)
	Del(key string) bool
	Clear()
	Destroy()
	Metrics() model.CacheMetrics
	SetMemoryPressure(on bool, source string)
	UnderPressure() bool
	Len() int64
	Mem() int64
	CacheCounters() (sets, hits, misses, rejectedOversize, rejectedPressure, evictedItems, evictedBytes, disposedDeletes, disposedClears int64)
}

type Cache struct {
	cfg      *config.CacheCfg
	logger   *slog.Logger
	bus      *events.Bus
	counters *counters

	mu        sync.Mutex
	items     map[uint64]*entry
	lru       *list.List // front = most recent, values are *entry
	mem       int64
	recency   uint64 // monotonically increasing recency token source
	pressure  bool
	destroyed bool
}

func New(cfg *config.CacheCfg, logger *slog.Logger, bus *events.Bus) *Cache {
	return &Cache{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		counters: newCounters(),
		items:    make(map[uint64]*entry),
		lru:      list.New(),
	}
}

// Set stores an owned copy of payload under key. It rejects oversized
// payloads and all writes while pressure is active, returning false with
// no state change. Re-inserting an existing key replaces the entry and
// emits one disposal event with reason "replace" for the old payload.
// When the budget would be exceeded, entries are evicted in strict LRU
// order, one disposal event per victim, until the new entry fits.
func (c *Cache) Set(name string, payload []byte, meta model.AssetMeta) bool {
	size := int64(len(payload))
	if size > c.cfg.MaxEntryBytes {
		c.counters.rejectedOversize.Add(1)
		return false
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return false
	}
	if c.pressure {
		c.counters.rejectedPressure.Add(1)
		c.mu.Unlock()
		return false
	}

	if size > c.cfg.BudgetBytes {
		// cannot fit even in an empty cache, reject without mutation
		c.mu.Unlock()
		return false
	}

	k := newKey(name)

	var disposed []model.Event

	// Replaced wholesale, never patched: the old version leaves the
	// accounting before the eviction loop runs, with its own disposal.
	if old, found := c.items[k.v]; found {
		c.removeLocked(old)
		disposed = append(disposed, model.Event{
			Type:   model.EventDisposed,
			Key:    old.name,
			Size:   old.size,
			Reason: model.ReasonReplace,
		})
	}
	for c.mem+size > c.cfg.BudgetBytes && c.lru.Len() > 0 {
		victim := c.lru.Back().Value.(*entry)
		c.removeLocked(victim)
		c.counters.evictedItems.Add(1)
		c.counters.evictedBytes.Add(victim.size)
		disposed = append(disposed, model.Event{
			Type:   model.EventDisposed,
			Key:    victim.name,
			Size:   victim.size,
			Reason: model.ReasonEvict,
		})
	}

	c.recency++
	e := newEntry(k, name, payload, meta, c.recency)
	e.el = c.lru.PushFront(e)
	c.items[k.v] = e
	c.mem += size
	c.counters.sets.Add(1)
	c.mu.Unlock()

	for _, ev := range disposed {
		c.bus.Publish(ev)
	}
	return true
}

// Get returns a copy-safe view and bumps the entry's recency token.
// While pressure is active every read reports a miss, existing entries
// are preserved, not purged. The context parameter is a forward
// compatibility placeholder: no I/O occurs today.
func (c *Cache) Get(_ context.Context, name string) (*model.Asset, bool) {
	c.mu.Lock()
	if c.pressure {
		c.counters.misses.Add(1)
		c.mu.Unlock()
		return nil, false
	}

	k := newKey(name)
	e, found := c.items[k.v]
	if !found || !e.key.isTheSame(k) {
		// absent, or a 64-bit slot collision with another key
		c.counters.misses.Add(1)
		c.mu.Unlock()
		return nil, false
	}

	c.recency++
	e.recency = c.recency
	c.lru.MoveToFront(e.el)
	view := e.view()
	c.counters.hits.Add(1)
	c.mu.Unlock()

	return view, true
}

// Del removes the entry if present and emits one disposal event with
// reason "delete". Absent keys are a no-op with no event.
func (c *Cache) Del(name string) bool {
	c.mu.Lock()
	k := newKey(name)
	e, found := c.items[k.v]
	if !found || !e.key.isTheSame(k) {
		c.mu.Unlock()
		return false
	}
	c.removeLocked(e)
	c.counters.disposedDeletes.Add(1)
	c.mu.Unlock()

	c.bus.Publish(model.Event{
		Type:   model.EventDisposed,
		Key:    e.name,
		Size:   e.size,
		Reason: model.ReasonDelete,
	})
	return true
}

// Clear removes all entries synchronously, emitting one disposal event
// per entry in removal order (oldest first).
func (c *Cache) Clear() {
	c.mu.Lock()
	removed := make([]*entry, 0, c.lru.Len())
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		removed = append(removed, el.Value.(*entry))
	}
	c.items = make(map[uint64]*entry)
	c.lru.Init()
	c.mem = 0
	c.counters.disposedClears.Add(int64(len(removed)))
	c.mu.Unlock()

	for _, e := range removed {
		c.bus.Publish(model.Event{
			Type:   model.EventDisposed,
			Key:    e.name,
			Size:   e.size,
			Reason: model.ReasonClear,
		})
	}
}

// Destroy releases all entries and refuses further writes. Teardown
// emits the same per-entry disposal events as Clear.
func (c *Cache) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
	c.Clear()
}

// SetMemoryPressure toggles the admission gate. Idempotent: repeating
// the current value emits nothing.
func (c *Cache) SetMemoryPressure(on bool, source string) {
	c.mu.Lock()
	if c.pressure == on {
		c.mu.Unlock()
		return
	}
	c.pressure = on
	c.mu.Unlock()

	typ := model.EventPressureEnd
	if on {
		typ = model.EventPressureStart
	}
	c.logger.Info("cache pressure toggled", "on", on, "source", source)
	c.bus.Publish(model.Event{Type: typ, Source: source})
}

func (c *Cache) UnderPressure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pressure
}

// Metrics is a pure read-only snapshot with no side effects.
// Process memory figures are filled by the composition layer.
func (c *Cache) Metrics() model.CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CacheMetrics{
		Entries:  int64(len(c.items)),
		Bytes:    c.mem,
		Pressure: c.pressure,
	}
}

func (c *Cache) Len() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.items))
}

func (c *Cache) Mem() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem
}

func (c *Cache) CacheCounters() (sets, hits, misses, rejectedOversize, rejectedPressure, evictedItems, evictedBytes, disposedDeletes, disposedClears int64) {
	return c.counters.snapshot()
}

// removeLocked unlinks the entry from the table, the LRU list and the
// byte accounting. Callers hold c.mu and emit any disposal event.
func (c *Cache) removeLocked(e *entry) {
	delete(c.items, e.key.v)
	if e.el != nil {
		c.lru.Remove(e.el)
		e.el = nil
	}
	c.mem -= e.size
}
