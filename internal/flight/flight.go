// Package flight tracks in-flight fetch futures per key so concurrent
// callers requesting the same key share one outstanding operation,
// capped at a hard concurrency ceiling. Exceeding the cap rejects the
// registration, nothing is queued.
package flight

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Borislavv/go-asset-guard/config"
	"github.com/Borislavv/go-asset-guard/internal/shared/rate"
)

type Coalescing interface {
	RegisterFetch(key string, future *Future) bool
	IsFetching(key string) bool
	FetchPromise(key string) (*Future, bool)
	InFlight() int
	Do(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

type registration struct {
	key          string
	future       *Future
	registeredAt time.Time
}

type Coalescer struct {
	cfg    *config.FlightCfg
	logger *slog.Logger
	warns  *rate.Jitter
	group  singleflight.Group

	mu       sync.Mutex
	inflight map[string]*registration
}

func New(ctx context.Context, cfg *config.FlightCfg, logger *slog.Logger) *Coalescer {
	return &Coalescer{
		cfg:      cfg,
		logger:   logger,
		warns:    rate.NewJitter(ctx, cfg.WarnRate()),
		inflight: make(map[string]*registration),
	}
}

// RegisterFetch records an in-flight fetch for key. It rejects when the
// key already has a registration or when the table is at the hard cap;
// a cap rejection logs a warning (rate-limited to avoid storms). The
// registration is removed automatically once the future settles.
func (c *Coalescer) RegisterFetch(key string, future *Future) bool {
	if future == nil {
		return false
	}

	c.mu.Lock()
	if _, dup := c.inflight[key]; dup {
		c.mu.Unlock()
		return false
	}
	if len(c.inflight) >= c.cfg.Cap() {
		c.mu.Unlock()
		if c.warns.TryTake() {
			c.logger.Warn("in-flight fetch cap exceeded, registration rejected",
				"key", key, "cap", c.cfg.Cap())
		}
		return false
	}
	c.inflight[key] = &registration{key: key, future: future, registeredAt: time.Now()}
	c.mu.Unlock()

	go c.watch(key, future)
	return true
}

func (c *Coalescer) IsFetching(key string) bool {
	c.mu.Lock()
	_, found := c.inflight[key]
	c.mu.Unlock()
	return found
}

func (c *Coalescer) FetchPromise(key string) (*Future, bool) {
	c.mu.Lock()
	reg, found := c.inflight[key]
	c.mu.Unlock()
	if !found {
		return nil, false
	}
	return reg.future, true
}

func (c *Coalescer) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Do runs fetch once per key across concurrent callers and mirrors the
// call in the in-flight table. A cap rejection does not fail the fetch:
// the caller still gets its bytes, only the registration is skipped.
func (c *Coalescer) Do(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		future := NewFuture()
		c.RegisterFetch(key, future)

		data, fetchErr := fetch(ctx)
		if fetchErr != nil {
			future.Reject(fetchErr)
			return nil, fetchErr
		}
		future.Resolve(data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// watch deregisters the key when its future settles. There is no
// timeout here: an entry leaves the table only on settlement, shutdown
// included.
func (c *Coalescer) watch(key string, future *Future) {
	<-future.Done()
	c.mu.Lock()
	if reg, found := c.inflight[key]; found && reg.future == future {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
}
