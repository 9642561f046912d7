// Package assetguard bounds the memory footprint of binary asset
// serving: a byte-budgeted cache with strict LRU eviction, a fetch
// coalescer with a hard in-flight cap, a process memory monitor and a
// guard loop that drives cache pressure from resident memory.
package assetguard

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Borislavv/go-asset-guard/config"
	"github.com/Borislavv/go-asset-guard/internal/cache"
	"github.com/Borislavv/go-asset-guard/internal/events"
	"github.com/Borislavv/go-asset-guard/internal/flight"
	"github.com/Borislavv/go-asset-guard/internal/guard"
	"github.com/Borislavv/go-asset-guard/internal/health"
	"github.com/Borislavv/go-asset-guard/internal/telemetry"
	"github.com/Borislavv/go-asset-guard/model"
)

type AssetGuard interface {
	cache.Cacher
	flight.Coalescing
	health.Monitorer
	guard.Guarder
	telemetry.Logger
	Subscribe(obs model.Observer)
	GetOrFetch(ctx context.Context, key string, meta model.AssetMeta, fetch func(ctx context.Context) ([]byte, error)) (*model.Asset, error)
	io.Closer
}

type Guard struct {
	cache.Cacher
	flight.Coalescing
	health.Monitorer
	guard.Guarder
	telemetry.Logger
	bus *events.Bus
	cls context.CancelFunc
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, registry model.ExternalCacheRegistry) (*Guard, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	intro, err := health.NewProcessIntrospector()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	clk := clock.New()
	bus := events.NewBus()

	cacher := cache.New(&cfg.Cache, logger, bus)
	coalescer := flight.New(ctx, cfg.Flight, logger)

	monitor := health.New(ctx, cfg.Monitor, logger, clk, intro, cacher, registry)
	monitor.StartMonitoring()

	guardian := guard.New(ctx, cfg.Guard, logger, clk, intro, cacher, registry)
	telemeter := telemetry.New(ctx, cfg, logger, clk, bus, cacher, monitor, guardian)

	return &Guard{
		Cacher:     cacher,
		Coalescing: coalescer,
		Monitorer:  monitor,
		Guarder:    guardian,
		Logger:     telemeter,
		bus:        bus,
		cls:        cancel,
	}, nil
}

// Metrics merges the cache snapshot with the monitor's latest process
// memory figures. Before the first sample the process figures are zero.
func (g *Guard) Metrics() model.CacheMetrics {
	return g.Logger.Snapshot()
}

// Subscribe registers an observer for disposal, pressure and metrics
// events. Delivery is synchronous and in publication order.
func (g *Guard) Subscribe(obs model.Observer) {
	g.bus.Subscribe(obs)
}

// GetOrFetch answers key from the cache, or runs fetch once per key
// across concurrent callers and caches the result. A cache admission
// rejection (oversize or pressure gate) does not fail the call, the
// fetched payload is still returned.
func (g *Guard) GetOrFetch(ctx context.Context, key string, meta model.AssetMeta, fetch func(ctx context.Context) ([]byte, error)) (*model.Asset, error) {
	if asset, found := g.Cacher.Get(ctx, key); found {
		return asset, nil
	}

	payload, err := g.Coalescing.Do(ctx, key, fetch)
	if err != nil {
		return nil, err
	}
	g.Cacher.Set(key, payload, meta)

	// Coalesced callers share the fetched slice, hand each its own copy.
	owned := make([]byte, len(payload))
	copy(owned, payload)

	return &model.Asset{
		Key:         key,
		Payload:     owned,
		ContentType: meta.ContentType,
		Source:      meta.Source,
		SizeBytes:   int64(len(owned)),
		CreatedAt:   time.Now(),
	}, nil
}

func (g *Guard) Close() error {
	_ = g.Guarder.Close()
	g.Monitorer.StopMonitoring()
	_ = g.Logger.Close()
	g.Cacher.Destroy()
	g.cls()
	return nil
}
