package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Borislavv/go-asset-guard/config"
	"github.com/Borislavv/go-asset-guard/internal/cache"
	"github.com/Borislavv/go-asset-guard/internal/events"
	"github.com/Borislavv/go-asset-guard/internal/guard"
	"github.com/Borislavv/go-asset-guard/internal/health"
	"github.com/Borislavv/go-asset-guard/internal/shared/bytes"
	"github.com/Borislavv/go-asset-guard/model"
)

type Logger interface {
	Interval() time.Duration
	Snapshot() model.CacheMetrics
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Config
	logger   *slog.Logger
	clk      clock.Clock
	bus      *events.Bus
	cache    cache.Cacher
	monitor  health.Monitorer
	guard    guard.Guarder
	interval time.Duration
}

func New(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	clk clock.Clock,
	bus *events.Bus,
	cache cache.Cacher,
	monitor health.Monitorer,
	guard guard.Guarder,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		clk:      clk,
		bus:      bus,
		cache:    cache,
		monitor:  monitor,
		guard:    guard,
		interval: cfg.Telemetry.TickInterval(),
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	if l.cfg.Telemetry.Enabled() {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	ticker := l.clk.Ticker(l.interval)
	defer ticker.Stop()

	budget := bytes.FmtMem(uint64(l.cfg.Cache.BudgetBytes))

	s := newSampler(l.cache, l.guard)
	prev := s.snapshot()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := s.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur

			metrics := l.Snapshot()
			l.bus.Publish(model.Event{Type: model.EventMetrics, Metrics: &metrics})

			common := []any{"interval", l.interval.String()}

			l.logger.Info("storage",
				append(common,
					"size", bytes.FmtMem(uint64(metrics.Bytes)),
					"entries", metrics.Entries,
					"budget", budget,
					"pressure", metrics.Pressure,
					"status", string(l.monitor.CurrentStatus()),
					"trend", string(l.monitor.MemoryTrend()),
				)...,
			)

			if d.sets > 0 || d.hits > 0 || d.misses > 0 {
				l.logger.Info("traffic",
					append(common,
						"sets", int64(d.sets),
						"hits", int64(d.hits),
						"misses", int64(d.misses),
					)...,
				)
			}

			if d.rejectedOversize > 0 || d.rejectedPressure > 0 {
				l.logger.Info("admission",
					append(common,
						"rejected_oversize", int64(d.rejectedOversize),
						"rejected_pressure", int64(d.rejectedPressure),
					)...,
				)
			}

			if d.evictedItems > 0 || d.evictedBytes > 0 {
				l.logger.Info("evictor",
					append(common,
						"freed_items", int64(d.evictedItems),
						"freed_bytes", bytes.FmtMem(d.evictedBytes),
					)...,
				)
			}

			if d.pressureSets > 0 || d.pressureClears > 0 || d.cacheFlushes > 0 || d.fullFlushes > 0 {
				l.logger.Info("memory_guard",
					append(common,
						"pressure_sets", int64(d.pressureSets),
						"pressure_clears", int64(d.pressureClears),
						"cache_flushes", int64(d.cacheFlushes),
						"full_flushes", int64(d.fullFlushes),
					)...,
				)
			}
		}
	}
}

// Snapshot merges the cache snapshot with the monitor's latest process
// memory figures.
func (l *Logs) Snapshot() model.CacheMetrics {
	metrics := l.cache.Metrics()
	if sample, ok := l.monitor.LatestSample(); ok {
		metrics.ResidentBytes = sample.ResidentBytes
		metrics.HeapUsedBytes = sample.HeapUsedBytes
		metrics.HeapTotalBytes = sample.HeapTotalBytes
		metrics.ExternalBytes = sample.ExternalBytes
	}
	return metrics
}
