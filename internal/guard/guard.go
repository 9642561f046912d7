// Package guard runs the periodic feedback controller that connects
// live resident-memory readings to the cache's pressure flag. The cache
// has no notion of current memory usage on its own: it only reacts to
// explicit SetMemoryPressure calls from this loop or from the monitor's
// emergency cleanup.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Borislavv/go-asset-guard/config"
	"github.com/Borislavv/go-asset-guard/internal/health"
	"github.com/Borislavv/go-asset-guard/internal/shared/bytes"
	"github.com/Borislavv/go-asset-guard/model"
)

var ErrGuardNotResponded = errors.New("memory guard not responded")

const pressureSource = "guard"

type Guarder interface {
	ForceCall(timeout time.Duration) error
	GuardCounters() (ticks, pressureSets, pressureClears, cacheFlushes, fullFlushes int64)
	Close() error
}

// AssetCache is the slice of the cache the guard drives.
type AssetCache interface {
	Clear()
	UnderPressure() bool
	SetMemoryPressure(on bool, source string)
}

type Worker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.GuardCfg
	logger   *slog.Logger
	clk      clock.Clock
	intro    health.Introspector
	cache    AssetCache
	registry model.ExternalCacheRegistry
	counters *guardCounters
	invokeCh chan struct{}
}

func New(
	ctx context.Context,
	cfg *config.GuardCfg,
	logger *slog.Logger,
	clk clock.Clock,
	intro health.Introspector,
	cache AssetCache,
	registry model.ExternalCacheRegistry,
) Guarder {
	if !cfg.Enabled() {
		return NoopGuard{}
	}
	if registry == nil {
		registry = health.NoopRegistry{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&Worker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		clk:      clk,
		intro:    intro,
		cache:    cache,
		registry: registry,
		counters: newGuardCounters(),
		invokeCh: make(chan struct{}),
	}).run()
}

// ForceCall triggers one evaluation out of band, for tests and ops.
func (w *Worker) ForceCall(timeout time.Duration) error {
	after := w.clk.Timer(timeout)
	defer after.Stop()

	select {
	case <-w.ctx.Done():
	case w.invokeCh <- struct{}{}:
	case <-after.C:
		return ErrGuardNotResponded
	}
	return nil
}

func (w *Worker) GuardCounters() (ticks, pressureSets, pressureClears, cacheFlushes, fullFlushes int64) {
	return w.counters.snapshot()
}

func (w *Worker) Close() error {
	w.cancel()
	return nil
}

func (w *Worker) run() *Worker {
	w.logger.Info("memory guard is running",
		"interval", w.cfg.TickInterval().String(),
		"process_budget", bytes.FmtMem(uint64(w.cfg.ProcessBudgetBytes)),
	)

	go w.loop()

	return w
}

func (w *Worker) loop() {
	defer w.logger.Info("memory guard is stopped")

	ticker := w.clk.Ticker(w.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.evaluate()
		case <-w.invokeCh:
			w.evaluate()
		}
	}
}

// evaluate reads resident memory and applies the graduated response.
// Bands are cumulative: every band above PressurePct keeps the gate
// raised; the gate drops only under the low-water hysteresis band.
func (w *Worker) evaluate() {
	sample, err := w.intro.Sample()
	if err != nil {
		w.logger.Warn("memory guard sampling failed, skipping tick", "error", err)
		return
	}

	w.counters.ticks.Add(1)
	usage := float64(sample.ResidentBytes) / float64(w.cfg.ProcessBudgetBytes)

	switch {
	case usage >= w.cfg.FlushAllPct:
		w.logger.Error("resident memory critical, flushing asset cache and external registry",
			"resident", bytes.FmtMem(sample.ResidentBytes),
			"usage", fmtPct(usage),
		)
		w.raisePressure()
		w.cache.Clear()
		if flushErr := w.registry.FlushAll(); flushErr != nil {
			w.logger.Error("external registry flush failed", "error", flushErr)
		}
		w.counters.fullFlushes.Add(1)

	case usage >= w.cfg.FlushCachePct:
		w.logger.Error("resident memory over flush threshold, clearing asset cache",
			"resident", bytes.FmtMem(sample.ResidentBytes),
			"usage", fmtPct(usage),
		)
		w.raisePressure()
		w.cache.Clear()
		w.counters.cacheFlushes.Add(1)

	case usage >= w.cfg.PressurePct:
		w.raisePressure()

	case usage >= w.cfg.ElevatedPct:
		w.logger.Info("resident memory elevated",
			"resident", bytes.FmtMem(sample.ResidentBytes),
			"usage", fmtPct(usage),
		)

	case usage < w.cfg.LowWaterPct:
		if w.cache.UnderPressure() {
			w.cache.SetMemoryPressure(false, pressureSource)
			w.counters.pressureClears.Add(1)
		}

	default:
		// between low water and elevated: leave the gate as it is
	}
}

func (w *Worker) raisePressure() {
	if !w.cache.UnderPressure() {
		w.cache.SetMemoryPressure(true, pressureSource)
		w.counters.pressureSets.Add(1)
	}
}

func fmtPct(usage float64) string {
	return fmt.Sprintf("%.0f%%", usage*100)
}
