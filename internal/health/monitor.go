// Package health samples process memory on an interval, retains a
// bounded history and classifies a health state used to admit or shed
// inbound work before the host is killed by an out-of-memory supervisor.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/Borislavv/go-asset-guard/config"
	"github.com/Borislavv/go-asset-guard/internal/shared/bytes"
	"github.com/Borislavv/go-asset-guard/model"
)

type Monitorer interface {
	CheckMemory() model.MemorySample
	CurrentStatus() model.Status
	HealthReport() model.HealthReport
	MemoryTrend() model.Trend
	MetricsHistory() []model.MemorySample
	LatestSample() (model.MemorySample, bool)
	ShouldAcceptNewRequests() bool
	ShouldAllowImageOperations() bool
	EmergencyCleanup()
	StartMonitoring()
	StopMonitoring()
}

// AssetCache is the slice of the cache the monitor needs.
type AssetCache interface {
	Clear()
	Metrics() model.CacheMetrics
	SetMemoryPressure(on bool, source string)
}

const pressureSourceEmergency = "emergency-cleanup"

// trendTolerance is the fraction of the older half-window mean the
// newer half must diverge by before the trend leaves "stable".
const trendTolerance = 0.05

type Monitor struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.MonitorCfg
	logger   *slog.Logger
	clk      clock.Clock
	intro    Introspector
	cache    AssetCache
	registry model.ExternalCacheRegistry

	mu       sync.Mutex
	history  []model.MemorySample
	status   model.Status
	lastGood *model.MemorySample
	started  bool
}

func New(
	ctx context.Context,
	cfg *config.MonitorCfg,
	logger *slog.Logger,
	clk clock.Clock,
	intro Introspector,
	cache AssetCache,
	registry model.ExternalCacheRegistry,
) *Monitor {
	ctx, cancel := context.WithCancel(ctx)
	if registry == nil {
		registry = NoopRegistry{}
	}
	return &Monitor{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		clk:      clk,
		intro:    intro,
		cache:    cache,
		registry: registry,
		status:   model.StatusHealthy,
	}
}

// StartMonitoring runs the sampling ticker. Safe to call once; sampling
// can also be driven on demand via CheckMemory, which is what test
// harnesses and embedded hosts do instead of wall-clock ticks.
func (m *Monitor) StartMonitoring() {
	m.mu.Lock()
	if m.started || !m.cfg.Enabled() {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info("memory monitor is running",
		"interval", m.cfg.SampleInterval.String(),
		"process_budget", bytes.FmtMem(uint64(m.cfg.ProcessBudgetBytes)),
		"system_total", bytes.FmtMem(SystemTotalBytes()),
	)

	go m.loop()
}

// StopMonitoring cancels the sampling timer. Idempotent.
func (m *Monitor) StopMonitoring() {
	m.cancel()
}

func (m *Monitor) loop() {
	ticker := m.clk.Ticker(m.cfg.SampleInterval)
	defer ticker.Stop()
	defer m.logger.Info("memory monitor is stopped")

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.CheckMemory()
		}
	}
}

// CheckMemory samples memory, appends to the bounded history and
// recomputes the status. It never fails the caller: when introspection
// errors, the last good sample is retained instead.
func (m *Monitor) CheckMemory() model.MemorySample {
	sample, err := m.intro.Sample()

	m.mu.Lock()
	if err != nil {
		m.logger.Warn("memory introspection failed, keeping last good sample", "error", err)
		if m.lastGood == nil {
			m.mu.Unlock()
			return model.MemorySample{}
		}
		sample = *m.lastGood
		sample.Timestamp = m.clk.Now()
	} else {
		good := sample
		m.lastGood = &good
	}

	cm := m.cache.Metrics()
	sample.CacheEntries = cm.Entries
	sample.CacheBytes = cm.Bytes
	sample.RegistryKeys = m.registry.Stats().Keys

	m.history = append(m.history, sample)
	if len(m.history) > m.cfg.HistoryLen {
		m.history = m.history[1:]
	}

	prev := m.status
	m.status = m.classify(sample)
	cur := m.status
	m.mu.Unlock()

	if cur.Rank() > prev.Rank() {
		m.logger.Warn("memory health worsened",
			"from", string(prev),
			"to", string(cur),
			"resident", bytes.FmtMem(sample.ResidentBytes),
			"process_budget", bytes.FmtMem(uint64(m.cfg.ProcessBudgetBytes)),
		)
	}

	return sample
}

// classify is a pure function of the sample against the three ascending
// thresholds; no hysteresis at this layer (that belongs to the guard
// loop). The elevated band keeps the status healthy, it only logs.
func (m *Monitor) classify(s model.MemorySample) model.Status {
	usage := float64(s.ResidentBytes) / float64(m.cfg.ProcessBudgetBytes)
	switch {
	case usage >= m.cfg.UnhealthyPct:
		return model.StatusUnhealthy
	case usage >= m.cfg.DegradedPct:
		return model.StatusDegraded
	case usage >= m.cfg.ElevatedPct:
		m.logger.Info("memory usage elevated",
			"resident", bytes.FmtMem(s.ResidentBytes),
			"usage", fmt.Sprintf("%.0f%%", usage*100),
		)
		return model.StatusHealthy
	default:
		return model.StatusHealthy
	}
}

// CurrentStatus is a pure read of the last computed status; healthy
// before the first sample.
func (m *Monitor) CurrentStatus() model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) HealthReport() model.HealthReport {
	m.mu.Lock()
	status := m.status
	var last model.MemorySample
	if n := len(m.history); n > 0 {
		last = m.history[n-1]
	}
	m.mu.Unlock()

	code := 200
	message := "memory within budget"
	switch status {
	case model.StatusDegraded:
		message = "memory degraded, heavy asset operations are shed"
	case model.StatusUnhealthy:
		code = 503
		message = "memory exhausted, new requests are shed"
	}

	return model.HealthReport{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Details:    last,
	}
}

// MemoryTrend compares the means of the older and newer halves of the
// retained window; fewer than two samples is always stable.
func (m *Monitor) MemoryTrend() model.Trend {
	m.mu.Lock()
	history := make([]model.MemorySample, len(m.history))
	copy(history, m.history)
	m.mu.Unlock()

	if len(history) < 2 {
		return model.TrendStable
	}

	mid := len(history) / 2
	older := meanResident(history[:mid])
	newer := meanResident(history[mid:])

	tolerance := older * trendTolerance
	switch {
	case newer > older+tolerance:
		return model.TrendIncreasing
	case newer < older-tolerance:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

func meanResident(samples []model.MemorySample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s.ResidentBytes)
	}
	return sum / float64(len(samples))
}

// MetricsHistory returns the retained window oldest-first. The slice is
// a copy, safe to hold.
func (m *Monitor) MetricsHistory() []model.MemorySample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.MemorySample, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Monitor) LatestSample() (model.MemorySample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return model.MemorySample{}, false
	}
	return m.history[len(m.history)-1], true
}

// ShouldAcceptNewRequests is true unless status is unhealthy.
func (m *Monitor) ShouldAcceptNewRequests() bool {
	return m.CurrentStatus() != model.StatusUnhealthy
}

// ShouldAllowImageOperations denies earlier than the general predicate
// so that heavy asset operations are shed before general traffic.
func (m *Monitor) ShouldAllowImageOperations() bool {
	return m.CurrentStatus() == model.StatusHealthy
}

// EmergencyCleanup flushes the external registry and the asset cache
// independently: a failure in one is logged and does not prevent the
// other. It also raises the cache pressure gate; the guard loop clears
// it once usage falls under its low-water band.
func (m *Monitor) EmergencyCleanup() {
	m.logger.Warn("emergency cleanup started", "status", string(m.CurrentStatus()))

	if err := guarded(func() error { return m.registry.FlushAll() }); err != nil {
		m.logger.Error("external registry flush failed", "error", err)
	}
	if err := guarded(func() error { m.cache.Clear(); return nil }); err != nil {
		m.logger.Error("asset cache clear failed", "error", err)
	}

	m.cache.SetMemoryPressure(true, pressureSourceEmergency)
}

// guarded converts a collaborator panic into an error so both cleanup
// legs always run.
func guarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collaborator panicked: %v", r)
		}
	}()
	return fn()
}
