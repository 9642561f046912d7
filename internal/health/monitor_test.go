package health

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/Borislavv/go-asset-guard/config"
	"github.com/Borislavv/go-asset-guard/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCfg() *config.MonitorCfg {
	return &config.MonitorCfg{
		ProcessBudgetBytes: 1000 << 20, // 1000MB budget keeps the math readable
		SampleInterval:     30 * time.Second,
		HistoryLen:         20,
		ElevatedPct:        0.70,
		DegradedPct:        0.80,
		UnhealthyPct:       0.90,
	}
}

// fakeIntrospector replays a scripted resident-size series.
type fakeIntrospector struct {
	mu      sync.Mutex
	series  []uint64
	idx     int
	failing bool
}

func (f *fakeIntrospector) Sample() (model.MemorySample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return model.MemorySample{}, errors.New("introspection unavailable")
	}
	rss := f.series[f.idx]
	if f.idx < len(f.series)-1 {
		f.idx++
	}
	return model.MemorySample{Timestamp: time.Now(), ResidentBytes: rss}, nil
}

// fakeCache tracks clears and pressure toggles.
type fakeCache struct {
	mu       sync.Mutex
	clears   int
	pressure bool
	source   string
}

func (f *fakeCache) Clear() {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
}

func (f *fakeCache) Metrics() model.CacheMetrics {
	return model.CacheMetrics{Entries: 3, Bytes: 300}
}

func (f *fakeCache) SetMemoryPressure(on bool, source string) {
	f.mu.Lock()
	f.pressure = on
	f.source = source
	f.mu.Unlock()
}

// failingRegistry always fails its bulk clear.
type failingRegistry struct {
	flushes int
}

func (r *failingRegistry) Stats() model.RegistryStats {
	return model.RegistryStats{Keys: 42}
}

func (r *failingRegistry) FlushAll() error {
	r.flushes++
	return errors.New("registry unavailable")
}

func mb(n uint64) uint64 { return n << 20 }

func newTestMonitor(t *testing.T, intro Introspector, cache AssetCache, registry model.ExternalCacheRegistry) *Monitor {
	t.Helper()
	return New(context.Background(), testCfg(), testLogger(), clock.NewMock(), intro, cache, registry)
}

func TestStatusHealthyBeforeFirstSample(t *testing.T) {
	m := newTestMonitor(t, &fakeIntrospector{series: []uint64{mb(100)}}, &fakeCache{}, nil)
	require.Equal(t, model.StatusHealthy, m.CurrentStatus())
	require.True(t, m.ShouldAcceptNewRequests())
	require.True(t, m.ShouldAllowImageOperations())
}

func TestClassificationAgainstThresholds(t *testing.T) {
	tests := []struct {
		name string
		rss  uint64
		want model.Status
	}{
		{"well under budget", mb(100), model.StatusHealthy},
		{"elevated but healthy", mb(750), model.StatusHealthy},
		{"degraded", mb(850), model.StatusDegraded},
		{"unhealthy", mb(950), model.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(t, &fakeIntrospector{series: []uint64{tt.rss}}, &fakeCache{}, nil)
			m.CheckMemory()
			require.Equal(t, tt.want, m.CurrentStatus())
		})
	}
}

func TestNoHysteresisAtThisLayer(t *testing.T) {
	intro := &fakeIntrospector{series: []uint64{mb(950), mb(100)}}
	m := newTestMonitor(t, intro, &fakeCache{}, nil)

	m.CheckMemory()
	require.Equal(t, model.StatusUnhealthy, m.CurrentStatus())

	// the very next sample reclassifies fresh, no sticky state
	m.CheckMemory()
	require.Equal(t, model.StatusHealthy, m.CurrentStatus())
}

func TestHealthReportStatusCode(t *testing.T) {
	intro := &fakeIntrospector{series: []uint64{mb(100), mb(850), mb(950)}}
	m := newTestMonitor(t, intro, &fakeCache{}, nil)

	m.CheckMemory()
	require.Equal(t, 200, m.HealthReport().StatusCode)

	m.CheckMemory()
	require.Equal(t, 200, m.HealthReport().StatusCode, "degraded still answers 200")

	m.CheckMemory()
	report := m.HealthReport()
	require.Equal(t, 503, report.StatusCode)
	require.Equal(t, model.StatusUnhealthy, report.Status)
	require.NotEmpty(t, report.Message)
}

func TestAdmissionPredicates(t *testing.T) {
	intro := &fakeIntrospector{series: []uint64{mb(850), mb(950)}}
	m := newTestMonitor(t, intro, &fakeCache{}, nil)

	m.CheckMemory() // degraded
	require.True(t, m.ShouldAcceptNewRequests())
	require.False(t, m.ShouldAllowImageOperations(), "heavy asset work is shed before general traffic")

	m.CheckMemory() // unhealthy
	require.False(t, m.ShouldAcceptNewRequests())
	require.False(t, m.ShouldAllowImageOperations())
}

func TestTrendStableWithFewSamples(t *testing.T) {
	intro := &fakeIntrospector{series: []uint64{mb(100)}}
	m := newTestMonitor(t, intro, &fakeCache{}, nil)

	require.Equal(t, model.TrendStable, m.MemoryTrend())
	m.CheckMemory()
	require.Equal(t, model.TrendStable, m.MemoryTrend())
}

func TestTrendIncreasing(t *testing.T) {
	series := make([]uint64, 10)
	for i := range series {
		series[i] = mb(uint64(100 + i*10))
	}
	m := newTestMonitor(t, &fakeIntrospector{series: series}, &fakeCache{}, nil)

	for range series {
		m.CheckMemory()
	}
	require.Equal(t, model.TrendIncreasing, m.MemoryTrend())
}

func TestTrendDecreasing(t *testing.T) {
	series := make([]uint64, 10)
	for i := range series {
		series[i] = mb(uint64(400 - i*20))
	}
	m := newTestMonitor(t, &fakeIntrospector{series: series}, &fakeCache{}, nil)

	for range series {
		m.CheckMemory()
	}
	require.Equal(t, model.TrendDecreasing, m.MemoryTrend())
}

func TestHistoryBoundedOldestFirst(t *testing.T) {
	cfg := testCfg()
	cfg.HistoryLen = 5
	series := make([]uint64, 8)
	for i := range series {
		series[i] = mb(uint64(100 + i))
	}
	m := New(context.Background(), cfg, testLogger(), clock.NewMock(), &fakeIntrospector{series: series}, &fakeCache{}, nil)

	for range series {
		m.CheckMemory()
	}

	history := m.MetricsHistory()
	require.Len(t, history, 5)
	require.Equal(t, mb(103), history[0].ResidentBytes, "oldest samples are evicted first")
	require.Equal(t, mb(107), history[4].ResidentBytes)
}

func TestIntrospectionFailureKeepsLastGoodSample(t *testing.T) {
	intro := &fakeIntrospector{series: []uint64{mb(850)}}
	m := newTestMonitor(t, intro, &fakeCache{}, nil)

	m.CheckMemory()
	require.Equal(t, model.StatusDegraded, m.CurrentStatus())

	intro.mu.Lock()
	intro.failing = true
	intro.mu.Unlock()

	m.CheckMemory()
	require.Equal(t, model.StatusDegraded, m.CurrentStatus(), "status derives from the retained sample")
	last, ok := m.LatestSample()
	require.True(t, ok)
	require.Equal(t, mb(850), last.ResidentBytes)
}

func TestSamplesCarryCacheAndRegistryFigures(t *testing.T) {
	registry := &failingRegistry{}
	m := newTestMonitor(t, &fakeIntrospector{series: []uint64{mb(100)}}, &fakeCache{}, registry)

	sample := m.CheckMemory()
	require.Equal(t, int64(3), sample.CacheEntries)
	require.Equal(t, int64(300), sample.CacheBytes)
	require.Equal(t, int64(42), sample.RegistryKeys)
}

func TestEmergencyCleanupSurvivesRegistryFailure(t *testing.T) {
	cache := &fakeCache{}
	registry := &failingRegistry{}
	m := newTestMonitor(t, &fakeIntrospector{series: []uint64{mb(950)}}, cache, registry)

	m.CheckMemory()
	m.EmergencyCleanup()

	require.Equal(t, 1, registry.flushes, "registry flush was attempted")
	cache.mu.Lock()
	defer cache.mu.Unlock()
	require.Equal(t, 1, cache.clears, "cache clear runs even when the registry flush fails")
	require.True(t, cache.pressure)
	require.Equal(t, "emergency-cleanup", cache.source)
}

func TestTimerDrivenSampling(t *testing.T) {
	mock := clock.NewMock()
	cfg := testCfg()
	intro := &fakeIntrospector{series: []uint64{mb(100), mb(200), mb(300)}}
	m := New(context.Background(), cfg, testLogger(), mock, intro, &fakeCache{}, nil)

	m.StartMonitoring()

	// let the sampling goroutine install its ticker before advancing
	time.Sleep(10 * time.Millisecond)

	mock.Add(cfg.SampleInterval)
	require.Eventually(t, func() bool { return len(m.MetricsHistory()) >= 1 },
		time.Second, time.Millisecond)

	mock.Add(cfg.SampleInterval)
	require.Eventually(t, func() bool { return len(m.MetricsHistory()) >= 2 },
		time.Second, time.Millisecond)

	m.StopMonitoring()
	m.StopMonitoring() // idempotent
}
