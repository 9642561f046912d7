package assetguard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Borislavv/go-asset-guard/config"
	"github.com/Borislavv/go-asset-guard/model"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := New(context.Background(), config.Default(), slog.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGuard_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.BudgetBytes = -1

	_, err := New(context.Background(), cfg, slog.Default(), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestGuard_GetOrFetchCachesResult(t *testing.T) {
	g := newTestGuard(t)

	var fetches atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		return []byte("payload"), nil
	}
	meta := model.AssetMeta{ContentType: "image/png", Source: "origin"}

	asset, err := g.GetOrFetch(context.Background(), "logo", meta, fetch)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), asset.Payload)
	require.Equal(t, "image/png", asset.ContentType)
	require.EqualValues(t, 1, fetches.Load())

	// Second call is a cache hit, fetch is not invoked again.
	again, err := g.GetOrFetch(context.Background(), "logo", meta, fetch)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), again.Payload)
	require.EqualValues(t, 1, fetches.Load())
}

func TestGuard_GetOrFetchPropagatesFetchError(t *testing.T) {
	g := newTestGuard(t)

	boom := errors.New("origin unavailable")
	_, err := g.GetOrFetch(context.Background(), "missing", model.AssetMeta{}, func(ctx context.Context) ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 0, g.Len())
}

func TestGuard_GetOrFetchCoalescesConcurrentCallers(t *testing.T) {
	g := newTestGuard(t)

	var fetches atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		<-release
		return []byte("shared"), nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*model.Asset, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			asset, err := g.GetOrFetch(context.Background(), "hot", model.AssetMeta{}, fetch)
			require.NoError(t, err)
			results[i] = asset
		}(i)
	}

	close(release)
	wg.Wait()

	require.EqualValues(t, 1, fetches.Load(), "concurrent callers share one fetch")
	for _, asset := range results {
		require.Equal(t, []byte("shared"), asset.Payload)
	}

	// Each caller owns its payload, mutating one must not leak.
	results[0].Payload[0] = 'X'
	require.Equal(t, []byte("shared"), results[1].Payload)
}

func TestGuard_GetOrFetchUnderPressureStillAnswers(t *testing.T) {
	g := newTestGuard(t)
	g.SetMemoryPressure(true, "test")

	asset, err := g.GetOrFetch(context.Background(), "gated", model.AssetMeta{}, func(ctx context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), asset.Payload)

	// The write was rejected by the gate, nothing was cached.
	require.EqualValues(t, 0, g.Len())
}

func TestGuard_MetricsCarriesProcessFigures(t *testing.T) {
	g := newTestGuard(t)

	require.True(t, g.Set("a", []byte("abc"), model.AssetMeta{}))

	sample := g.CheckMemory()
	require.NotZero(t, sample.ResidentBytes)

	m := g.Metrics()
	require.EqualValues(t, 1, m.Entries)
	require.EqualValues(t, 3, m.Bytes)
	require.Equal(t, sample.ResidentBytes, m.ResidentBytes)
}

func TestGuard_SubscribeSeesDisposalEvents(t *testing.T) {
	g := newTestGuard(t)

	var mu sync.Mutex
	var seen []model.Event
	g.Subscribe(func(e model.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})

	require.True(t, g.Set("a", []byte("abc"), model.AssetMeta{}))
	require.True(t, g.Del("a"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	require.Equal(t, model.EventDisposed, seen[0].Type)
	require.Equal(t, model.ReasonDelete, seen[0].Reason)
	require.Equal(t, "a", seen[0].Key)
}

// TestGuard_Close cancels context and stops background workers.
func TestGuard_Close(t *testing.T) {
	g, err := New(context.Background(), config.Default(), slog.Default(), nil)
	require.NoError(t, err)

	// Close should not panic
	require.NoError(t, g.Close())

	// Close should be idempotent
	require.NoError(t, g.Close())
}
