package results

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingFetcher serves canned pages and counts fetches per page.
type countingFetcher struct {
	mu    sync.Mutex
	pages map[int][]parsing.ResultItem
	calls map[int]int
	err   error
}

func newCountingFetcher(pages map[int][]parsing.ResultItem) *countingFetcher {
	return &countingFetcher{pages: pages, calls: make(map[int]int)}
}

func (f *countingFetcher) ListPage(ctx context.Context, collection parsing.Collection, page, pageSize int) ([]parsing.ResultItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[page]++
	if f.err != nil {
		return nil, f.err
	}
	return append([]parsing.ResultItem(nil), f.pages[page]...), nil
}

func (f *countingFetcher) callCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[page]
}

type noopResultsMetrics struct{}

func (noopResultsMetrics) IncCacheHits(context.Context, parsing.Collection)    {}
func (noopResultsMetrics) IncCacheMisses(context.Context, parsing.Collection)  {}
func (noopResultsMetrics) IncPrefetches(context.Context, parsing.Collection)   {}
func (noopResultsMetrics) IncPagesEvicted(context.Context, parsing.Collection) {}

func newTestCache(fetcher parsing.PageFetcher, clock parsing.TimeProvider) *PageCache {
	return NewPageCache(
		fetcher,
		10,
		5*time.Minute,
		10*time.Minute,
		clock,
		noopResultsMetrics{},
		logger.Noop(),
		noop.NewTracerProvider().Tracer("test"),
	)
}

func waitForPrefetch(t *testing.T, fetcher *countingFetcher, page int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return fetcher.callCount(page) > 0
	}, 2*time.Second, time.Millisecond, "prefetch of page %d never happened", page)
}

func TestPageCacheGetPage(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns items ordered newest first", func(t *testing.T) {
		fetcher := newCountingFetcher(map[int][]parsing.ResultItem{
			1: {
				{ID: 1, ParsedAt: base},
				{ID: 2, ParsedAt: base.Add(2 * time.Hour)},
				{ID: 3, ParsedAt: base.Add(time.Hour)},
			},
		})
		cache := newTestCache(fetcher, &fakeClock{now: base})

		items, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 1)

		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, int64(2), items[0].ID)
		assert.Equal(t, int64(3), items[1].ID)
		assert.Equal(t, int64(1), items[2].ID)
	})

	t.Run("fresh page is served without a fetch", func(t *testing.T) {
		fetcher := newCountingFetcher(map[int][]parsing.ResultItem{
			1: {{ID: 1, ParsedAt: base}},
		})
		clock := &fakeClock{now: base}
		cache := newTestCache(fetcher, clock)

		_, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 1)
		require.NoError(t, err)

		clock.advance(4 * time.Minute)
		_, err = cache.GetPage(context.Background(), parsing.CollectionGroups, 1)
		require.NoError(t, err)

		assert.Equal(t, 1, fetcher.callCount(1))
	})

	t.Run("stale page is refetched", func(t *testing.T) {
		fetcher := newCountingFetcher(map[int][]parsing.ResultItem{
			1: {{ID: 1, ParsedAt: base}},
		})
		clock := &fakeClock{now: base}
		cache := newTestCache(fetcher, clock)

		_, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 1)
		require.NoError(t, err)

		clock.advance(5 * time.Minute)
		_, err = cache.GetPage(context.Background(), parsing.CollectionGroups, 1)
		require.NoError(t, err)

		assert.Equal(t, 2, fetcher.callCount(1))
	})

	t.Run("invalidation forces a refetch of a fresh page", func(t *testing.T) {
		fetcher := newCountingFetcher(map[int][]parsing.ResultItem{
			1: {{ID: 1, ParsedAt: base}},
		})
		cache := newTestCache(fetcher, &fakeClock{now: base})

		_, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 1)
		require.NoError(t, err)

		cache.Invalidate(context.Background(), parsing.CollectionGroups)

		_, err = cache.GetPage(context.Background(), parsing.CollectionGroups, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, fetcher.callCount(1))
	})

	t.Run("invalidation leaves other collections cached", func(t *testing.T) {
		fetcher := newCountingFetcher(map[int][]parsing.ResultItem{
			1: {{ID: 1, ParsedAt: base}},
		})
		cache := newTestCache(fetcher, &fakeClock{now: base})

		_, err := cache.GetPage(context.Background(), parsing.CollectionChannels, 1)
		require.NoError(t, err)

		cache.Invalidate(context.Background(), parsing.CollectionGroups)

		_, err = cache.GetPage(context.Background(), parsing.CollectionChannels, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.callCount(1))
	})

	t.Run("reading page N prefetches page N+1", func(t *testing.T) {
		fetcher := newCountingFetcher(map[int][]parsing.ResultItem{
			1: {{ID: 1, ParsedAt: base}},
			2: {{ID: 2, ParsedAt: base}},
		})
		cache := newTestCache(fetcher, &fakeClock{now: base})

		_, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 1)
		require.NoError(t, err)
		waitForPrefetch(t, fetcher, 2)

		items, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 2)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 1, fetcher.callCount(2), "prefetched page should be served from cache")
	})

	t.Run("fetch failure is returned to the caller", func(t *testing.T) {
		fetcher := newCountingFetcher(nil)
		fetcher.err = errors.New("service unavailable")
		cache := newTestCache(fetcher, &fakeClock{now: base})

		_, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 1)

		require.Error(t, err)
	})

	t.Run("page below one is rejected", func(t *testing.T) {
		fetcher := newCountingFetcher(nil)
		cache := newTestCache(fetcher, &fakeClock{now: base})

		_, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 0)

		assert.ErrorIs(t, err, parsing.ErrValidation)
		assert.Equal(t, 0, fetcher.callCount(0))
	})
}

func TestPageCacheSweep(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("idle pages are evicted, recently read pages survive", func(t *testing.T) {
		fetcher := newCountingFetcher(map[int][]parsing.ResultItem{
			1: {{ID: 1, ParsedAt: base}},
			2: {{ID: 2, ParsedAt: base}},
		})
		clock := &fakeClock{now: base}
		cache := newTestCache(fetcher, clock)

		_, err := cache.GetPage(context.Background(), parsing.CollectionGroups, 1)
		require.NoError(t, err)
		_, err = cache.GetPage(context.Background(), parsing.CollectionGroups, 2)
		require.NoError(t, err)

		// Page 2 gets read again later, keeping it warm.
		clock.advance(4 * time.Minute)
		_, err = cache.GetPage(context.Background(), parsing.CollectionGroups, 2)
		require.NoError(t, err)

		clock.advance(6 * time.Minute)
		cache.sweep(context.Background())

		cache.mu.Lock()
		_, page1Cached := cache.pages[pageKey{collection: parsing.CollectionGroups, page: 1}]
		_, page2Cached := cache.pages[pageKey{collection: parsing.CollectionGroups, page: 2}]
		cache.mu.Unlock()

		assert.False(t, page1Cached, "idle page should be evicted")
		assert.True(t, page2Cached, "recently read page should survive")
	})
}
