// Package results holds the staleness-aware paginated cache that fronts the
// parsing service's stored results.
package results

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
)

const (
	defaultFreshFor      = 5 * time.Minute
	defaultEvictAfter    = 10 * time.Minute
	defaultSweepInterval = time.Minute
)

type pageKey struct {
	collection parsing.Collection
	page       int
}

// pageEntry is one cached page. fetchedAt drives freshness, lastRead drives
// idle eviction.
type pageEntry struct {
	items     []parsing.ResultItem
	fetchedAt time.Time
	lastRead  time.Time
}

// PageCache serves result pages from memory while they are fresh and fetches
// them from the parsing service otherwise. A fetch of page N schedules a
// background prefetch of page N+1. Concurrent fetches of the same page are
// tolerated; the later write wins, which at worst refetches a page.
type PageCache struct {
	fetcher    parsing.PageFetcher
	pageSize   int
	freshFor   time.Duration
	evictAfter time.Duration
	clock      parsing.TimeProvider
	metrics    ResultsMetrics

	logger *logger.Logger
	tracer trace.Tracer

	mu    sync.Mutex
	pages map[pageKey]*pageEntry
}

var _ parsing.ResultInvalidator = (*PageCache)(nil)

// NewPageCache creates a cache over the given page fetcher. Non-positive
// durations fall back to the five-minute freshness window and the ten-minute
// idle eviction age.
func NewPageCache(
	fetcher parsing.PageFetcher,
	pageSize int,
	freshFor, evictAfter time.Duration,
	clock parsing.TimeProvider,
	metrics ResultsMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *PageCache {
	if freshFor <= 0 {
		freshFor = defaultFreshFor
	}
	if evictAfter <= 0 {
		evictAfter = defaultEvictAfter
	}
	logger = logger.With("component", "page_cache")
	return &PageCache{
		fetcher:    fetcher,
		pageSize:   pageSize,
		freshFor:   freshFor,
		evictAfter: evictAfter,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
		tracer:     tracer,
		pages:      make(map[pageKey]*pageEntry),
	}
}

// GetPage returns the items of the given 1-based page, from cache when the
// cached copy is still fresh. Items are ordered by parse time, newest first.
func (c *PageCache) GetPage(ctx context.Context, collection parsing.Collection, page int) ([]parsing.ResultItem, error) {
	ctx, span := c.tracer.Start(ctx, "page_cache.get_page",
		trace.WithAttributes(
			attribute.String("collection", collection.String()),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if page < 1 {
		span.SetStatus(codes.Error, "invalid page number")
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", parsing.ErrValidation, page)
	}

	if items, ok := c.lookup(collection, page); ok {
		c.metrics.IncCacheHits(ctx, collection)
		span.AddEvent("cache_hit")
		span.SetStatus(codes.Ok, "served from cache")
		c.schedulePrefetch(ctx, collection, page+1)
		return items, nil
	}

	c.metrics.IncCacheMisses(ctx, collection)
	span.AddEvent("cache_miss")

	items, err := c.fetch(ctx, collection, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page fetch failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("item_count", len(items)))
	span.SetStatus(codes.Ok, "page fetched")
	c.schedulePrefetch(ctx, collection, page+1)
	return items, nil
}

// Invalidate drops every cached page for the collection. The next read
// fetches from the service regardless of freshness.
func (c *PageCache) Invalidate(ctx context.Context, collection parsing.Collection) {
	c.mu.Lock()
	removed := 0
	for key := range c.pages {
		if key.collection == collection {
			delete(c.pages, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.logger.Info(ctx, "invalidated cached pages",
		"collection", collection, "pages_removed", removed)
}

// RunSweeper evicts pages that have not been read for the idle eviction age.
// It blocks until the context is cancelled.
func (c *PageCache) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// lookup returns a copy of the cached page when it is still fresh, updating
// its last read time.
func (c *PageCache) lookup(collection parsing.Collection, page int) ([]parsing.ResultItem, bool) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.pages[pageKey{collection: collection, page: page}]
	if !ok || now.Sub(entry.fetchedAt) >= c.freshFor {
		return nil, false
	}
	entry.lastRead = now
	return append([]parsing.ResultItem(nil), entry.items...), true
}

// fetch retrieves the page from the service, orders it newest first, and
// stores it.
func (c *PageCache) fetch(ctx context.Context, collection parsing.Collection, page int) ([]parsing.ResultItem, error) {
	items, err := c.fetcher.ListPage(ctx, collection, page, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ParsedAt.Equal(items[j].ParsedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].ParsedAt.After(items[j].ParsedAt)
	})

	now := c.clock.Now()
	c.mu.Lock()
	c.pages[pageKey{collection: collection, page: page}] = &pageEntry{
		items:     items,
		fetchedAt: now,
		lastRead:  now,
	}
	c.mu.Unlock()

	return append([]parsing.ResultItem(nil), items...), nil
}

// schedulePrefetch warms the next page in the background when it is missing
// or stale. Prefetch failures are silent; the page is simply fetched on
// demand later.
func (c *PageCache) schedulePrefetch(ctx context.Context, collection parsing.Collection, page int) {
	c.mu.Lock()
	entry, ok := c.pages[pageKey{collection: collection, page: page}]
	fresh := ok && c.clock.Now().Sub(entry.fetchedAt) < c.freshFor
	c.mu.Unlock()
	if fresh {
		return
	}

	// The prefetch outlives the read request that triggered it.
	ctx = context.WithoutCancel(ctx)
	go func() {
		if _, err := c.fetch(ctx, collection, page); err != nil {
			c.logger.Debug(ctx, "page prefetch failed",
				"collection", collection, "page", page, "error", err)
			return
		}
		c.metrics.IncPrefetches(ctx, collection)
	}()
}

func (c *PageCache) sweep(ctx context.Context) {
	now := c.clock.Now()

	c.mu.Lock()
	var evicted []pageKey
	for key, entry := range c.pages {
		if now.Sub(entry.lastRead) >= c.evictAfter {
			delete(c.pages, key)
			evicted = append(evicted, key)
		}
	}
	c.mu.Unlock()

	for _, key := range evicted {
		c.metrics.IncPagesEvicted(ctx, key.collection)
	}
	if len(evicted) > 0 {
		c.logger.Debug(ctx, "swept idle pages", "pages_evicted", len(evicted))
	}
}
