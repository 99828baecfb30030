package results

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/telescan/telescan/internal/domain/parsing"
)

// ResultsMetrics records cache effectiveness counters for the page cache.
type ResultsMetrics interface {
	// IncCacheHits increments the count of page reads served from cache.
	IncCacheHits(ctx context.Context, collection parsing.Collection)

	// IncCacheMisses increments the count of page reads that required a fetch.
	IncCacheMisses(ctx context.Context, collection parsing.Collection)

	// IncPrefetches increments the count of background next-page fetches.
	IncPrefetches(ctx context.Context, collection parsing.Collection)

	// IncPagesEvicted increments the count of pages dropped for idleness.
	IncPagesEvicted(ctx context.Context, collection parsing.Collection)
}

// resultsMetrics implements ResultsMetrics on otel counters.
type resultsMetrics struct {
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	prefetches   metric.Int64Counter
	pagesEvicted metric.Int64Counter
}

const resultsNamespace = "results"

// NewResultsMetrics creates the page cache counters on the given meter
// provider.
func NewResultsMetrics(mp metric.MeterProvider) (ResultsMetrics, error) {
	meter := mp.Meter(resultsNamespace)

	r := new(resultsMetrics)
	var err error

	if r.cacheHits, err = meter.Int64Counter(
		"page_cache_hits_total",
		metric.WithDescription("Total page reads served from cache"),
	); err != nil {
		return nil, err
	}

	if r.cacheMisses, err = meter.Int64Counter(
		"page_cache_misses_total",
		metric.WithDescription("Total page reads that fetched from the service"),
	); err != nil {
		return nil, err
	}

	if r.prefetches, err = meter.Int64Counter(
		"page_cache_prefetches_total",
		metric.WithDescription("Total background next-page fetches"),
	); err != nil {
		return nil, err
	}

	if r.pagesEvicted, err = meter.Int64Counter(
		"page_cache_evictions_total",
		metric.WithDescription("Total cached pages dropped for idleness"),
	); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *resultsMetrics) IncCacheHits(ctx context.Context, collection parsing.Collection) {
	r.cacheHits.Add(ctx, 1, metric.WithAttributes(collectionAttr(collection)))
}

func (r *resultsMetrics) IncCacheMisses(ctx context.Context, collection parsing.Collection) {
	r.cacheMisses.Add(ctx, 1, metric.WithAttributes(collectionAttr(collection)))
}

func (r *resultsMetrics) IncPrefetches(ctx context.Context, collection parsing.Collection) {
	r.prefetches.Add(ctx, 1, metric.WithAttributes(collectionAttr(collection)))
}

func (r *resultsMetrics) IncPagesEvicted(ctx context.Context, collection parsing.Collection) {
	r.pagesEvicted.Add(ctx, 1, metric.WithAttributes(collectionAttr(collection)))
}

func collectionAttr(collection parsing.Collection) attribute.KeyValue {
	return attribute.String("collection", collection.String())
}
