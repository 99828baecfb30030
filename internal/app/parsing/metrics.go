package parsing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/telescan/telescan/internal/domain/parsing"
)

// ParsingMetrics defines the metrics operations the job orchestration layer
// records.
type ParsingMetrics interface {
	// Job lifecycle metrics
	IncJobsStarted(ctx context.Context, collection parsing.Collection)
	IncJobsSucceeded(ctx context.Context, collection parsing.Collection)
	IncJobsFailed(ctx context.Context, collection parsing.Collection)
	IncJobsCancelled(ctx context.Context, collection parsing.Collection)
	IncTrackingLost(ctx context.Context, collection parsing.Collection)

	// Polling metrics
	IncPollsIssued(ctx context.Context, collection parsing.Collection)

	// Capacity metrics
	IncEvictions(ctx context.Context, collection parsing.Collection)
	IncEvictionFailures(ctx context.Context, collection parsing.Collection)
}

// parsingMetrics implements ParsingMetrics on OpenTelemetry counters.
type parsingMetrics struct {
	jobsStarted      metric.Int64Counter
	jobsSucceeded    metric.Int64Counter
	jobsFailed       metric.Int64Counter
	jobsCancelled    metric.Int64Counter
	trackingLost     metric.Int64Counter
	pollsIssued      metric.Int64Counter
	evictions        metric.Int64Counter
	evictionFailures metric.Int64Counter
}

const namespace = "parsing"

// NewParsingMetrics creates a new parsing metrics instance.
func NewParsingMetrics(mp metric.MeterProvider) (ParsingMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(parsingMetrics)
	var err error

	if m.jobsStarted, err = meter.Int64Counter(
		"jobs_started_total",
		metric.WithDescription("Total number of parse jobs started"),
	); err != nil {
		return nil, err
	}

	if m.jobsSucceeded, err = meter.Int64Counter(
		"jobs_succeeded_total",
		metric.WithDescription("Total number of parse jobs that completed successfully"),
	); err != nil {
		return nil, err
	}

	if m.jobsFailed, err = meter.Int64Counter(
		"jobs_failed_total",
		metric.WithDescription("Total number of parse jobs that failed"),
	); err != nil {
		return nil, err
	}

	if m.jobsCancelled, err = meter.Int64Counter(
		"jobs_cancelled_total",
		metric.WithDescription("Total number of parse jobs cancelled"),
	); err != nil {
		return nil, err
	}

	if m.trackingLost, err = meter.Int64Counter(
		"tracking_lost_total",
		metric.WithDescription("Total number of jobs whose progress tracking was lost"),
	); err != nil {
		return nil, err
	}

	if m.pollsIssued, err = meter.Int64Counter(
		"polls_issued_total",
		metric.WithDescription("Total number of job status polls issued"),
	); err != nil {
		return nil, err
	}

	if m.evictions, err = meter.Int64Counter(
		"evictions_total",
		metric.WithDescription("Total number of oldest-item evictions"),
	); err != nil {
		return nil, err
	}

	if m.evictionFailures, err = meter.Int64Counter(
		"eviction_failures_total",
		metric.WithDescription("Total number of failed eviction attempts"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func collectionAttr(collection parsing.Collection) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("collection", collection.String()))
}

func (m *parsingMetrics) IncJobsStarted(ctx context.Context, collection parsing.Collection) {
	m.jobsStarted.Add(ctx, 1, collectionAttr(collection))
}

func (m *parsingMetrics) IncJobsSucceeded(ctx context.Context, collection parsing.Collection) {
	m.jobsSucceeded.Add(ctx, 1, collectionAttr(collection))
}

func (m *parsingMetrics) IncJobsFailed(ctx context.Context, collection parsing.Collection) {
	m.jobsFailed.Add(ctx, 1, collectionAttr(collection))
}

func (m *parsingMetrics) IncJobsCancelled(ctx context.Context, collection parsing.Collection) {
	m.jobsCancelled.Add(ctx, 1, collectionAttr(collection))
}

func (m *parsingMetrics) IncTrackingLost(ctx context.Context, collection parsing.Collection) {
	m.trackingLost.Add(ctx, 1, collectionAttr(collection))
}

func (m *parsingMetrics) IncPollsIssued(ctx context.Context, collection parsing.Collection) {
	m.pollsIssued.Add(ctx, 1, collectionAttr(collection))
}

func (m *parsingMetrics) IncEvictions(ctx context.Context, collection parsing.Collection) {
	m.evictions.Add(ctx, 1, collectionAttr(collection))
}

func (m *parsingMetrics) IncEvictionFailures(ctx context.Context, collection parsing.Collection) {
	m.evictionFailures.Add(ctx, 1, collectionAttr(collection))
}
