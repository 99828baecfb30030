// Package parsing contains the application services that orchestrate parse
// jobs: status polling, the per-collection job controller, and capacity
// enforcement ahead of job starts.
package parsing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
)

// StatusObserver receives ordered updates for one tracked job. Emissions are
// sequential: a terminal or tracking-lost emission is always the last one.
type StatusObserver interface {
	// OnProgress delivers a non-terminal status snapshot.
	OnProgress(ctx context.Context, status parsing.JobStatus)

	// OnTerminal delivers the terminal status snapshot that ends tracking.
	OnTerminal(ctx context.Context, status parsing.JobStatus)

	// OnTrackingLost reports that a poll failed and tracking stopped. The
	// job may still be running server-side; its true outcome is unknown.
	OnTrackingLost(ctx context.Context, err error)
}

// JobTracker begins tracking a collection's active job and returns a cancel
// function that stops tracking immediately.
type JobTracker interface {
	Track(ctx context.Context, collection parsing.Collection, obs StatusObserver) (cancel func())
}

const defaultPollInterval = time.Second

// StatusPoller tracks the progress of remote parse jobs by querying job
// status on a fixed period until a terminal status arrives or a poll fails.
// A failed poll is fatal to tracking; the poller never retries it.
type StatusPoller struct {
	fetcher  parsing.StatusFetcher
	interval time.Duration
	metrics  ParsingMetrics

	logger *logger.Logger
	tracer trace.Tracer
}

var _ JobTracker = (*StatusPoller)(nil)

// NewStatusPoller creates a poller that queries status on the given interval.
// A non-positive interval falls back to the one-second default.
func NewStatusPoller(
	fetcher parsing.StatusFetcher,
	interval time.Duration,
	metrics ParsingMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *StatusPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger = logger.With("component", "status_poller")
	return &StatusPoller{
		fetcher:  fetcher,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		tracer:   tracer,
	}
}

// Track starts polling the collection's active job. Observer emissions stop
// when a terminal status is observed, when a poll fails, or when the
// returned cancel function is called. The cancel function is idempotent and
// suppresses any in-flight response from producing further emissions.
func (p *StatusPoller) Track(ctx context.Context, collection parsing.Collection, obs StatusObserver) func() {
	_, span := p.tracer.Start(ctx, "status_poller.track",
		trace.WithAttributes(
			attribute.String("collection", collection.String()),
			attribute.String("interval", p.interval.String()),
		),
	)
	defer span.End()

	t := &tracking{obs: obs}
	ctx, cancelCtx := context.WithCancel(ctx)

	go p.loop(ctx, collection, t)

	span.AddEvent("tracking_started")
	return func() {
		t.stop()
		cancelCtx()
	}
}

func (p *StatusPoller) loop(ctx context.Context, collection parsing.Collection, t *tracking) {
	logger := p.logger.With("collection", collection)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.metrics.IncPollsIssued(ctx, collection)
			status, err := p.fetcher.JobStatus(ctx, collection)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if t.begin(true) {
					logger.Warn(ctx, "status poll failed, tracking lost", "error", err)
					t.obs.OnTrackingLost(ctx, err)
				}
				return
			}

			if status.IsTerminal() {
				if t.begin(true) {
					logger.Info(ctx, "job reached terminal status", "message", status.Message)
					t.obs.OnTerminal(ctx, status)
				}
				return
			}

			if !t.begin(false) {
				return
			}
			t.obs.OnProgress(ctx, status)
		}
	}
}

// tracking guards observer emissions for a single tracked job. Once done, no
// further emission begins, which makes cancel-after-terminal a no-op and
// suppresses responses that were in flight when cancel was called.
type tracking struct {
	mu   sync.Mutex
	done bool
	obs  StatusObserver
}

// begin reports whether an emission may proceed, marking the tracking done
// when the emission is terminal.
func (t *tracking) begin(terminal bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	if terminal {
		t.done = true
	}
	return true
}

func (t *tracking) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
}
