package parsing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/telescan/telescan/internal/domain/events"
	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
)

// parseGateway is the slice of the gateway the controller itself uses.
type parseGateway interface {
	StartParse(ctx context.Context, collection parsing.Collection, locator string, opts parsing.StartOptions) (parsing.StartAck, error)
	CancelParse(ctx context.Context, collection parsing.Collection) error
}

// capacityEnforcer runs the best-effort eviction precondition before a start.
type capacityEnforcer interface {
	EnsureCapacity(ctx context.Context, collection parsing.Collection)
}

// activeJob pairs the in-flight job with the resource that tracks it. The
// stop function is released on every exit path so no poll timer outlives its
// job.
type activeJob struct {
	job  *parsing.ParseJob
	stop func()
}

// JobController owns the lifecycle of at most one outstanding parse job per
// collection: it issues the start call, drives the status poller, handles
// cancellation requests, and translates terminal statuses into outcome
// events. Terminal handling synchronously returns the collection to Idle, so
// a start issued right after an outcome event always finds no active job.
type JobController struct {
	gateway     parseGateway
	capacity    capacityEnforcer
	tracker     JobTracker
	publisher   events.DomainEventPublisher
	invalidator parsing.ResultInvalidator
	metrics     ParsingMetrics

	logger *logger.Logger
	tracer trace.Tracer

	mu     sync.Mutex
	active map[parsing.Collection]*activeJob
}

// NewJobController returns a controller wired to the given collaborators.
func NewJobController(
	gateway parseGateway,
	capacity capacityEnforcer,
	tracker JobTracker,
	publisher events.DomainEventPublisher,
	invalidator parsing.ResultInvalidator,
	metrics ParsingMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *JobController {
	logger = logger.With("component", "job_controller")
	return &JobController{
		gateway:     gateway,
		capacity:    capacity,
		tracker:     tracker,
		publisher:   publisher,
		invalidator: invalidator,
		metrics:     metrics,
		logger:      logger,
		tracer:      tracer,
		active:      make(map[parsing.Collection]*activeJob),
	}
}

// State returns the lifecycle state of the collection's job, or Idle when no
// job is in flight.
func (c *JobController) State(collection parsing.Collection) parsing.JobState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aj, ok := c.active[collection]; ok {
		return aj.job.State()
	}
	return parsing.JobStateIdle
}

// Start validates the resource locator, enforces capacity, and asks the
// parsing service to begin a job for the collection. On acceptance it hands
// the job to the status poller and returns the new job's ID. A start while
// another job is in flight returns ErrJobInProgress without touching the
// remote service.
func (c *JobController) Start(
	ctx context.Context,
	collection parsing.Collection,
	locator string,
	opts parsing.StartOptions,
) (uuid.UUID, error) {
	logger := c.logger.With("operation", "start", "collection", collection)
	ctx, span := c.tracer.Start(ctx, "job_controller.start",
		trace.WithAttributes(attribute.String("collection", collection.String())),
	)
	defer span.End()

	locator = strings.TrimSpace(locator)
	if locator == "" {
		span.SetStatus(codes.Error, "empty resource locator")
		return uuid.Nil, fmt.Errorf("%w: resource locator must not be empty", parsing.ErrValidation)
	}

	job := parsing.NewParseJob(uuid.New(), collection, locator)

	c.mu.Lock()
	if _, exists := c.active[collection]; exists {
		c.mu.Unlock()
		span.AddEvent("start_rejected_job_in_progress")
		span.SetStatus(codes.Error, "job already in progress")
		return uuid.Nil, parsing.ErrJobInProgress
	}
	c.active[collection] = &activeJob{job: job}
	c.mu.Unlock()

	logger = logger.With("job_id", job.ID())
	span.SetAttributes(attribute.String("job_id", job.ID().String()))

	// Best-effort eviction precondition; never blocks the start.
	c.capacity.EnsureCapacity(ctx, collection)

	ack, err := c.gateway.StartParse(ctx, collection, locator, opts)
	if err != nil {
		c.abortStart(ctx, collection, job)
		span.RecordError(err)
		span.SetStatus(codes.Error, "start call failed")
		c.publishFailed(ctx, job, parsing.FailureRemoteRejected, err.Error())
		return uuid.Nil, fmt.Errorf("failed to start parse job: %w", err)
	}
	if !ack.Accepted {
		c.abortStart(ctx, collection, job)
		span.AddEvent("start_rejected_by_service")
		span.SetStatus(codes.Error, "start rejected by service")
		c.publishFailed(ctx, job, parsing.FailureRemoteRejected, ack.Message)
		return uuid.Nil, &parsing.RemoteRejectedError{Message: ack.Message}
	}

	c.mu.Lock()
	if err := job.MarkRunning(); err != nil {
		c.mu.Unlock()
		c.abortStart(ctx, collection, job)
		return uuid.Nil, fmt.Errorf("failed to mark job running: %w", err)
	}
	// The poller's lifetime is the job's, not the start request's.
	stop := c.tracker.Track(context.WithoutCancel(ctx), collection, &jobObserver{controller: c, collection: collection})
	c.active[collection].stop = stop
	c.mu.Unlock()

	c.metrics.IncJobsStarted(ctx, collection)
	logger.Info(ctx, "parse job started", "job_ref", ack.JobRef)
	span.AddEvent("job_started")
	span.SetStatus(codes.Ok, "job started")

	return job.ID(), nil
}

// Cancel requests cancellation of the collection's running job. Cancellation
// is cooperative: the controller moves the job to Cancelling and keeps the
// poller running until the service confirms a terminal status. Cancelling a
// job that has already concluded, or cancelling twice, is a no-op.
func (c *JobController) Cancel(ctx context.Context, collection parsing.Collection) error {
	logger := c.logger.With("operation", "cancel", "collection", collection)
	ctx, span := c.tracer.Start(ctx, "job_controller.cancel",
		trace.WithAttributes(attribute.String("collection", collection.String())),
	)
	defer span.End()

	c.mu.Lock()
	aj, ok := c.active[collection]
	if !ok {
		c.mu.Unlock()
		span.AddEvent("cancel_noop_no_active_job")
		span.SetStatus(codes.Ok, "no active job")
		return nil
	}
	state := aj.job.State()
	if state != parsing.JobStateRunning {
		c.mu.Unlock()
		// Already cancelling, or still starting; either way there is
		// nothing further to request.
		span.AddEvent("cancel_noop", trace.WithAttributes(attribute.String("state", state.String())))
		span.SetStatus(codes.Ok, "cancel is a no-op")
		return nil
	}
	if err := aj.job.RequestCancel(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	c.mu.Unlock()

	if err := c.gateway.CancelParse(ctx, collection); err != nil {
		// The job stays Cancelling; the poller keeps watching, so a
		// terminal status still resolves the job either way.
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel call failed")
		logger.Warn(ctx, "cancel request failed, still tracking job", "error", err)
		return fmt.Errorf("failed to cancel parse job: %w", err)
	}

	logger.Info(ctx, "cancellation requested")
	span.AddEvent("cancellation_requested")
	span.SetStatus(codes.Ok, "cancellation requested")
	return nil
}

// abortStart discards a job whose start never got it to Running.
func (c *JobController) abortStart(ctx context.Context, collection parsing.Collection, job *parsing.ParseJob) {
	c.mu.Lock()
	delete(c.active, collection)
	c.mu.Unlock()

	if err := job.Fail(); err != nil {
		c.logger.Error(ctx, "failed to mark aborted job failed", "job_id", job.ID(), "error", err)
	}
}

func (c *JobController) publishFailed(ctx context.Context, job *parsing.ParseJob, kind parsing.FailureKind, reason string) {
	c.metrics.IncJobsFailed(ctx, job.Collection())
	evt := parsing.NewJobFailedEvent(job.ID(), job.Collection(), kind, reason)
	if err := c.publisher.PublishDomainEvent(ctx, evt, events.WithKey(job.Collection().String())); err != nil {
		c.logger.Error(ctx, "failed to publish job failed event", "job_id", job.ID(), "error", err)
	}
}

// jobObserver adapts poller emissions into controller transitions. Each
// observer belongs to exactly one tracked job.
type jobObserver struct {
	controller *JobController
	collection parsing.Collection
}

var _ StatusObserver = (*jobObserver)(nil)

func (o *jobObserver) OnProgress(ctx context.Context, status parsing.JobStatus) {
	o.controller.handleProgress(ctx, o.collection, status)
}

func (o *jobObserver) OnTerminal(ctx context.Context, status parsing.JobStatus) {
	o.controller.handleTerminal(ctx, o.collection, status)
}

func (o *jobObserver) OnTrackingLost(ctx context.Context, err error) {
	o.controller.handleTrackingLost(ctx, o.collection, err)
}

func (c *JobController) handleProgress(ctx context.Context, collection parsing.Collection, status parsing.JobStatus) {
	c.mu.Lock()
	aj, ok := c.active[collection]
	if !ok {
		c.mu.Unlock()
		return
	}
	jobID := aj.job.ID()
	c.mu.Unlock()

	evt := parsing.NewJobProgressedEvent(jobID, collection, status)
	if err := c.publisher.PublishDomainEvent(ctx, evt, events.WithKey(collection.String())); err != nil {
		c.logger.Error(ctx, "failed to publish job progressed event", "job_id", jobID, "error", err)
	}
}

func (c *JobController) handleTerminal(ctx context.Context, collection parsing.Collection, status parsing.JobStatus) {
	aj, ok := c.conclude(collection)
	if !ok {
		return
	}

	job := aj.job
	logger := c.logger.With("operation", "handle_terminal", "collection", collection, "job_id", job.ID())

	final, err := job.Complete(status)
	if err != nil {
		logger.Error(ctx, "failed to conclude job from terminal status", "error", err)
		return
	}

	var evt events.DomainEvent
	switch final {
	case parsing.JobStateSucceeded:
		// Invalidate before announcing success so subscribers reading
		// pages see the newly parsed results.
		c.invalidator.Invalidate(ctx, collection)
		c.metrics.IncJobsSucceeded(ctx, collection)
		evt = parsing.NewJobSucceededEvent(job.ID(), collection, status)
	case parsing.JobStateCancelled:
		c.metrics.IncJobsCancelled(ctx, collection)
		evt = parsing.NewJobCancelledEvent(job.ID(), collection, status)
	default:
		c.metrics.IncJobsFailed(ctx, collection)
		evt = parsing.NewJobFailedEvent(job.ID(), collection, parsing.FailureJobFailed, status.Message)
	}

	logger.Info(ctx, "parse job concluded", "final_state", final)
	if err := c.publisher.PublishDomainEvent(ctx, evt, events.WithKey(collection.String())); err != nil {
		logger.Error(ctx, "failed to publish job outcome event", "error", err)
	}
}

func (c *JobController) handleTrackingLost(ctx context.Context, collection parsing.Collection, cause error) {
	aj, ok := c.conclude(collection)
	if !ok {
		return
	}

	job := aj.job
	logger := c.logger.With("operation", "handle_tracking_lost", "collection", collection, "job_id", job.ID())

	if err := job.Fail(); err != nil {
		logger.Error(ctx, "failed to mark job failed after tracking loss", "error", err)
	}

	c.metrics.IncTrackingLost(ctx, collection)
	c.metrics.IncJobsFailed(ctx, collection)
	logger.Warn(ctx, "progress tracking lost, job outcome unknown", "error", cause)

	evt := parsing.NewJobFailedEvent(job.ID(), collection, parsing.FailureTrackingLost, cause.Error())
	if err := c.publisher.PublishDomainEvent(ctx, evt, events.WithKey(collection.String())); err != nil {
		logger.Error(ctx, "failed to publish job failed event", "error", err)
	}
}

// conclude removes the collection's active job and releases its tracking
// resource. The removal is synchronous with terminal handling, so callers
// observing an outcome event are guaranteed a subsequent Start finds Idle.
func (c *JobController) conclude(collection parsing.Collection) (*activeJob, bool) {
	c.mu.Lock()
	aj, ok := c.active[collection]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	delete(c.active, collection)
	c.mu.Unlock()

	if aj.stop != nil {
		aj.stop()
	}
	return aj, true
}
