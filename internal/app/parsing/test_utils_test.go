package parsing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/telescan/telescan/internal/domain/events"
	"github.com/telescan/telescan/internal/domain/parsing"
)

type mockGateway struct{ mock.Mock }

func (m *mockGateway) StartParse(ctx context.Context, collection parsing.Collection, locator string, opts parsing.StartOptions) (parsing.StartAck, error) {
	args := m.Called(ctx, collection, locator, opts)
	return args.Get(0).(parsing.StartAck), args.Error(1)
}

func (m *mockGateway) CancelParse(ctx context.Context, collection parsing.Collection) error {
	args := m.Called(ctx, collection)
	return args.Error(0)
}

type mockStatusFetcher struct{ mock.Mock }

func (m *mockStatusFetcher) JobStatus(ctx context.Context, collection parsing.Collection) (parsing.JobStatus, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).(parsing.JobStatus), args.Error(1)
}

type mockInventory struct{ mock.Mock }

func (m *mockInventory) ListAll(ctx context.Context, collection parsing.Collection) ([]parsing.ResultItem, error) {
	args := m.Called(ctx, collection)
	if items := args.Get(0); items != nil {
		return items.([]parsing.ResultItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInventory) DeleteItem(ctx context.Context, collection parsing.Collection, id int64) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockInvalidator struct{ mock.Mock }

func (m *mockInvalidator) Invalidate(ctx context.Context, collection parsing.Collection) {
	m.Called(ctx, collection)
}

// mockTracker hands the observer back to the test so it can drive poller
// emissions by hand.
type mockTracker struct {
	mock.Mock
	observer StatusObserver
	stopped  int
}

func (m *mockTracker) Track(ctx context.Context, collection parsing.Collection, obs StatusObserver) func() {
	m.Called(ctx, collection)
	m.observer = obs
	return func() { m.stopped++ }
}

// noopMetrics satisfies ParsingMetrics for tests that do not assert on
// counters.
type noopMetrics struct{}

func (noopMetrics) IncJobsStarted(context.Context, parsing.Collection)      {}
func (noopMetrics) IncJobsSucceeded(context.Context, parsing.Collection)    {}
func (noopMetrics) IncJobsFailed(context.Context, parsing.Collection)       {}
func (noopMetrics) IncJobsCancelled(context.Context, parsing.Collection)    {}
func (noopMetrics) IncTrackingLost(context.Context, parsing.Collection)     {}
func (noopMetrics) IncPollsIssued(context.Context, parsing.Collection)      {}
func (noopMetrics) IncEvictions(context.Context, parsing.Collection)        {}
func (noopMetrics) IncEvictionFailures(context.Context, parsing.Collection) {}

type noopCapacity struct{}

func (noopCapacity) EnsureCapacity(context.Context, parsing.Collection) {}
