package parsing

import "time"

// TimeProvider abstracts the clock so job and cache timing can be
// controlled in tests.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (r *realTimeProvider) Now() time.Time { return time.Now() }

// NewRealTimeProvider returns a TimeProvider backed by the system clock.
func NewRealTimeProvider() TimeProvider { return &realTimeProvider{} }

// Timeline records when a parse job started, last made progress, and
// reached a terminal state.
type Timeline struct {
	startedAt    time.Time
	completedAt  time.Time
	lastUpdate   time.Time
	timeProvider TimeProvider
}

// NewTimeline starts a timeline at the provider's current time.
func NewTimeline(timeProvider TimeProvider) *Timeline {
	now := timeProvider.Now()
	return &Timeline{
		startedAt:    now,
		lastUpdate:   now,
		timeProvider: timeProvider,
	}
}

// StartedAt returns when the job was accepted.
func (t *Timeline) StartedAt() time.Time { return t.startedAt }

// CompletedAt returns when the job reached a terminal state. It is the
// zero time while the job is still active.
func (t *Timeline) CompletedAt() time.Time { return t.completedAt }

// LastUpdate returns the most recent activity timestamp.
func (t *Timeline) LastUpdate() time.Time { return t.lastUpdate }

// MarkCompleted stamps the terminal time.
func (t *Timeline) MarkCompleted() {
	t.completedAt = t.timeProvider.Now()
	t.Touch()
}

// Touch refreshes the last activity timestamp.
func (t *Timeline) Touch() { t.lastUpdate = t.timeProvider.Now() }

// IsCompleted reports whether a terminal time has been recorded.
func (t *Timeline) IsCompleted() bool { return !t.completedAt.IsZero() }
