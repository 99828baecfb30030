package parsing

import (
	"time"

	"github.com/google/uuid"

	"github.com/telescan/telescan/internal/domain/events"
)

// Event types relevant to parse jobs:
const (
	EventTypeJobProgressed events.EventType = "JobProgressed"
	EventTypeJobSucceeded  events.EventType = "JobSucceeded"
	EventTypeJobFailed     events.EventType = "JobFailed"
	EventTypeJobCancelled  events.EventType = "JobCancelled"
	EventTypeItemEvicted   events.EventType = "ItemEvicted"
)

// JobProgressedEvent is emitted for every non-terminal status snapshot the
// poller observes, in the order polled.
type JobProgressedEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID
	Collection Collection
	Status     JobStatus
}

// NewJobProgressedEvent creates a new job progressed event.
func NewJobProgressedEvent(jobID uuid.UUID, collection Collection, status JobStatus) JobProgressedEvent {
	return JobProgressedEvent{
		occurredAt: time.Now(),
		JobID:      jobID,
		Collection: collection,
		Status:     status,
	}
}

func (e JobProgressedEvent) EventType() events.EventType { return EventTypeJobProgressed }
func (e JobProgressedEvent) OccurredAt() time.Time       { return e.occurredAt }

// JobSucceededEvent signals that a job reached a successful terminal status.
// The page cache for the collection is invalidated before this event is
// published, so subscribers reading pages will see the new results.
type JobSucceededEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID
	Collection Collection
	Status     JobStatus
}

// NewJobSucceededEvent creates a new job succeeded event.
func NewJobSucceededEvent(jobID uuid.UUID, collection Collection, status JobStatus) JobSucceededEvent {
	return JobSucceededEvent{
		occurredAt: time.Now(),
		JobID:      jobID,
		Collection: collection,
		Status:     status,
	}
}

func (e JobSucceededEvent) EventType() events.EventType { return EventTypeJobSucceeded }
func (e JobSucceededEvent) OccurredAt() time.Time       { return e.occurredAt }

// JobFailedEvent signals a job concluded in failure. Kind distinguishes a
// service-reported failure from a rejected start and from lost progress
// tracking, where the job's true outcome is unknown.
type JobFailedEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID
	Collection Collection
	Kind       FailureKind
	Reason     string
}

// NewJobFailedEvent creates a new job failed event.
func NewJobFailedEvent(jobID uuid.UUID, collection Collection, kind FailureKind, reason string) JobFailedEvent {
	return JobFailedEvent{
		occurredAt: time.Now(),
		JobID:      jobID,
		Collection: collection,
		Kind:       kind,
		Reason:     reason,
	}
}

func (e JobFailedEvent) EventType() events.EventType { return EventTypeJobFailed }
func (e JobFailedEvent) OccurredAt() time.Time       { return e.occurredAt }

// JobCancelledEvent signals the service confirmed a cancellation.
type JobCancelledEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID
	Collection Collection
	Status     JobStatus
}

// NewJobCancelledEvent creates a new job cancelled event.
func NewJobCancelledEvent(jobID uuid.UUID, collection Collection, status JobStatus) JobCancelledEvent {
	return JobCancelledEvent{
		occurredAt: time.Now(),
		JobID:      jobID,
		Collection: collection,
		Status:     status,
	}
}

func (e JobCancelledEvent) EventType() events.EventType { return EventTypeJobCancelled }
func (e JobCancelledEvent) OccurredAt() time.Time       { return e.occurredAt }

// ItemEvictedEvent signals the capacity enforcer deleted the oldest result
// to make room for a new parse.
type ItemEvictedEvent struct {
	occurredAt time.Time
	Collection Collection
	Item       ResultItem
}

// NewItemEvictedEvent creates a new item evicted event.
func NewItemEvictedEvent(collection Collection, item ResultItem) ItemEvictedEvent {
	return ItemEvictedEvent{
		occurredAt: time.Now(),
		Collection: collection,
		Item:       item,
	}
}

func (e ItemEvictedEvent) EventType() events.EventType { return EventTypeItemEvicted }
func (e ItemEvictedEvent) OccurredAt() time.Time       { return e.occurredAt }
