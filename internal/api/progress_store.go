package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telescan/telescan/internal/domain/events"
	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
)

// SnapshotKind labels the most recent thing that happened to a collection's
// job, as exposed by the progress endpoint.
type SnapshotKind string

const (
	SnapshotProgress  SnapshotKind = "progress"
	SnapshotSucceeded SnapshotKind = "succeeded"
	SnapshotFailed    SnapshotKind = "failed"
	SnapshotCancelled SnapshotKind = "cancelled"
)

// Snapshot is the latest observed job event for one collection.
type Snapshot struct {
	Kind        SnapshotKind        `json:"kind"`
	JobID       uuid.UUID           `json:"job_id"`
	Progress    int                 `json:"progress"`
	Phase       parsing.ParsePhase  `json:"phase,omitempty"`
	Message     string              `json:"message,omitempty"`
	Current     *int                `json:"current,omitempty"`
	Total       *int                `json:"total,omitempty"`
	FailureKind parsing.FailureKind `json:"failure_kind,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ProgressStore retains the most recent job event per collection so the
// progress endpoint can answer without waiting for the next poll.
type ProgressStore struct {
	logger *logger.Logger

	mu     sync.RWMutex
	latest map[parsing.Collection]Snapshot
}

// NewProgressStore creates an empty store.
func NewProgressStore(logger *logger.Logger) *ProgressStore {
	return &ProgressStore{
		logger: logger.With("component", "progress_store"),
		latest: make(map[parsing.Collection]Snapshot),
	}
}

// Register subscribes the store to every job lifecycle event on the bus.
func (s *ProgressStore) Register(ctx context.Context, bus events.EventBus) error {
	return bus.Subscribe(ctx, []events.EventType{
		parsing.EventTypeJobProgressed,
		parsing.EventTypeJobSucceeded,
		parsing.EventTypeJobFailed,
		parsing.EventTypeJobCancelled,
	}, s.handleEvent)
}

// Latest returns the newest snapshot for the collection, if any event has
// been observed since startup.
func (s *ProgressStore) Latest(collection parsing.Collection) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[collection]
	return snap, ok
}

func (s *ProgressStore) handleEvent(ctx context.Context, evt events.DomainEvent) error {
	switch e := evt.(type) {
	case parsing.JobProgressedEvent:
		s.store(e.Collection, Snapshot{
			Kind:      SnapshotProgress,
			JobID:     e.JobID,
			Progress:  e.Status.Progress,
			Phase:     e.Status.Phase,
			Message:   e.Status.Message,
			Current:   e.Status.Current,
			Total:     e.Status.Total,
			UpdatedAt: e.OccurredAt(),
		})
	case parsing.JobSucceededEvent:
		s.store(e.Collection, Snapshot{
			Kind:      SnapshotSucceeded,
			JobID:     e.JobID,
			Progress:  e.Status.Progress,
			Message:   e.Status.Message,
			UpdatedAt: e.OccurredAt(),
		})
	case parsing.JobCancelledEvent:
		s.store(e.Collection, Snapshot{
			Kind:      SnapshotCancelled,
			JobID:     e.JobID,
			Progress:  e.Status.Progress,
			Message:   e.Status.Message,
			UpdatedAt: e.OccurredAt(),
		})
	case parsing.JobFailedEvent:
		s.store(e.Collection, Snapshot{
			Kind:        SnapshotFailed,
			JobID:       e.JobID,
			FailureKind: e.Kind,
			Reason:      e.Reason,
			UpdatedAt:   e.OccurredAt(),
		})
	default:
		s.logger.Debug(ctx, "ignoring unexpected event type", "event_type", evt.EventType())
	}
	return nil
}

func (s *ProgressStore) store(collection parsing.Collection, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[collection] = snap
}
