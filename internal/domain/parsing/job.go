package parsing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ParseJob is the client-side handle for the one parse operation in flight
// for a collection. It owns the lifecycle state machine and the timeline of
// the job; at most one ParseJob may be non-terminal per collection at any
// time, which the controller enforces.
type ParseJob struct {
	id         uuid.UUID
	collection Collection
	locator    string
	state      JobState
	timeline   *Timeline
}

// NewParseJob creates a job in the Starting state, representing a start
// request that is about to be issued to the parsing service.
func NewParseJob(id uuid.UUID, collection Collection, locator string) *ParseJob {
	return &ParseJob{
		id:         id,
		collection: collection,
		locator:    locator,
		state:      JobStateStarting,
		timeline:   NewTimeline(new(realTimeProvider)),
	}
}

// ID returns the unique identifier for this parse job.
func (j *ParseJob) ID() uuid.UUID { return j.id }

// Collection returns the collection this job parses into.
func (j *ParseJob) Collection() Collection { return j.collection }

// Locator returns the resource locator the job was started with.
func (j *ParseJob) Locator() string { return j.locator }

// State returns the current lifecycle state of the job.
func (j *ParseJob) State() JobState { return j.state }

// StartTime returns when this job's start was issued.
func (j *ParseJob) StartTime() time.Time { return j.timeline.StartedAt() }

// EndTime returns when this job concluded. A job only has an end time in a
// terminal state.
func (j *ParseJob) EndTime() (time.Time, bool) {
	if j.state.IsTerminal() {
		return j.timeline.CompletedAt(), true
	}
	return time.Time{}, false
}

// MarkRunning transitions the job to Running after the service accepted the
// start request.
func (j *ParseJob) MarkRunning() error {
	return j.updateState(JobStateRunning)
}

// RequestCancel transitions the job to Cancelling. The job remains tracked
// until the service confirms a terminal status; the client never fabricates
// a Cancelled state on its own.
func (j *ParseJob) RequestCancel() error {
	return j.updateState(JobStateCancelling)
}

// Complete moves the job to its terminal state derived from a terminal
// status snapshot.
func (j *ParseJob) Complete(status JobStatus) (JobState, error) {
	if !status.IsTerminal() {
		return j.state, fmt.Errorf("cannot complete job %s from non-terminal status", j.id)
	}

	target := JobStateFailed
	switch {
	case status.IsCancelled():
		target = JobStateCancelled
	case status.IsSuccess():
		target = JobStateSucceeded
	}

	if err := j.updateState(target); err != nil {
		return j.state, err
	}
	j.timeline.MarkCompleted()
	return target, nil
}

// Fail moves the job to Failed. Used when the start is rejected or when
// progress tracking is lost and the true outcome is unknown.
func (j *ParseJob) Fail() error {
	if err := j.updateState(JobStateFailed); err != nil {
		return err
	}
	j.timeline.MarkCompleted()
	return nil
}

func (j *ParseJob) updateState(target JobState) error {
	if err := j.state.ValidateTransition(target); err != nil {
		return err
	}
	j.state = target
	j.timeline.Touch()
	return nil
}
