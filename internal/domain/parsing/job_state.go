package parsing

import "fmt"

// JobState represents the client-side lifecycle state of a parse job. It
// enables tracking of the job from start acceptance through completion,
// failure, or cancellation.
type JobState string

const (
	// JobStateIdle indicates no job exists for the collection.
	JobStateIdle JobState = "IDLE"

	// JobStateStarting indicates the start request is in flight.
	JobStateStarting JobState = "STARTING"

	// JobStateRunning indicates the remote service accepted the job and the
	// poller is tracking its progress.
	JobStateRunning JobState = "RUNNING"

	// JobStateCancelling indicates the client requested cancellation and is
	// waiting for the service to confirm a terminal status.
	JobStateCancelling JobState = "CANCELLING"

	// JobStateSucceeded indicates the job finished successfully.
	JobStateSucceeded JobState = "SUCCEEDED"

	// JobStateFailed indicates the job failed, or its progress tracking was
	// lost and the true outcome is unknown to the client.
	JobStateFailed JobState = "FAILED"

	// JobStateCancelled indicates the service confirmed the cancellation.
	JobStateCancelled JobState = "CANCELLED"
)

func (s JobState) String() string { return string(s) }

// IsTerminal reports whether this state concludes the job's lifecycle.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateCancelled
}

// ValidateTransition checks if a state transition is valid and returns an
// error if not.
func (s JobState) ValidateTransition(target JobState) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("invalid job state transition from %s to %s", s, target)
	}
	return nil
}

// isValidTransition enforces the job lifecycle rules to prevent invalid
// state changes.
func (s JobState) isValidTransition(target JobState) bool {
	switch s {
	case JobStateIdle:
		return target == JobStateStarting
	case JobStateStarting:
		// The start call is either accepted or rejected by the service.
		return target == JobStateRunning || target == JobStateFailed
	case JobStateRunning:
		// The service decides the outcome; a cancellation-flavored terminal
		// status can arrive without a client cancel (admin cancel).
		return target == JobStateCancelling ||
			target == JobStateSucceeded ||
			target == JobStateFailed ||
			target == JobStateCancelled
	case JobStateCancelling:
		// Cancellation is cooperative; the job may still finish or fail
		// before the service honors the cancel.
		return target == JobStateSucceeded ||
			target == JobStateFailed ||
			target == JobStateCancelled
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return false
	default:
		return false
	}
}
