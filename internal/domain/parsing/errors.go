package parsing

import (
	"errors"
	"fmt"
)

// Errors returned by the job controller and gateway. These map one-to-one
// onto the outcomes the presentation layer distinguishes.
var (
	// ErrValidation indicates the start input was rejected locally before
	// any remote call was made.
	ErrValidation = errors.New("invalid parse input")

	// ErrJobInProgress indicates a start was attempted while another job
	// for the same collection is still in flight.
	ErrJobInProgress = errors.New("parse job already in progress")

	// ErrMalformedStatus indicates a status response from the service was
	// missing the running flag. Treated the same as a transport failure:
	// fatal to progress tracking.
	ErrMalformedStatus = errors.New("malformed job status response")
)

// RemoteRejectedError indicates the parsing service declined a start or
// cancel request (quota exhausted, subscription expired, ...). The service's
// message is surfaced verbatim.
type RemoteRejectedError struct {
	Message string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("parsing service rejected request: %s", e.Message)
}

// FailureKind distinguishes the reasons a job ends up Failed so the
// presentation layer can avoid implying the job itself failed when only the
// client's tracking of it was lost.
type FailureKind string

const (
	// FailureRemoteRejected means the start call was declined; the job
	// never reached Running.
	FailureRemoteRejected FailureKind = "remote_rejected"

	// FailureJobFailed means the service reported the job itself failed.
	FailureJobFailed FailureKind = "job_failed"

	// FailureTrackingLost means a poll failed and the client stopped
	// watching; the job's true outcome is unknown.
	FailureTrackingLost FailureKind = "tracking_lost"
)
