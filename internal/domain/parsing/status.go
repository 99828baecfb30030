package parsing

import "strings"

// ParsePhase describes which stage of a parse the remote service reports.
// Phases are informational; the client enforces no transition rules on them.
type ParsePhase string

const (
	PhaseInitializing ParsePhase = "INITIALIZING"
	PhaseFetching     ParsePhase = "FETCHING"
	PhaseScanning     ParsePhase = "SCANNING"
	PhaseFinalizing   ParsePhase = "FINALIZING"
)

func (p ParsePhase) String() string { return string(p) }

// ParsePhaseFromString converts a service-reported phase string to a
// ParsePhase. Unknown phases pass through verbatim since they carry no
// behavioral weight.
func ParsePhaseFromString(s string) ParsePhase {
	switch strings.ToUpper(s) {
	case "INITIALIZING":
		return PhaseInitializing
	case "FETCHING":
		return PhaseFetching
	case "SCANNING":
		return PhaseScanning
	case "FINALIZING":
		return PhaseFinalizing
	default:
		return ParsePhase(s)
	}
}

// Explicit terminal states the parsing service may report alongside a status
// snapshot. Servers that predate the state field report an empty string and
// signal cancellation through a marker in the status message instead.
const (
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// cancellationMarker is the legacy substring older servers embed in the
// status message when a job was cancelled by the user. Prefer the explicit
// State field whenever the server provides one.
const cancellationMarker = "cancelled by user"

// failureMarker is the legacy substring older servers embed in the status
// message when the job itself failed.
const failureMarker = "failed"

// JobStatus is a point-in-time snapshot of a remote parse operation as
// reported by the parsing service.
type JobStatus struct {
	// Running reports whether the job is still executing server-side. A
	// status with Running false is terminal; no further polling occurs.
	Running bool

	// Progress is the percent complete, 0-100, non-decreasing while running.
	Progress int

	// Phase is the stage the service reports for this snapshot.
	Phase ParsePhase

	// Message is human-readable status text supplied by the service.
	Message string

	// State is the explicit terminal state when the server provides one
	// (completed, failed, cancelled). Empty on older servers and while the
	// job is running.
	State string

	// Current and Total are progress counters, present only once known.
	Current *int
	Total   *int
}

// IsTerminal reports whether this snapshot ends the job's lifecycle.
func (s JobStatus) IsTerminal() bool { return !s.Running }

// IsCancelled reports whether a terminal snapshot represents a job that was
// cancelled rather than one that ran to completion or failed. The explicit
// State field wins when present; the message marker is a fallback for older
// servers.
func (s JobStatus) IsCancelled() bool {
	if !s.IsTerminal() {
		return false
	}
	if s.State != "" {
		return s.State == StateCancelled
	}
	return strings.Contains(strings.ToLower(s.Message), cancellationMarker)
}

// IsSuccess reports whether a terminal snapshot represents a successful
// completion.
func (s JobStatus) IsSuccess() bool {
	if !s.IsTerminal() || s.IsCancelled() {
		return false
	}
	if s.State != "" {
		return s.State == StateCompleted
	}
	return !strings.Contains(strings.ToLower(s.Message), failureMarker)
}
