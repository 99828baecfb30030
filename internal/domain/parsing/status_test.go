package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusIsCancelled(t *testing.T) {
	tests := []struct {
		name   string
		status JobStatus
		want   bool
	}{
		{
			name:   "running status is never cancelled",
			status: JobStatus{Running: true, Message: "cancelled by user"},
			want:   false,
		},
		{
			name:   "explicit cancelled state",
			status: JobStatus{Running: false, State: StateCancelled},
			want:   true,
		},
		{
			name:   "explicit state wins over message marker",
			status: JobStatus{Running: false, State: StateCompleted, Message: "cancelled by user"},
			want:   false,
		},
		{
			name:   "legacy message marker",
			status: JobStatus{Running: false, Message: "Parse was Cancelled By User"},
			want:   true,
		},
		{
			name:   "legacy completion message",
			status: JobStatus{Running: false, Message: "parsed 120 members"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsCancelled())
		})
	}
}

func TestJobStatusIsSuccess(t *testing.T) {
	tests := []struct {
		name   string
		status JobStatus
		want   bool
	}{
		{
			name:   "running status is not a success",
			status: JobStatus{Running: true, State: StateCompleted},
			want:   false,
		},
		{
			name:   "explicit completed state",
			status: JobStatus{Running: false, State: StateCompleted},
			want:   true,
		},
		{
			name:   "explicit failed state",
			status: JobStatus{Running: false, State: StateFailed},
			want:   false,
		},
		{
			name:   "cancelled is not a success",
			status: JobStatus{Running: false, State: StateCancelled},
			want:   false,
		},
		{
			name:   "legacy success message",
			status: JobStatus{Running: false, Message: "Group parsed successfully"},
			want:   true,
		},
		{
			name:   "legacy failure message",
			status: JobStatus{Running: false, Message: "Failed to parse group: rate limit exceeded"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsSuccess())
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatus{Running: true}.IsTerminal())
	assert.True(t, JobStatus{Running: false}.IsTerminal())
}
