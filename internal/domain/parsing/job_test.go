package parsing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobLifecycle(t *testing.T) {
	job := NewParseJob(uuid.New(), CollectionGroups, "t.me/testgroup")
	require.Equal(t, JobStateStarting, job.State())

	_, ok := job.EndTime()
	assert.False(t, ok, "non-terminal job should have no end time")

	require.NoError(t, job.MarkRunning())
	require.Equal(t, JobStateRunning, job.State())

	require.NoError(t, job.RequestCancel())
	require.Equal(t, JobStateCancelling, job.State())

	final, err := job.Complete(JobStatus{Running: false, State: StateCancelled})
	require.NoError(t, err)
	assert.Equal(t, JobStateCancelled, final)

	end, ok := job.EndTime()
	assert.True(t, ok)
	assert.False(t, end.IsZero())
}

func TestParseJobCompleteOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		status JobStatus
		want   JobState
	}{
		{
			name:   "success",
			status: JobStatus{Running: false, State: StateCompleted},
			want:   JobStateSucceeded,
		},
		{
			name:   "failure",
			status: JobStatus{Running: false, State: StateFailed},
			want:   JobStateFailed,
		},
		{
			name:   "cancellation via legacy marker",
			status: JobStatus{Running: false, Message: "parse cancelled by user"},
			want:   JobStateCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewParseJob(uuid.New(), CollectionChannels, "t.me/testchannel")
			require.NoError(t, job.MarkRunning())

			final, err := job.Complete(tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.want, final)
		})
	}
}

func TestParseJobCompleteRejectsRunningStatus(t *testing.T) {
	job := NewParseJob(uuid.New(), CollectionGroups, "t.me/testgroup")
	require.NoError(t, job.MarkRunning())

	_, err := job.Complete(JobStatus{Running: true, Progress: 50})
	assert.Error(t, err)
	assert.Equal(t, JobStateRunning, job.State())
}

func TestParseJobFailAfterRejectedStart(t *testing.T) {
	job := NewParseJob(uuid.New(), CollectionGroups, "t.me/testgroup")
	require.NoError(t, job.Fail())
	assert.Equal(t, JobStateFailed, job.State())

	end, ok := job.EndTime()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), end, time.Minute)
}

func TestOlder(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	a := ResultItem{ID: 7, ParsedAt: t0}
	b := ResultItem{ID: 3, ParsedAt: t0.Add(time.Hour)}
	assert.True(t, Older(a, b))
	assert.False(t, Older(b, a))

	// Ties break on lowest ID.
	c := ResultItem{ID: 3, ParsedAt: t0}
	assert.True(t, Older(c, a))
	assert.False(t, Older(a, c))
}
