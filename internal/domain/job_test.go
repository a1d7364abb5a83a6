package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"pending to in_progress", JobStatusPending, JobStatusInProgress, true},
		{"pending to cancelled", JobStatusPending, JobStatusCancelled, true},
		{"in_progress to completed", JobStatusInProgress, JobStatusCompleted, true},
		{"in_progress to failed", JobStatusInProgress, JobStatusFailed, true},
		{"in_progress to cancelled", JobStatusInProgress, JobStatusCancelled, true},
		{"no backward to pending", JobStatusInProgress, JobStatusPending, false},
		{"completed is terminal", JobStatusCompleted, JobStatusCancelled, false},
		{"failed is terminal", JobStatusFailed, JobStatusInProgress, false},
		{"cancelled is terminal", JobStatusCancelled, JobStatusCompleted, false},
		{"self transition rejected", JobStatusPending, JobStatusPending, false},
		{"unknown target rejected", JobStatusPending, "paused", false},
		{"unknown current rejected", "paused", JobStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &PropagationJob{Status: tt.from}
			assert.Equal(t, tt.want, job.CanTransitionTo(tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for status, want := range map[string]bool{
		JobStatusPending:    false,
		JobStatusInProgress: false,
		JobStatusCompleted:  true,
		JobStatusFailed:     true,
		JobStatusCancelled:  true,
	} {
		job := &PropagationJob{Status: status}
		assert.Equal(t, want, job.IsTerminal(), "status %s", status)
	}
}

func TestSelectorIsZero(t *testing.T) {
	now := time.Now()

	assert.True(t, Selector{}.IsZero())
	assert.False(t, Selector{IDs: []string{"cs-1"}}.IsZero())
	assert.False(t, Selector{AllActive: true}.IsZero())
	assert.False(t, Selector{CreatedBefore: &now}.IsZero())
}

func TestSelectorRoundTrip(t *testing.T) {
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	original := Selector{IDs: []string{"cs-1", "cs-2"}, CreatedBefore: &cutoff}

	value, err := original.Value()
	assert.NoError(t, err)

	var scanned Selector
	assert.NoError(t, scanned.Scan(value))
	assert.Equal(t, original.IDs, scanned.IDs)
	assert.True(t, scanned.CreatedBefore.Equal(cutoff))
}
