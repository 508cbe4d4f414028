package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReportType(t *testing.T) {
	for _, raw := range []string{"analytics", " Royalty ", "BONUS_ROYALTY", "mcn"} {
		_, err := ParseReportType(raw)
		assert.NoError(t, err, raw)
	}
	_, err := ParseReportType("sales")
	assert.ErrorIs(t, err, ErrInvalidReportType)
	_, err = ParseReportType("")
	assert.ErrorIs(t, err, ErrInvalidReportType)
}

func TestMonetary(t *testing.T) {
	assert.False(t, ReportTypeAnalytics.Monetary())
	assert.True(t, ReportTypeRoyalty.Monetary())
	assert.True(t, ReportTypeBonusRoyalty.Monetary())
	assert.True(t, ReportTypeMCN.Monetary())
}

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusFailed, JobStatusPending, true},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusCompleted, JobStatusPending, false},
		{JobStatusProcessing, JobStatusPending, false},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusFailed, JobStatusProcessing, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestMissingColumnsError(t *testing.T) {
	err := error(&MissingColumnsError{Columns: []string{"isrc", "royalty"}})
	assert.True(t, errors.Is(err, ErrMissingColumns))
	assert.EqualError(t, err, "missing required columns: isrc, royalty")
}
