package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidReportType  = errors.New("invalid_report_type")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidPeriod      = errors.New("invalid_period")
	ErrPeriodNotFound     = errors.New("period_not_found")
	ErrPeriodInactive     = errors.New("period_inactive")
	ErrPeriodTypeMismatch = errors.New("period_type_mismatch")
	ErrMissingFile        = errors.New("missing_file")
	ErrEmptyFile          = errors.New("empty_file")
	ErrMissingColumns     = errors.New("missing_columns")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrNotRetryable       = errors.New("job_not_retryable")
	ErrUnreadableFile     = errors.New("unreadable_file")
	ErrJobProcessing      = errors.New("job_processing")
	ErrEarningsCommitted  = errors.New("earnings_committed")
)

// SupersededMessage is stored on a job failed because a newer upload
// replaced it while it was processing.
const SupersededMessage = "superseded"

// MissingColumnsError lists the required columns absent from a header row.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}
