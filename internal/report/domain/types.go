package domain

import "strings"

// ReportType is the wire-stable report category.
type ReportType string

const (
	ReportTypeAnalytics    ReportType = "analytics"
	ReportTypeRoyalty      ReportType = "royalty"
	ReportTypeBonusRoyalty ReportType = "bonus_royalty"
	ReportTypeMCN          ReportType = "mcn"
)

var reportTypes = []ReportType{
	ReportTypeAnalytics,
	ReportTypeRoyalty,
	ReportTypeBonusRoyalty,
	ReportTypeMCN,
}

func ReportTypes() []ReportType {
	out := make([]ReportType, len(reportTypes))
	copy(out, reportTypes)
	return out
}

func ParseReportType(raw string) (ReportType, error) {
	candidate := ReportType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range reportTypes {
		if t == candidate {
			return t, nil
		}
	}
	return "", ErrInvalidReportType
}

// Monetary reports credit wallets through the ledger accumulator.
func (t ReportType) Monetary() bool {
	switch t {
	case ReportTypeRoyalty, ReportTypeBonusRoyalty, ReportTypeMCN:
		return true
	default:
		return false
	}
}

func (t ReportType) String() string {
	return string(t)
}

// JobStatus is the wire-stable lifecycle status of a ReportJob.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
	// failed -> pending is only reachable through an explicit operator retry.
	JobStatusFailed: {JobStatusPending},
}

func ParseJobStatus(raw string) (JobStatus, error) {
	switch s := JobStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no automatic transition leaves s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
