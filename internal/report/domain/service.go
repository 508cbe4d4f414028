package domain

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/pkg/db/pagination"
)

type UploadRequest struct {
	PeriodID string
	Type     string
	FileName string
	File     io.Reader
}

type UploadResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

type ListRequest struct {
	Type     string
	PeriodID string
	Status   string
	pagination.Pagination
}

type ListFilter struct {
	Type     ReportType
	PeriodID snowflake.ID
	Status   JobStatus
}

type ListResponse struct {
	pagination.PageInfo
	Jobs []ReportJob `json:"jobs"`
}

// RecoveryResult reports what a recovery sweep changed.
type RecoveryResult struct {
	Requeued []snowflake.ID
	Failed   int
}

type Service interface {
	Upload(ctx context.Context, req UploadRequest) (UploadResponse, error)
	Get(ctx context.Context, id string) (ReportJob, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	ListRowErrors(ctx context.Context, id string) ([]RowError, error)
	Retry(ctx context.Context, id string) (ReportJob, error)
	Delete(ctx context.Context, id string) error
}

// Processor is the worker-facing side of the report service.
type Processor interface {
	Process(ctx context.Context, jobID snowflake.ID) error
	Recover(ctx context.Context, stuckBefore time.Time) (RecoveryResult, error)
}

// Queue hands pending jobs to background workers.
type Queue interface {
	Enqueue(ctx context.Context, jobID snowflake.ID) error
}
