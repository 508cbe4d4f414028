package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *ReportJob) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ReportJob, error)
	FindActive(ctx context.Context, db *gorm.DB, periodID snowflake.ID, reportType ReportType) (*ReportJob, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, afterID snowflake.ID, limit int) ([]ReportJob, error)
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error

	// Transition moves an active job from one status to another and applies
	// fields in the same statement. It reports false when the job was not in
	// the expected status.
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to JobStatus, fields map[string]any) (bool, error)

	ListIDsByStatus(ctx context.Context, db *gorm.DB, status JobStatus, limit int) ([]snowflake.ID, error)
	ListStuck(ctx context.Context, db *gorm.DB, startedBefore time.Time, limit int) ([]ReportJob, error)

	InsertRowErrors(ctx context.Context, db *gorm.DB, rows []RowError) error
	ListRowErrors(ctx context.Context, db *gorm.DB, jobID snowflake.ID) ([]RowError, error)
	DeleteRowErrors(ctx context.Context, db *gorm.DB, jobID snowflake.ID) error
}
