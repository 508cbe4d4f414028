package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"gorm.io/gorm"
)

// Repository stores normalized rows, one table per record shape.
type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, records []Record) error
	DeleteByPeriodType(ctx context.Context, db *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType) (int64, error)
	// DeleteByJob removes only the rows written by jobID, leaving rows of a
	// job still being ingested untouched.
	DeleteByJob(ctx context.Context, db *gorm.DB, jobID snowflake.ID, reportType reportdomain.ReportType) (int64, error)
	CountByJob(ctx context.Context, db *gorm.DB, jobID snowflake.ID, reportType reportdomain.ReportType) (int64, error)
	// TotalsByAccount aggregates monetary fields per account for one
	// (period, type). Analytics reports yield no totals.
	TotalsByAccount(ctx context.Context, db *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType) ([]AccountTotals, error)
}
