package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"gorm.io/gorm"
)

type ListFilter struct {
	Type       reportdomain.ReportType
	ActiveOnly bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, period *Period) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Period, error)
	FindActiveByCode(ctx context.Context, db *gorm.DB, code string, reportType reportdomain.ReportType) (*Period, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Period, error)
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// CountActiveJobs counts report jobs still referencing the period.
	CountActiveJobs(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
