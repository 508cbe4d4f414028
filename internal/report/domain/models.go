package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ReportJob struct {
	ID               snowflake.ID                `gorm:"primaryKey" json:"id"`
	PeriodID         snowflake.ID                `gorm:"not null;index:idx_report_jobs_period_type" json:"period_id"`
	ReportType       ReportType                  `gorm:"type:varchar(32);not null;index:idx_report_jobs_period_type" json:"type"`
	FileName         string                      `gorm:"not null" json:"file_name"`
	FilePath         string                      `gorm:"not null" json:"file_path"`
	FileSize         int64                       `gorm:"not null;default:0" json:"file_size"`
	Status           JobStatus                   `gorm:"type:varchar(32);not null;index" json:"status"`
	TotalRecords     int64                       `gorm:"not null;default:0" json:"total_records"`
	ProcessedRecords int64                       `gorm:"not null;default:0" json:"processed_records"`
	RejectedRecords  int64                       `gorm:"not null;default:0" json:"rejected_records"`
	Summary          datatypes.JSONType[Summary] `json:"summary"`
	UploadedBy       string                      `gorm:"not null" json:"uploaded_by"`
	ErrorMessage     string                      `gorm:"type:text" json:"error_message,omitempty"`
	Attempts         int                         `gorm:"not null;default:0" json:"attempts"`
	Active           bool                        `gorm:"not null;default:true;index" json:"active"`
	StartedAt        *time.Time                  `json:"started_at,omitempty"`
	CompletedAt      *time.Time                  `json:"completed_at,omitempty"`
	CreatedAt        time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"not null" json:"updated_at"`
}

func (ReportJob) TableName() string { return "report_jobs" }

// Summary holds aggregate totals computed from a job's accepted rows.
type Summary struct {
	TotalRecords    int64                `json:"totalRecords"`
	ActiveRecords   int64                `json:"activeRecords"`
	RejectedRecords int64                `json:"rejectedRecords"`
	TotalUnits      int64                `json:"totalUnits"`
	TotalRevenue    decimal.Decimal      `json:"totalRevenue"`
	TotalCommission decimal.Decimal      `json:"totalCommission"`
	NetRevenue      decimal.Decimal      `json:"netRevenue"`
	UniqueAccounts  int64                `json:"uniqueAccounts"`
	UniqueItems     int64                `json:"uniqueItems"`
	ByPlatform      map[string]Breakdown `json:"byPlatform,omitempty"`
	ByCountry       map[string]Breakdown `json:"byCountry,omitempty"`
}

type Breakdown struct {
	Records int64           `json:"records"`
	Units   int64           `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

// RowError is a rejected input row kept for operator review.
type RowError struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	JobID     snowflake.ID      `gorm:"not null;index" json:"job_id"`
	Line      int               `gorm:"not null" json:"line"`
	Field     string            `json:"field,omitempty"`
	Reason    string            `gorm:"not null" json:"reason"`
	Raw       datatypes.JSONMap `json:"raw,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
}

func (RowError) TableName() string { return "report_row_errors" }
