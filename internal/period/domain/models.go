package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
)

// Period is a reporting cycle such as "01-24" for one report type. At most
// one active period exists per (code, type).
type Period struct {
	ID         snowflake.ID            `gorm:"primaryKey" json:"id"`
	Code       string                  `gorm:"not null;uniqueIndex:ux_reporting_periods_active,where:active" json:"code"`
	Name       string                  `gorm:"not null" json:"name"`
	ReportType reportdomain.ReportType `gorm:"column:type;type:varchar(32);not null;uniqueIndex:ux_reporting_periods_active" json:"type"`
	Active     bool                    `gorm:"not null;default:true" json:"active"`
	CreatedBy  string                  `gorm:"not null" json:"created_by"`
	CreatedAt  time.Time               `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time               `gorm:"not null" json:"updated_at"`
}

func (Period) TableName() string { return "reporting_periods" }
