package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/internal/period/domain"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, period *domain.Period) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reporting_periods (id, code, name, type, active, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		period.ID,
		period.Code,
		period.Name,
		period.ReportType,
		period.Active,
		period.CreatedBy,
		period.CreatedAt,
		period.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Period, error) {
	var period domain.Period
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, type, active, created_by, created_at, updated_at
		 FROM reporting_periods WHERE id = ?`,
		id,
	).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) FindActiveByCode(ctx context.Context, db *gorm.DB, code string, reportType reportdomain.ReportType) (*domain.Period, error) {
	var period domain.Period
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, type, active, created_by, created_at, updated_at
		 FROM reporting_periods WHERE code = ? AND type = ? AND active = ?`,
		code, reportType, true,
	).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Period, error) {
	var periods []domain.Period
	stmt := db.WithContext(ctx).Model(&domain.Period{})
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("id desc").Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE reporting_periods SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND active = ?`,
		false, id, true,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) CountActiveJobs(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM report_jobs WHERE period_id = ? AND active = ?`,
		id, true,
	).Scan(&count).Error
	return count, err
}
