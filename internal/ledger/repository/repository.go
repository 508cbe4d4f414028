package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/internal/ledger/domain"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListByPeriodType(ctx context.Context, db *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Where("period_id = ? AND report_type = ?", periodID, reportType).
		Order("user_id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("period_id desc, report_type").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Save inserts a new entry or overwrites the posted totals of an existing one.
func (r *repo) Save(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Save(entry).Error
}
