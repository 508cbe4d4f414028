package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/internal/report/domain"
	"gorm.io/gorm"
)

const rowErrorBatchSize = 500

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.ReportJob) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ReportJob, error) {
	var job domain.ReportJob
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, periodID snowflake.ID, reportType domain.ReportType) (*domain.ReportJob, error) {
	var job domain.ReportJob
	err := db.WithContext(ctx).
		Where("period_id = ? AND report_type = ? AND active = ?", periodID, reportType, true).
		Order("id desc").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, afterID snowflake.ID, limit int) ([]domain.ReportJob, error) {
	var jobs []domain.ReportJob
	stmt := db.WithContext(ctx).Model(&domain.ReportJob{}).Where("active = ?", true)
	if filter.Type != "" {
		stmt = stmt.Where("report_type = ?", filter.Type)
	}
	if filter.PeriodID != 0 {
		stmt = stmt.Where("period_id = ?", filter.PeriodID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if afterID != 0 {
		stmt = stmt.Where("id < ?", afterID)
	}
	if err := stmt.Order("id desc").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Deactivate soft-deletes a job. A job caught mid-processing is failed in
// the same statement so it never reads as running once inactive.
func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.ReportJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"active":        false,
			"updated_at":    now,
			"error_message": gorm.Expr("CASE WHEN status = ? THEN ? ELSE error_message END", domain.JobStatusProcessing, domain.SupersededMessage),
			"status":        gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", domain.JobStatusProcessing, domain.JobStatusFailed),
		}).Error
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.JobStatus, fields map[string]any) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, domain.ErrInvalidTransition
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := db.WithContext(ctx).
		Model(&domain.ReportJob{}).
		Where("id = ? AND status = ? AND active = ?", id, from, true).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListIDsByStatus(ctx context.Context, db *gorm.DB, status domain.JobStatus, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.ReportJob{}).
		Where("status = ? AND active = ?", status, true).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) ListStuck(ctx context.Context, db *gorm.DB, startedBefore time.Time, limit int) ([]domain.ReportJob, error) {
	var jobs []domain.ReportJob
	err := db.WithContext(ctx).
		Where("status = ? AND active = ? AND started_at < ?", domain.JobStatusProcessing, true, startedBefore).
		Order("id").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) InsertRowErrors(ctx context.Context, db *gorm.DB, rows []domain.RowError) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(rows, rowErrorBatchSize).Error
}

func (r *repo) ListRowErrors(ctx context.Context, db *gorm.DB, jobID snowflake.ID) ([]domain.RowError, error) {
	var rows []domain.RowError
	err := db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("line").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) DeleteRowErrors(ctx context.Context, db *gorm.DB, jobID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM report_row_errors WHERE job_id = ?`, jobID).Error
}
