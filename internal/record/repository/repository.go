package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/royalti/internal/config"
	"github.com/smallbiznis/royalti/internal/record/domain"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"gorm.io/gorm"
)

type repo struct {
	ingestion *config.IngestionConfigHolder
}

// Provide returns the record store. Inserts are chunked by the current
// insert_batch_size.
func Provide(ingestion *config.IngestionConfigHolder) domain.Repository {
	return &repo{ingestion: ingestion}
}

func (r *repo) batchSize() int {
	return r.ingestion.Get().InsertBatchSize
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, records []domain.Record) error {
	var (
		analytics []*domain.AnalyticsRecord
		royalty   []*domain.RoyaltyRecord
		channel   []*domain.ChannelRevenueRecord
	)
	for _, record := range records {
		switch v := record.(type) {
		case *domain.AnalyticsRecord:
			analytics = append(analytics, v)
		case *domain.RoyaltyRecord:
			royalty = append(royalty, v)
		case *domain.ChannelRevenueRecord:
			channel = append(channel, v)
		default:
			return fmt.Errorf("insert records: unsupported record %T", record)
		}
	}

	size := r.batchSize()
	tx := db.WithContext(ctx)
	if len(analytics) > 0 {
		if err := tx.CreateInBatches(analytics, size).Error; err != nil {
			return err
		}
	}
	if len(royalty) > 0 {
		if err := tx.CreateInBatches(royalty, size).Error; err != nil {
			return err
		}
	}
	if len(channel) > 0 {
		if err := tx.CreateInBatches(channel, size).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteByPeriodType(ctx context.Context, db *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType) (int64, error) {
	var res *gorm.DB
	switch reportType {
	case reportdomain.ReportTypeAnalytics:
		res = db.WithContext(ctx).Exec(`DELETE FROM analytics_records WHERE period_id = ?`, periodID)
	case reportdomain.ReportTypeRoyalty, reportdomain.ReportTypeBonusRoyalty:
		res = db.WithContext(ctx).Exec(`DELETE FROM royalty_records WHERE period_id = ? AND report_type = ?`, periodID, reportType)
	case reportdomain.ReportTypeMCN:
		res = db.WithContext(ctx).Exec(`DELETE FROM channel_revenue_records WHERE period_id = ?`, periodID)
	default:
		return 0, reportdomain.ErrInvalidReportType
	}
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteByJob(ctx context.Context, db *gorm.DB, jobID snowflake.ID, reportType reportdomain.ReportType) (int64, error) {
	table, err := tableFor(reportType)
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).Exec(`DELETE FROM `+table+` WHERE job_id = ?`, jobID)
	return res.RowsAffected, res.Error
}

func (r *repo) CountByJob(ctx context.Context, db *gorm.DB, jobID snowflake.ID, reportType reportdomain.ReportType) (int64, error) {
	table, err := tableFor(reportType)
	if err != nil {
		return 0, err
	}
	var count int64
	err = db.WithContext(ctx).Table(table).Where("job_id = ?", jobID).Count(&count).Error
	return count, err
}

type totalsRow struct {
	AccountID  string
	Records    int64
	Regular    decimal.Decimal
	Bonus      decimal.Decimal
	Channel    decimal.Decimal
	Commission decimal.Decimal
}

func (r *repo) TotalsByAccount(ctx context.Context, db *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType) ([]domain.AccountTotals, error) {
	var rows []totalsRow
	var err error
	switch reportType {
	case reportdomain.ReportTypeAnalytics:
		return nil, nil
	case reportdomain.ReportTypeRoyalty, reportdomain.ReportTypeBonusRoyalty:
		err = db.WithContext(ctx).Raw(
			`SELECT account_id,
			        COUNT(*) AS records,
			        COALESCE(SUM(regular_royalty), 0) AS regular,
			        COALESCE(SUM(bonus_royalty), 0) AS bonus,
			        0 AS channel,
			        COALESCE(SUM(commission), 0) AS commission
			 FROM royalty_records
			 WHERE period_id = ? AND report_type = ?
			 GROUP BY account_id
			 ORDER BY account_id`,
			periodID, reportType,
		).Scan(&rows).Error
	case reportdomain.ReportTypeMCN:
		err = db.WithContext(ctx).Raw(
			`SELECT account_id,
			        COUNT(*) AS records,
			        0 AS regular,
			        0 AS bonus,
			        COALESCE(SUM(payout_local), 0) AS channel,
			        COALESCE(SUM(commission), 0) AS commission
			 FROM channel_revenue_records
			 WHERE period_id = ?
			 GROUP BY account_id
			 ORDER BY account_id`,
			periodID,
		).Scan(&rows).Error
	default:
		return nil, reportdomain.ErrInvalidReportType
	}
	if err != nil {
		return nil, err
	}

	totals := make([]domain.AccountTotals, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, domain.AccountTotals{
			AccountID: row.AccountID,
			Records:   row.Records,
			Earnings: domain.Earnings{
				Regular:    row.Regular.Round(6),
				Bonus:      row.Bonus.Round(6),
				Channel:    row.Channel.Round(6),
				Commission: row.Commission.Round(6),
			},
		})
	}
	return totals, nil
}

func tableFor(reportType reportdomain.ReportType) (string, error) {
	switch reportType {
	case reportdomain.ReportTypeAnalytics:
		return domain.AnalyticsRecord{}.TableName(), nil
	case reportdomain.ReportTypeRoyalty, reportdomain.ReportTypeBonusRoyalty:
		return domain.RoyaltyRecord{}.TableName(), nil
	case reportdomain.ReportTypeMCN:
		return domain.ChannelRevenueRecord{}.TableName(), nil
	default:
		return "", reportdomain.ErrInvalidReportType
	}
}
