package repository

import (
	"context"

	"github.com/smallbiznis/royalti/internal/wallet/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&wallet).Error
	if err != nil {
		return nil, err
	}
	if wallet.ID == 0 {
		return nil, nil
	}
	return &wallet, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, wallet *domain.Wallet) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet).Error
}

func (r *repo) UpdateVersioned(ctx context.Context, db *gorm.DB, wallet *domain.Wallet, expected int64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, expected).
		Updates(map[string]any{
			"total_earnings":       wallet.TotalEarnings,
			"regular_royalty":      wallet.RegularRoyalty,
			"bonus_royalty":        wallet.BonusRoyalty,
			"mcn_royalty":          wallet.MCNRoyalty,
			"total_commission":     wallet.TotalCommission,
			"adjustment_total":     wallet.AdjustmentTotal,
			"available_balance":    wallet.AvailableBalance,
			"pending_payout":       wallet.PendingPayout,
			"total_paid_out":       wallet.TotalPaidOut,
			"withdrawable_balance": wallet.WithdrawableBalance,
			"last_calculated_at":   wallet.LastCalculatedAt,
			"last_period_id":       wallet.LastPeriodID,
			"version":              expected + 1,
			"updated_at":           wallet.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	wallet.Version = expected + 1
	return true, nil
}

func (r *repo) InsertAdjustment(ctx context.Context, db *gorm.DB, adjustment *domain.Adjustment) error {
	return db.WithContext(ctx).Create(adjustment).Error
}

func (r *repo) ListAdjustments(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Adjustment, error) {
	var adjustments []domain.Adjustment
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Find(&adjustments).Error
	if err != nil {
		return nil, err
	}
	return adjustments, nil
}
