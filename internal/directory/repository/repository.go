package repository

import (
	"context"

	"github.com/smallbiznis/royalti/internal/directory/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindMany(ctx context.Context, db *gorm.DB, accountIDs []string) ([]domain.AccountOwner, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var owners []domain.AccountOwner
	if err := db.WithContext(ctx).Where("account_id IN ?", accountIDs).Find(&owners).Error; err != nil {
		return nil, err
	}
	return owners, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, owner *domain.AccountOwner) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "updated_by", "updated_at"}),
	}).Create(owner).Error
}
