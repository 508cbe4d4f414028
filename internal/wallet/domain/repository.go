package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Wallet, error)
	// InsertIfAbsent creates the wallet unless one already exists for the user.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, wallet *Wallet) error
	// UpdateVersioned writes wallet only if its stored version still equals
	// expected, bumping the version. It reports whether the row was written.
	UpdateVersioned(ctx context.Context, db *gorm.DB, wallet *Wallet, expected int64) (bool, error)
	InsertAdjustment(ctx context.Context, db *gorm.DB, adjustment *Adjustment) error
	ListAdjustments(ctx context.Context, db *gorm.DB, userID string, limit int) ([]Adjustment, error)
}
