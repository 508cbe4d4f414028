package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// AccountOwner maps a report account identifier to the user whose wallet
// receives its earnings. Accounts without a mapping are owned by a user with
// the same identifier.
type AccountOwner struct {
	AccountID string    `gorm:"primaryKey" json:"account_id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	UpdatedBy string    `gorm:"not null" json:"updated_by"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (AccountOwner) TableName() string { return "account_owners" }

type Repository interface {
	FindMany(ctx context.Context, db *gorm.DB, accountIDs []string) ([]AccountOwner, error)
	Upsert(ctx context.Context, db *gorm.DB, owner *AccountOwner) error
}

type Service interface {
	// Resolve maps every account in accountIDs to its owner. tx may be nil.
	Resolve(ctx context.Context, tx *gorm.DB, accountIDs []string) (map[string]string, error)
	SetOwner(ctx context.Context, accountID, userID string) (AccountOwner, error)
}

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidUser    = errors.New("invalid_user")
)
