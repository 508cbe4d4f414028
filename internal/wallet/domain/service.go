package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	"gorm.io/gorm"
)

// CreditRequest applies an earnings delta. Components may be negative when
// a reprocessed report lowered a user's totals.
type CreditRequest struct {
	UserID   string
	Delta    recorddomain.Earnings
	PeriodID snowflake.ID
	// RejectShortfall refuses a debit larger than the withdrawable balance
	// with ErrInsufficientBalance instead of leaving it to invariant
	// enforcement.
	RejectShortfall bool
}

type AdjustmentRequest struct {
	UserID string          `json:"-"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// Service mutates wallets. Methods taking tx join the caller's transaction;
// a nil tx runs against the service's own connection.
type Service interface {
	Get(ctx context.Context, userID string) (Wallet, error)
	Credit(ctx context.Context, tx *gorm.DB, req CreditRequest) (Wallet, error)
	ReserveForPayout(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) (Wallet, error)
	ReleaseReservation(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) (Wallet, error)
	SettlePayout(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) (Wallet, error)
	ApplyManualAdjustment(ctx context.Context, req AdjustmentRequest) (Adjustment, error)
	ListAdjustments(ctx context.Context, userID string) ([]Adjustment, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidAdjustment   = errors.New("invalid_adjustment_type")
	ErrMissingReason       = errors.New("missing_reason")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvariantViolation  = errors.New("wallet_invariant_violation")
	ErrWalletInactive      = errors.New("wallet_inactive")
)
