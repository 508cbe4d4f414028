package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Wallet is the per-user balance sheet. Cumulative fields only ever grow or
// shrink through the service; derived balances are recomputed on every
// write by Recalculate.
type Wallet struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID              string          `gorm:"not null;uniqueIndex" json:"user_id"`
	Currency            string          `gorm:"type:varchar(8);not null" json:"currency"`
	TotalEarnings       decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"total_earnings"`
	RegularRoyalty      decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"regular_royalty"`
	BonusRoyalty        decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"bonus_royalty"`
	MCNRoyalty          decimal.Decimal `gorm:"column:mcn_royalty;type:decimal(20,6);not null;default:0" json:"mcn_royalty"`
	TotalCommission     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"total_commission"`
	AdjustmentTotal     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"adjustment_total"`
	AvailableBalance    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"available_balance"`
	PendingPayout       decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"pending_payout"`
	TotalPaidOut        decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"total_paid_out"`
	WithdrawableBalance decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"withdrawable_balance"`
	LastCalculatedAt    *time.Time      `json:"last_calculated_at,omitempty"`
	LastPeriodID        *snowflake.ID   `json:"last_period_id,omitempty"`
	Active              bool            `gorm:"not null;default:true" json:"active"`
	Version             int64           `gorm:"not null;default:0" json:"version"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null" json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

// Violation describes a balance that would have gone negative.
type Violation struct {
	Field string
	Value decimal.Decimal
}

// Recalculate derives available and withdrawable balances from the
// cumulative fields. Negative results are floored at zero and reported as
// violations so the caller can decide whether to reject or log.
func (w *Wallet) Recalculate() []Violation {
	var violations []Violation
	check := func(field string, v *decimal.Decimal) {
		if v.IsNegative() {
			violations = append(violations, Violation{Field: field, Value: *v})
			*v = decimal.Zero
		}
	}

	check("total_earnings", &w.TotalEarnings)
	check("regular_royalty", &w.RegularRoyalty)
	check("bonus_royalty", &w.BonusRoyalty)
	check("mcn_royalty", &w.MCNRoyalty)
	check("total_commission", &w.TotalCommission)
	check("pending_payout", &w.PendingPayout)
	check("total_paid_out", &w.TotalPaidOut)

	w.AvailableBalance = w.TotalEarnings.Sub(w.TotalCommission).Add(w.AdjustmentTotal)
	check("available_balance", &w.AvailableBalance)

	w.WithdrawableBalance = w.AvailableBalance.Sub(w.PendingPayout).Sub(w.TotalPaidOut)
	check("withdrawable_balance", &w.WithdrawableBalance)
	return violations
}

type AdjustmentType string

const (
	AdjustmentCredit AdjustmentType = "credit"
	AdjustmentDebit  AdjustmentType = "debit"
)

// Adjustment is an append-only audit row for a manual balance change.
// AppliedAmount differs from Amount when a debit was clamped.
type Adjustment struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	WalletID      snowflake.ID    `gorm:"not null;index" json:"wallet_id"`
	UserID        string          `gorm:"not null;index" json:"user_id"`
	Type          AdjustmentType  `gorm:"type:varchar(16);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	AppliedAmount decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"applied_amount"`
	Reason        string          `gorm:"type:text;not null" json:"reason"`
	ActorID       string          `gorm:"not null" json:"actor_id"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"balance_after"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
}

func (Adjustment) TableName() string { return "wallet_adjustments" }
