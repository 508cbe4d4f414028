package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"gorm.io/gorm"
)

// LedgerEntryDirection tells whether a posting raised or lowered a wallet.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

// Entry holds the totals last posted to a user's wallet for one
// (period, report type). Reconciling against it makes reprocessing the same
// data a no-op on wallets.
type Entry struct {
	ID         snowflake.ID            `gorm:"primaryKey" json:"id"`
	UserID     string                  `gorm:"not null;uniqueIndex:ux_ledger_entries_user_period_type,priority:1" json:"user_id"`
	PeriodID   snowflake.ID            `gorm:"not null;uniqueIndex:ux_ledger_entries_user_period_type,priority:2;index" json:"period_id"`
	ReportType reportdomain.ReportType `gorm:"type:varchar(32);not null;uniqueIndex:ux_ledger_entries_user_period_type,priority:3" json:"type"`
	JobID      snowflake.ID            `gorm:"not null" json:"job_id"`
	Records    int64                   `gorm:"not null;default:0" json:"records"`
	Regular    decimal.Decimal         `gorm:"type:decimal(20,6);not null;default:0" json:"regular_royalty"`
	Bonus      decimal.Decimal         `gorm:"type:decimal(20,6);not null;default:0" json:"bonus_royalty"`
	Channel    decimal.Decimal         `gorm:"type:decimal(20,6);not null;default:0" json:"mcn_royalty"`
	Commission decimal.Decimal         `gorm:"type:decimal(20,6);not null;default:0" json:"commission"`
	CreatedAt  time.Time               `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time               `gorm:"not null" json:"updated_at"`
}

func (Entry) TableName() string { return "ledger_entries" }

func (e Entry) Earnings() recorddomain.Earnings {
	return recorddomain.Earnings{Regular: e.Regular, Bonus: e.Bonus, Channel: e.Channel, Commission: e.Commission}
}

// Posting is one wallet change made by an accumulator run.
type Posting struct {
	UserID    string
	Direction LedgerEntryDirection
	Delta     recorddomain.Earnings
}

type Result struct {
	Users    int
	Postings []Posting
}

type Repository interface {
	ListByPeriodType(ctx context.Context, db *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType) ([]Entry, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]Entry, error)
	Save(ctx context.Context, db *gorm.DB, entry *Entry) error
}

type Service interface {
	// Accumulate reconciles wallets against the records currently stored
	// for (periodID, reportType). It must run inside the caller's
	// transaction.
	Accumulate(ctx context.Context, tx *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType, jobID snowflake.ID) (Result, error)
	// Reverse is Accumulate for removals: a debit that exceeds a user's
	// withdrawable balance fails instead of being clamped.
	Reverse(ctx context.Context, tx *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType, jobID snowflake.ID) (Result, error)
	ListEntries(ctx context.Context, userID string) ([]Entry, error)
}

var (
	ErrNotMonetary = errors.New("report_type_not_monetary")
	ErrMissingTx   = errors.New("ledger_requires_transaction")
	ErrInvalidUser = errors.New("invalid_user")
)
