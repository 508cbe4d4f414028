package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
)

// Record is one normalized report row, regardless of report type.
type Record interface {
	Type() reportdomain.ReportType
	Account() string
	// ItemKey identifies the track (ISRC) or channel the row is about.
	ItemKey() string
	UnitCount() int64
	Earnings() Earnings
	Platform() string
	Country() string
	// Bind attaches the row to its job before it is persisted.
	Bind(id, jobID, periodID snowflake.ID, now time.Time)
}

// Earnings is the monetary component breakdown of a row or an aggregate.
type Earnings struct {
	Regular    decimal.Decimal `json:"regular"`
	Bonus      decimal.Decimal `json:"bonus"`
	Channel    decimal.Decimal `json:"channel"`
	Commission decimal.Decimal `json:"commission"`
}

// Total is the gross earnings before commission.
func (e Earnings) Total() decimal.Decimal {
	return e.Regular.Add(e.Bonus).Add(e.Channel)
}

func (e Earnings) Add(o Earnings) Earnings {
	return Earnings{
		Regular:    e.Regular.Add(o.Regular),
		Bonus:      e.Bonus.Add(o.Bonus),
		Channel:    e.Channel.Add(o.Channel),
		Commission: e.Commission.Add(o.Commission),
	}
}

func (e Earnings) Sub(o Earnings) Earnings {
	return Earnings{
		Regular:    e.Regular.Sub(o.Regular),
		Bonus:      e.Bonus.Sub(o.Bonus),
		Channel:    e.Channel.Sub(o.Channel),
		Commission: e.Commission.Sub(o.Commission),
	}
}

func (e Earnings) IsZero() bool {
	return e.Regular.IsZero() && e.Bonus.IsZero() && e.Channel.IsZero() && e.Commission.IsZero()
}

// AccountTotals is the per-account aggregate for one (period, type).
type AccountTotals struct {
	AccountID string
	Records   int64
	Earnings  Earnings
}

type AnalyticsRecord struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	JobID       snowflake.ID `gorm:"not null;index" json:"job_id"`
	PeriodID    snowflake.ID `gorm:"not null;index:idx_analytics_records_period_account" json:"period_id"`
	AccountID   string       `gorm:"not null;index:idx_analytics_records_period_account" json:"account_id"`
	ISRC        string       `gorm:"column:isrc;not null" json:"isrc"`
	UPC         string       `gorm:"column:upc" json:"upc,omitempty"`
	TrackTitle  string       `gorm:"not null" json:"track_title"`
	ArtistName  string       `json:"artist_name,omitempty"`
	StoreName   string       `gorm:"column:platform;not null" json:"platform"`
	CountryCode string       `gorm:"column:country;type:varchar(2)" json:"country,omitempty"`
	Units       int64        `gorm:"not null;default:0" json:"units"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (AnalyticsRecord) TableName() string { return "analytics_records" }

func (r *AnalyticsRecord) Type() reportdomain.ReportType { return reportdomain.ReportTypeAnalytics }
func (r *AnalyticsRecord) Account() string               { return r.AccountID }
func (r *AnalyticsRecord) ItemKey() string               { return r.ISRC }
func (r *AnalyticsRecord) UnitCount() int64              { return r.Units }
func (r *AnalyticsRecord) Earnings() Earnings            { return Earnings{} }
func (r *AnalyticsRecord) Platform() string              { return r.StoreName }
func (r *AnalyticsRecord) Country() string               { return r.CountryCode }

func (r *AnalyticsRecord) Bind(id, jobID, periodID snowflake.ID, now time.Time) {
	r.ID, r.JobID, r.PeriodID, r.CreatedAt = id, jobID, periodID, now
}

// RoyaltyRecord backs both royalty and bonus_royalty reports; ReportType
// tells them apart.
type RoyaltyRecord struct {
	ID             snowflake.ID            `gorm:"primaryKey" json:"id"`
	JobID          snowflake.ID            `gorm:"not null;index" json:"job_id"`
	PeriodID       snowflake.ID            `gorm:"not null;index:idx_royalty_records_period_type" json:"period_id"`
	ReportType     reportdomain.ReportType `gorm:"type:varchar(32);not null;index:idx_royalty_records_period_type" json:"type"`
	AccountID      string                  `gorm:"not null;index" json:"account_id"`
	ISRC           string                  `gorm:"column:isrc;not null" json:"isrc"`
	UPC            string                  `gorm:"column:upc" json:"upc,omitempty"`
	TrackTitle     string                  `gorm:"not null" json:"track_title"`
	ArtistName     string                  `json:"artist_name,omitempty"`
	StoreName      string                  `gorm:"column:platform;not null" json:"platform"`
	CountryCode    string                  `gorm:"column:country;type:varchar(2)" json:"country,omitempty"`
	Units          int64                   `gorm:"not null;default:0" json:"units"`
	RegularRoyalty decimal.Decimal         `gorm:"type:decimal(20,6);not null;default:0" json:"regular_royalty"`
	BonusRoyalty   decimal.Decimal         `gorm:"type:decimal(20,6);not null;default:0" json:"bonus_royalty"`
	TotalEarnings  decimal.Decimal         `gorm:"type:decimal(20,6);not null;default:0" json:"total_earnings"`
	Commission     decimal.Decimal         `gorm:"type:decimal(20,6);not null;default:0" json:"commission"`
	CreatedAt      time.Time               `gorm:"not null" json:"created_at"`
}

func (RoyaltyRecord) TableName() string { return "royalty_records" }

func (r *RoyaltyRecord) Type() reportdomain.ReportType { return r.ReportType }
func (r *RoyaltyRecord) Account() string               { return r.AccountID }
func (r *RoyaltyRecord) ItemKey() string               { return r.ISRC }
func (r *RoyaltyRecord) UnitCount() int64              { return r.Units }
func (r *RoyaltyRecord) Platform() string              { return r.StoreName }
func (r *RoyaltyRecord) Country() string               { return r.CountryCode }

func (r *RoyaltyRecord) Earnings() Earnings {
	return Earnings{Regular: r.RegularRoyalty, Bonus: r.BonusRoyalty, Commission: r.Commission}
}

func (r *RoyaltyRecord) Bind(id, jobID, periodID snowflake.ID, now time.Time) {
	r.ID, r.JobID, r.PeriodID, r.CreatedAt = id, jobID, periodID, now
}

// ChannelRevenueRecord is one MCN channel row. PayoutLocal is what the
// channel owner earns in the wallet currency.
type ChannelRevenueRecord struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	JobID          snowflake.ID    `gorm:"not null;index" json:"job_id"`
	PeriodID       snowflake.ID    `gorm:"not null;index:idx_channel_revenue_records_period_account" json:"period_id"`
	AccountID      string          `gorm:"not null;index:idx_channel_revenue_records_period_account" json:"account_id"`
	ChannelID      string          `gorm:"not null" json:"channel_id"`
	ChannelName    string          `json:"channel_name,omitempty"`
	CountryCode    string          `gorm:"column:country;type:varchar(2)" json:"country,omitempty"`
	Views          int64           `gorm:"not null;default:0" json:"views"`
	Revenue        decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"revenue"`
	ConversionRate decimal.Decimal `gorm:"type:decimal(20,8);not null;default:1" json:"conversion_rate"`
	PayoutLocal    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"payout_local"`
	Commission     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"commission"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (ChannelRevenueRecord) TableName() string { return "channel_revenue_records" }

func (r *ChannelRevenueRecord) Type() reportdomain.ReportType { return reportdomain.ReportTypeMCN }
func (r *ChannelRevenueRecord) Account() string               { return r.AccountID }
func (r *ChannelRevenueRecord) ItemKey() string               { return r.ChannelID }
func (r *ChannelRevenueRecord) UnitCount() int64              { return r.Views }
func (r *ChannelRevenueRecord) Platform() string              { return "youtube" }
func (r *ChannelRevenueRecord) Country() string               { return r.CountryCode }

func (r *ChannelRevenueRecord) Earnings() Earnings {
	return Earnings{Channel: r.PayoutLocal, Commission: r.Commission}
}

func (r *ChannelRevenueRecord) Bind(id, jobID, periodID snowflake.ID, now time.Time) {
	r.ID, r.JobID, r.PeriodID, r.CreatedAt = id, jobID, periodID, now
}

var (
	_ Record = (*AnalyticsRecord)(nil)
	_ Record = (*RoyaltyRecord)(nil)
	_ Record = (*ChannelRevenueRecord)(nil)
)
