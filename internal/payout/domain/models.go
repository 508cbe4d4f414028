package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusPaid, StatusRejected},
}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusCancelled:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reserved reports whether the payout amount is still held in the wallet's
// pending balance.
func (s Status) Reserved() bool {
	return s == StatusPending || s == StatusApproved
}

// Payout is a user's request to withdraw part of their wallet balance.
type Payout struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID      string          `gorm:"not null;index" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(8);not null" json:"currency"`
	Method      string          `gorm:"type:varchar(64);not null" json:"method"`
	Status      Status          `gorm:"type:varchar(32);not null;index" json:"status"`
	Note        string          `gorm:"type:text" json:"note,omitempty"`
	RequestedBy string          `gorm:"not null" json:"requested_by"`
	ReviewedBy  string          `json:"reviewed_by,omitempty"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (Payout) TableName() string { return "payout_requests" }
