package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/royalti/pkg/db/pagination"
)

type CreateRequest struct {
	UserID   string          `json:"userId"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Method   string          `json:"method"`
}

type TransitionRequest struct {
	Note string `json:"note"`
}

type ListRequest struct {
	UserID string
	Status string
	pagination.Pagination
}

type ListFilter struct {
	UserID string
	Status Status
}

type ListResponse struct {
	pagination.PageInfo
	Payouts []Payout `json:"payouts"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Payout, error)
	Get(ctx context.Context, id string) (Payout, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Approve(ctx context.Context, id string, req TransitionRequest) (Payout, error)
	Reject(ctx context.Context, id string, req TransitionRequest) (Payout, error)
	MarkPaid(ctx context.Context, id string, req TransitionRequest) (Payout, error)
	Cancel(ctx context.Context, id string, req TransitionRequest) (Payout, error)
	// Remittance renders the remittance advice for a paid payout as PDF.
	Remittance(ctx context.Context, id string) ([]byte, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidMethod     = errors.New("invalid_method")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrBelowMinimum      = errors.New("below_minimum_payout")
	ErrCurrencyMismatch  = errors.New("currency_mismatch")
	ErrNotFound          = errors.New("payout_not_found")
	ErrInvalidTransition = errors.New("invalid_payout_transition")
	ErrNotPaid           = errors.New("payout_not_paid")
)
