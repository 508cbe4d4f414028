package domain

import (
	"context"
	"errors"
)

type CreateRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type ListRequest struct {
	Type       string
	ActiveOnly bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Period, error)
	Get(ctx context.Context, id string) (Period, error)
	List(ctx context.Context, req ListRequest) ([]Period, error)
	Deactivate(ctx context.Context, id string) (Period, error)
}

var (
	ErrInvalidID   = errors.New("invalid_id")
	ErrInvalidCode = errors.New("invalid_code")
	ErrInvalidName = errors.New("invalid_name")
	ErrNotFound    = errors.New("period_not_found")
	ErrDuplicate   = errors.New("period_already_exists")
	ErrInUse       = errors.New("period_in_use")
	ErrInactive    = errors.New("period_inactive")
)
