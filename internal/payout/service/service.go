package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/config"
	"github.com/smallbiznis/royalti/internal/lock"
	obsctx "github.com/smallbiznis/royalti/internal/observability/context"
	obsmetrics "github.com/smallbiznis/royalti/internal/observability/metrics"
	"github.com/smallbiznis/royalti/internal/payout/domain"
	"github.com/smallbiznis/royalti/internal/payout/remittance"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	"github.com/smallbiznis/royalti/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const timeLayout = "2006-01-02 15:04 UTC"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Ingestion  *config.IngestionConfigHolder
	Locker     lock.Locker
	Repo       domain.Repository
	Wallets    walletdomain.Service
	Renderer   remittance.Renderer
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	issuer     string
	lockTTL    time.Duration
	ingestion  *config.IngestionConfigHolder
	locker     lock.Locker
	repo       domain.Repository
	wallets    walletdomain.Service
	renderer   remittance.Renderer
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payout.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		issuer:     p.Cfg.AppName,
		lockTTL:    p.Cfg.Ingest.LockTTL,
		ingestion:  p.Ingestion,
		locker:     p.Locker,
		repo:       p.Repo,
		wallets:    p.Wallets,
		renderer:   p.Renderer,
		obsMetrics: p.ObsMetrics,
	}
}

// Create opens a payout request and reserves its amount in the wallet in
// the same transaction.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Payout, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.Payout{}, domain.ErrInvalidUser
	}
	if !req.Amount.IsPositive() {
		return domain.Payout{}, domain.ErrInvalidAmount
	}
	if minimum := s.ingestion.Get().MinimumPayout(); req.Amount.LessThan(minimum) {
		return domain.Payout{}, fmt.Errorf("%w: minimum is %s", domain.ErrBelowMinimum, minimum.String())
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if method == "" {
		return domain.Payout{}, domain.ErrInvalidMethod
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))

	lease, err := s.acquire(ctx, userID)
	if err != nil {
		return domain.Payout{}, err
	}
	defer s.release(ctx, userID, lease)

	_, actorID := obsctx.ActorFromContext(ctx)
	now := s.clock.Now()
	payout := domain.Payout{
		ID:          s.genID.Generate(),
		UserID:      userID,
		Amount:      req.Amount,
		Method:      method,
		Status:      domain.StatusPending,
		RequestedBy: actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.wallets.ReserveForPayout(ctx, tx, userID, req.Amount)
		if err != nil {
			return err
		}
		if currency != "" && currency != wallet.Currency {
			return domain.ErrCurrencyMismatch
		}
		payout.Currency = wallet.Currency
		return s.repo.Insert(ctx, tx, &payout)
	})
	if err != nil {
		return domain.Payout{}, err
	}

	s.log.Info("payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("user_id", userID),
		zap.String("amount", payout.Amount.String()),
		zap.String("actor_id", actorID),
	)
	return payout, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Payout, error) {
	payoutID, err := parseID(id)
	if err != nil {
		return domain.Payout{}, err
	}
	payout, err := s.repo.FindByID(ctx, s.db, payoutID)
	if err != nil {
		return domain.Payout{}, err
	}
	if payout == nil {
		return domain.Payout{}, domain.ErrNotFound
	}
	return *payout, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{UserID: strings.TrimSpace(req.UserID)}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.Status = status
	}

	var afterID snowflake.ID
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if cursor != nil {
		afterID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	payouts, err := s.repo.List(ctx, s.db, filter, afterID, limit+1)
	if err != nil {
		return domain.ListResponse{}, err
	}
	payouts, pageInfo := pagination.Trim(payouts, limit, func(p domain.Payout) string {
		return p.ID.String()
	})
	if payouts == nil {
		payouts = []domain.Payout{}
	}
	return domain.ListResponse{PageInfo: pageInfo, Payouts: payouts}, nil
}

func (s *Service) Approve(ctx context.Context, id string, req domain.TransitionRequest) (domain.Payout, error) {
	return s.transition(ctx, id, domain.StatusApproved, req, nil)
}

func (s *Service) Reject(ctx context.Context, id string, req domain.TransitionRequest) (domain.Payout, error) {
	return s.transition(ctx, id, domain.StatusRejected, req, s.releaseFunds)
}

func (s *Service) Cancel(ctx context.Context, id string, req domain.TransitionRequest) (domain.Payout, error) {
	return s.transition(ctx, id, domain.StatusCancelled, req, s.releaseFunds)
}

func (s *Service) MarkPaid(ctx context.Context, id string, req domain.TransitionRequest) (domain.Payout, error) {
	return s.transition(ctx, id, domain.StatusPaid, req, func(ctx context.Context, tx *gorm.DB, p domain.Payout) error {
		_, err := s.wallets.SettlePayout(ctx, tx, p.UserID, p.Amount)
		return err
	})
}

func (s *Service) releaseFunds(ctx context.Context, tx *gorm.DB, p domain.Payout) error {
	_, err := s.wallets.ReleaseReservation(ctx, tx, p.UserID, p.Amount)
	return err
}

// transition moves a payout to next under the wallet lock. The status
// change and the wallet movement commit together.
func (s *Service) transition(ctx context.Context, id string, next domain.Status, req domain.TransitionRequest, apply func(context.Context, *gorm.DB, domain.Payout) error) (domain.Payout, error) {
	payout, err := s.Get(ctx, id)
	if err != nil {
		return domain.Payout{}, err
	}
	from := payout.Status
	if !from.CanTransitionTo(next) {
		return domain.Payout{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, next)
	}

	lease, err := s.acquire(ctx, payout.UserID)
	if err != nil {
		return domain.Payout{}, err
	}
	defer s.release(ctx, payout.UserID, lease)

	_, actorID := obsctx.ActorFromContext(ctx)
	now := s.clock.Now()
	fields := map[string]any{
		"reviewed_by": actorID,
		"updated_at":  now,
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		fields["note"] = note
	}
	switch next {
	case domain.StatusApproved:
		fields["approved_at"] = now
	case domain.StatusPaid:
		fields["paid_at"] = now
		fields["closed_at"] = now
	default:
		fields["closed_at"] = now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Transition(ctx, tx, payout.ID, from, next, fields)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s changed concurrently", domain.ErrInvalidTransition, payout.ID)
		}
		if apply == nil {
			return nil
		}
		return apply(ctx, tx, payout)
	})
	if err != nil {
		return domain.Payout{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayoutTransition(ctx, string(from), string(next))
	}
	s.log.Info("payout transitioned",
		zap.String("payout_id", payout.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("actor_id", actorID),
	)
	return s.Get(ctx, id)
}

func (s *Service) Remittance(ctx context.Context, id string) ([]byte, error) {
	payout, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payout.Status != domain.StatusPaid {
		return nil, domain.ErrNotPaid
	}
	wallet, err := s.wallets.Get(ctx, payout.UserID)
	if err != nil {
		return nil, err
	}

	return s.renderer.Render(ctx, remittance.Advice{
		Issuer:      s.issuer,
		PayoutID:    payout.ID.String(),
		UserID:      payout.UserID,
		Method:      payout.Method,
		Currency:    payout.Currency,
		Amount:      money(payout.Amount),
		RequestedAt: formatTime(&payout.CreatedAt),
		ApprovedAt:  formatTime(payout.ApprovedAt),
		PaidAt:      formatTime(payout.PaidAt),
		Note:        payout.Note,
		Lines: []remittance.Line{
			{Label: "Payout " + payout.ID.String() + " via " + payout.Method, Amount: money(payout.Amount)},
		},
		TotalEarnings:   money(wallet.TotalEarnings),
		TotalCommission: money(wallet.TotalCommission),
		TotalPaidOut:    money(wallet.TotalPaidOut),
		Withdrawable:    money(wallet.WithdrawableBalance),
	})
}

func (s *Service) acquire(ctx context.Context, userID string) (lock.Lease, error) {
	return s.locker.Acquire(ctx, lock.Key("wallet", userID), s.lockTTL)
}

func (s *Service) release(ctx context.Context, userID string, lease lock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("failed to release wallet lock", zap.String("user_id", userID), zap.Error(err))
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
