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
	"github.com/smallbiznis/royalti/internal/wallet/domain"
	"github.com/smallbiznis/royalti/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxUpdateAttempts = 5
	adjustmentLimit   = 200
)

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
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	strict     bool
	ingestion  *config.IngestionConfigHolder
	locker     lock.Locker
	lockTTL    time.Duration
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("wallet.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		strict:     p.Cfg.StrictInvariants,
		ingestion:  p.Ingestion,
		locker:     p.Locker,
		lockTTL:    p.Cfg.Ingest.LockTTL,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Get(ctx context.Context, userID string) (domain.Wallet, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	wallet, err := s.loadOrCreate(ctx, s.db, userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	return *wallet, nil
}

func (s *Service) Credit(ctx context.Context, tx *gorm.DB, req domain.CreditRequest) (domain.Wallet, error) {
	userID, err := normalizeUser(req.UserID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if req.Delta.IsZero() {
		return s.Get(ctx, userID)
	}

	delta := req.Delta
	return s.mutate(ctx, tx, userID, "credit", func(w *domain.Wallet) error {
		if net := delta.Total().Sub(delta.Commission); req.RejectShortfall && net.Neg().GreaterThan(w.WithdrawableBalance) {
			return fmt.Errorf("%w: debit of %s exceeds withdrawable %s", domain.ErrInsufficientBalance, net.Neg().String(), w.WithdrawableBalance.String())
		}
		w.RegularRoyalty = w.RegularRoyalty.Add(delta.Regular)
		w.BonusRoyalty = w.BonusRoyalty.Add(delta.Bonus)
		w.MCNRoyalty = w.MCNRoyalty.Add(delta.Channel)
		w.TotalEarnings = w.TotalEarnings.Add(delta.Total())
		w.TotalCommission = w.TotalCommission.Add(delta.Commission)
		if req.PeriodID != 0 {
			periodID := req.PeriodID
			w.LastPeriodID = &periodID
		}
		return nil
	})
}

// ReserveForPayout moves amount from withdrawable into pending payout.
func (s *Service) ReserveForPayout(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) (domain.Wallet, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if !amount.IsPositive() {
		return domain.Wallet{}, domain.ErrInvalidAmount
	}
	return s.mutate(ctx, tx, userID, "reserve", func(w *domain.Wallet) error {
		if amount.GreaterThan(w.WithdrawableBalance) {
			return domain.ErrInsufficientBalance
		}
		w.PendingPayout = w.PendingPayout.Add(amount)
		return nil
	})
}

func (s *Service) ReleaseReservation(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) (domain.Wallet, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if !amount.IsPositive() {
		return domain.Wallet{}, domain.ErrInvalidAmount
	}
	return s.mutate(ctx, tx, userID, "release", func(w *domain.Wallet) error {
		w.PendingPayout = w.PendingPayout.Sub(amount)
		return nil
	})
}

func (s *Service) SettlePayout(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) (domain.Wallet, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if !amount.IsPositive() {
		return domain.Wallet{}, domain.ErrInvalidAmount
	}
	return s.mutate(ctx, tx, userID, "settle", func(w *domain.Wallet) error {
		w.PendingPayout = w.PendingPayout.Sub(amount)
		w.TotalPaidOut = w.TotalPaidOut.Add(amount)
		return nil
	})
}

// ApplyManualAdjustment credits or debits the available balance and appends
// an audit row in the same transaction. Debits are clamped so funds already
// reserved or paid out stay covered.
func (s *Service) ApplyManualAdjustment(ctx context.Context, req domain.AdjustmentRequest) (domain.Adjustment, error) {
	userID, err := normalizeUser(req.UserID)
	if err != nil {
		return domain.Adjustment{}, err
	}
	adjType := domain.AdjustmentType(strings.ToLower(strings.TrimSpace(req.Type)))
	if adjType != domain.AdjustmentCredit && adjType != domain.AdjustmentDebit {
		return domain.Adjustment{}, domain.ErrInvalidAdjustment
	}
	if !req.Amount.IsPositive() {
		return domain.Adjustment{}, domain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.Adjustment{}, domain.ErrMissingReason
	}

	lease, err := s.locker.Acquire(ctx, lock.Key("wallet", userID), s.lockTTL)
	if err != nil {
		return domain.Adjustment{}, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release wallet lock", zap.String("user_id", userID), zap.Error(err))
		}
	}()

	_, actorID := obsctx.ActorFromContext(ctx)
	var adjustment domain.Adjustment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.mutate(ctx, tx, userID, "adjustment_"+string(adjType), func(w *domain.Wallet) error {
			applied := req.Amount
			if adjType == domain.AdjustmentDebit && applied.GreaterThan(w.WithdrawableBalance) {
				applied = w.WithdrawableBalance
			}
			adjustment = domain.Adjustment{
				ID:            s.genID.Generate(),
				WalletID:      w.ID,
				UserID:        userID,
				Type:          adjType,
				Amount:        req.Amount,
				AppliedAmount: applied,
				Reason:        reason,
				ActorID:       actorID,
				BalanceBefore: w.AvailableBalance,
			}
			if adjType == domain.AdjustmentDebit {
				w.AdjustmentTotal = w.AdjustmentTotal.Sub(applied)
			} else {
				w.AdjustmentTotal = w.AdjustmentTotal.Add(applied)
			}
			return nil
		})
		if err != nil {
			return err
		}
		adjustment.BalanceAfter = wallet.AvailableBalance
		adjustment.CreatedAt = s.clock.Now()
		return s.repo.InsertAdjustment(ctx, tx, &adjustment)
	})
	if err != nil {
		return domain.Adjustment{}, err
	}

	if !adjustment.AppliedAmount.Equal(adjustment.Amount) {
		s.log.Warn("manual debit clamped",
			zap.String("user_id", userID),
			zap.String("requested", adjustment.Amount.String()),
			zap.String("applied", adjustment.AppliedAmount.String()),
		)
	}
	s.log.Info("manual adjustment applied",
		zap.String("user_id", userID),
		zap.String("type", string(adjType)),
		zap.String("amount", adjustment.AppliedAmount.String()),
		zap.String("actor_id", actorID),
	)
	return adjustment, nil
}

func (s *Service) ListAdjustments(ctx context.Context, userID string) ([]domain.Adjustment, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAdjustments(ctx, s.db, userID, adjustmentLimit)
}

// mutate applies fn to a freshly read wallet and writes it back under an
// optimistic version check, re-reading on conflict.
func (s *Service) mutate(ctx context.Context, tx *gorm.DB, userID, operation string, fn func(*domain.Wallet) error) (domain.Wallet, error) {
	conn := tx
	if conn == nil {
		conn = s.db
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		wallet, err := s.loadOrCreate(ctx, conn, userID)
		if err != nil {
			return domain.Wallet{}, err
		}
		if !wallet.Active {
			return domain.Wallet{}, domain.ErrWalletInactive
		}
		expected := wallet.Version
		wallet.Recalculate()

		if err := fn(wallet); err != nil {
			return domain.Wallet{}, err
		}
		if err := s.enforce(userID, operation, wallet); err != nil {
			return domain.Wallet{}, err
		}

		now := s.clock.Now()
		wallet.LastCalculatedAt = &now
		wallet.UpdatedAt = now
		ok, err := s.repo.UpdateVersioned(ctx, conn, wallet, expected)
		if err != nil {
			return domain.Wallet{}, err
		}
		if ok {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordWalletOperation(ctx, operation)
			}
			return *wallet, nil
		}
		s.log.Debug("wallet version conflict, retrying",
			zap.String("user_id", userID),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
		)
	}
	return domain.Wallet{}, db.ErrConcurrentUpdate
}

// enforce recomputes derived balances. Outside production a negative
// balance is an error; in production it is floored and logged.
func (s *Service) enforce(userID, operation string, w *domain.Wallet) error {
	violations := w.Recalculate()
	if len(violations) == 0 {
		return nil
	}
	if s.strict {
		v := violations[0]
		return fmt.Errorf("%w: %s would be %s after %s", domain.ErrInvariantViolation, v.Field, v.Value, operation)
	}
	for _, v := range violations {
		s.log.Warn("wallet balance clamped",
			zap.String("user_id", userID),
			zap.String("operation", operation),
			zap.String("field", v.Field),
			zap.String("value", v.Value.String()),
		)
	}
	return nil
}

func (s *Service) loadOrCreate(ctx context.Context, conn *gorm.DB, userID string) (*domain.Wallet, error) {
	wallet, err := s.repo.FindByUserID(ctx, conn, userID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	now := s.clock.Now()
	fresh := &domain.Wallet{
		ID:                  s.genID.Generate(),
		UserID:              userID,
		Currency:            s.ingestion.Get().DefaultCurrency,
		TotalEarnings:       decimal.Zero,
		RegularRoyalty:      decimal.Zero,
		BonusRoyalty:        decimal.Zero,
		MCNRoyalty:          decimal.Zero,
		TotalCommission:     decimal.Zero,
		AdjustmentTotal:     decimal.Zero,
		AvailableBalance:    decimal.Zero,
		PendingPayout:       decimal.Zero,
		TotalPaidOut:        decimal.Zero,
		WithdrawableBalance: decimal.Zero,
		Active:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.InsertIfAbsent(ctx, conn, fresh); err != nil {
		return nil, err
	}

	wallet, err = s.repo.FindByUserID(ctx, conn, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet for %q vanished after insert", userID)
	}
	return wallet, nil
}

func normalizeUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.ErrInvalidUser
	}
	return userID, nil
}
