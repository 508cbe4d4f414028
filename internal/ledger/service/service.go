package service

import (
	"context"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/internal/clock"
	directorydomain "github.com/smallbiznis/royalti/internal/directory/domain"
	ledgerdomain "github.com/smallbiznis/royalti/internal/ledger/domain"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entryListLimit = 500

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      ledgerdomain.Repository
	Records   recorddomain.Repository
	Directory directorydomain.Service
	Wallets   walletdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      ledgerdomain.Repository
	records   recorddomain.Repository
	directory directorydomain.Service
	wallets   walletdomain.Service
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("ledger.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		records:   p.Records,
		directory: p.Directory,
		wallets:   p.Wallets,
	}
}

type userTotals struct {
	records  int64
	earnings recorddomain.Earnings
}

func (s *Service) Accumulate(ctx context.Context, tx *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType, jobID snowflake.ID) (ledgerdomain.Result, error) {
	return s.reconcile(ctx, tx, periodID, reportType, jobID, false)
}

func (s *Service) Reverse(ctx context.Context, tx *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType, jobID snowflake.ID) (ledgerdomain.Result, error) {
	return s.reconcile(ctx, tx, periodID, reportType, jobID, true)
}

func (s *Service) reconcile(ctx context.Context, tx *gorm.DB, periodID snowflake.ID, reportType reportdomain.ReportType, jobID snowflake.ID, rejectShortfall bool) (ledgerdomain.Result, error) {
	if tx == nil {
		return ledgerdomain.Result{}, ledgerdomain.ErrMissingTx
	}
	if !reportType.Monetary() {
		return ledgerdomain.Result{}, ledgerdomain.ErrNotMonetary
	}

	accounts, err := s.records.TotalsByAccount(ctx, tx, periodID, reportType)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	accountIDs := make([]string, 0, len(accounts))
	for _, a := range accounts {
		accountIDs = append(accountIDs, a.AccountID)
	}
	owners, err := s.directory.Resolve(ctx, tx, accountIDs)
	if err != nil {
		return ledgerdomain.Result{}, err
	}

	current := make(map[string]userTotals, len(accounts))
	for _, a := range accounts {
		userID := owners[a.AccountID]
		t := current[userID]
		t.records += a.Records
		t.earnings = t.earnings.Add(a.Earnings)
		current[userID] = t
	}

	entries, err := s.repo.ListByPeriodType(ctx, tx, periodID, reportType)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	posted := make(map[string]ledgerdomain.Entry, len(entries))
	for _, e := range entries {
		posted[e.UserID] = e
	}

	users := make([]string, 0, len(current)+len(posted))
	for userID := range current {
		users = append(users, userID)
	}
	for userID := range posted {
		if _, ok := current[userID]; !ok {
			users = append(users, userID)
		}
	}
	slices.Sort(users)

	now := s.clock.Now()
	result := ledgerdomain.Result{Users: len(users)}
	for _, userID := range users {
		next := current[userID]
		entry, exists := posted[userID]
		delta := next.earnings.Sub(entry.Earnings())
		if delta.IsZero() && exists {
			continue
		}

		if !delta.IsZero() {
			if _, err := s.wallets.Credit(ctx, tx, walletdomain.CreditRequest{
				UserID:          userID,
				Delta:           delta,
				PeriodID:        periodID,
				RejectShortfall: rejectShortfall,
			}); err != nil {
				return ledgerdomain.Result{}, err
			}
			posting := ledgerdomain.Posting{UserID: userID, Direction: direction(delta), Delta: delta}
			result.Postings = append(result.Postings, posting)
		}

		if !exists {
			entry = ledgerdomain.Entry{
				ID:         s.genID.Generate(),
				UserID:     userID,
				PeriodID:   periodID,
				ReportType: reportType,
				CreatedAt:  now,
			}
		}
		entry.JobID = jobID
		entry.Records = next.records
		entry.Regular = next.earnings.Regular
		entry.Bonus = next.earnings.Bonus
		entry.Channel = next.earnings.Channel
		entry.Commission = next.earnings.Commission
		entry.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, &entry); err != nil {
			return ledgerdomain.Result{}, err
		}
	}

	s.log.Info("ledger reconciled",
		zap.String("period_id", periodID.String()),
		zap.String("report_type", reportType.String()),
		zap.String("job_id", jobID.String()),
		zap.Int("users", result.Users),
		zap.Int("postings", len(result.Postings)),
	)
	return result, nil
}

func (s *Service) ListEntries(ctx context.Context, userID string) ([]ledgerdomain.Entry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	return s.repo.ListByUser(ctx, s.db, userID, entryListLimit)
}

// direction classifies a delta by its net effect on available balance.
func direction(delta recorddomain.Earnings) ledgerdomain.LedgerEntryDirection {
	if delta.Total().Sub(delta.Commission).IsNegative() {
		return ledgerdomain.LedgerEntryDirectionDebit
	}
	return ledgerdomain.LedgerEntryDirectionCredit
}
