package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/config"
	directorydomain "github.com/smallbiznis/royalti/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/royalti/internal/directory/repository"
	directoryservice "github.com/smallbiznis/royalti/internal/directory/service"
	ledgerdomain "github.com/smallbiznis/royalti/internal/ledger/domain"
	"github.com/smallbiznis/royalti/internal/ledger/repository"
	"github.com/smallbiznis/royalti/internal/lock"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	recordrepo "github.com/smallbiznis/royalti/internal/record/repository"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	walletrepo "github.com/smallbiznis/royalti/internal/wallet/repository"
	walletservice "github.com/smallbiznis/royalti/internal/wallet/service"
	"github.com/smallbiznis/royalti/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	ledger    ledgerdomain.Service
	records   recorddomain.Repository
	wallets   walletdomain.Service
	directory directorydomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t,
		&recorddomain.RoyaltyRecord{},
		&recorddomain.ChannelRevenueRecord{},
		&ledgerdomain.Entry{},
		&walletdomain.Wallet{},
		&walletdomain.Adjustment{},
		&directorydomain.AccountOwner{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	wallets := walletservice.New(walletservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Cfg:       config.Config{StrictInvariants: true},
		Ingestion: config.NewStaticIngestionConfig(config.DefaultIngestionConfig()),
		Locker:    lock.NewLocal(),
		Repo:      walletrepo.Provide(),
	})
	directory := directoryservice.New(directoryservice.Params{
		DB:    db,
		Log:   log,
		Clock: clk,
		Repo:  directoryrepo.Provide(),
	})
	records := recordrepo.Provide(config.NewStaticIngestionConfig(config.DefaultIngestionConfig()))
	ledger := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Records:   records,
		Directory: directory,
		Wallets:   wallets,
	})
	return &fixture{db: db, node: node, ledger: ledger, records: records, wallets: wallets, directory: directory}
}

func (f *fixture) replaceRoyalty(t *testing.T, periodID snowflake.ID, rows map[string][]int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.records.DeleteByPeriodType(ctx, f.db, periodID, reportdomain.ReportTypeRoyalty)
	require.NoError(t, err)

	var batch []recorddomain.Record
	for account, amounts := range rows {
		for _, amount := range amounts {
			rec := &recorddomain.RoyaltyRecord{
				ReportType:     reportdomain.ReportTypeRoyalty,
				AccountID:      account,
				ISRC:           "X",
				TrackTitle:     "t",
				StoreName:      "spotify",
				RegularRoyalty: decimal.NewFromInt(amount),
				BonusRoyalty:   decimal.Zero,
				TotalEarnings:  decimal.NewFromInt(amount),
				Commission:     decimal.NewFromInt(1),
			}
			rec.Bind(f.node.Generate(), 1, periodID, time.Now())
			batch = append(batch, rec)
		}
	}
	require.NoError(t, f.records.InsertBatch(ctx, f.db, batch))
}

func (f *fixture) accumulate(t *testing.T, periodID snowflake.ID) ledgerdomain.Result {
	t.Helper()
	var result ledgerdomain.Result
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = f.ledger.Accumulate(context.Background(), tx, periodID, reportdomain.ReportTypeRoyalty, 1)
		return err
	})
	require.NoError(t, err)
	return result
}

func TestAccumulateReconcilesInsteadOfAdding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	periodID := f.node.Generate()

	_, err := f.directory.SetOwner(ctx, "acc-2", "acc-1")
	require.NoError(t, err)

	f.replaceRoyalty(t, periodID, map[string][]int64{"acc-1": {100, 50, 0}, "acc-2": {10}})
	result := f.accumulate(t, periodID)
	require.Len(t, result.Postings, 1)
	assert.Equal(t, ledgerdomain.LedgerEntryDirectionCredit, result.Postings[0].Direction)

	w, err := f.wallets.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, w.RegularRoyalty.Equal(decimal.NewFromInt(160)), w.RegularRoyalty.String())
	assert.True(t, w.TotalCommission.Equal(decimal.NewFromInt(4)))
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(156)))

	again := f.accumulate(t, periodID)
	assert.Empty(t, again.Postings)
	w, err = f.wallets.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, w.RegularRoyalty.Equal(decimal.NewFromInt(160)))

	f.replaceRoyalty(t, periodID, map[string][]int64{"acc-1": {40}})
	lowered := f.accumulate(t, periodID)
	require.Len(t, lowered.Postings, 1)
	assert.Equal(t, ledgerdomain.LedgerEntryDirectionDebit, lowered.Postings[0].Direction)
	w, err = f.wallets.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, w.RegularRoyalty.Equal(decimal.NewFromInt(40)))
	assert.True(t, w.TotalCommission.Equal(decimal.NewFromInt(1)))

	entries, err := f.ledger.ListEntries(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Records)
	assert.True(t, entries[0].Regular.Equal(decimal.NewFromInt(40)))
}

func TestAccumulateZeroesRemovedUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	periodID := f.node.Generate()

	f.replaceRoyalty(t, periodID, map[string][]int64{"acc-1": {30}, "acc-9": {5}})
	f.accumulate(t, periodID)

	f.replaceRoyalty(t, periodID, map[string][]int64{"acc-1": {30}})
	result := f.accumulate(t, periodID)
	require.Len(t, result.Postings, 1)
	assert.Equal(t, "acc-9", result.Postings[0].UserID)

	w, err := f.wallets.Get(ctx, "acc-9")
	require.NoError(t, err)
	assert.True(t, w.TotalEarnings.IsZero())
	assert.True(t, w.WithdrawableBalance.IsZero())
}

func TestAccumulateRequiresMonetaryTypeAndTx(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Accumulate(context.Background(), nil, 1, reportdomain.ReportTypeRoyalty, 1)
	assert.ErrorIs(t, err, ledgerdomain.ErrMissingTx)
	_, err = f.ledger.Accumulate(context.Background(), f.db, 1, reportdomain.ReportTypeAnalytics, 1)
	assert.ErrorIs(t, err, ledgerdomain.ErrNotMonetary)
}
