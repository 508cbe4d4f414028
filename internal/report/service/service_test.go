package service

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
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
	ledgerrepo "github.com/smallbiznis/royalti/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/royalti/internal/ledger/service"
	"github.com/smallbiznis/royalti/internal/lock"
	obsctx "github.com/smallbiznis/royalti/internal/observability/context"
	perioddomain "github.com/smallbiznis/royalti/internal/period/domain"
	periodrepo "github.com/smallbiznis/royalti/internal/period/repository"
	periodservice "github.com/smallbiznis/royalti/internal/period/service"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	recordrepo "github.com/smallbiznis/royalti/internal/record/repository"
	"github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/smallbiznis/royalti/internal/report/normalize"
	"github.com/smallbiznis/royalti/internal/report/repository"
	"github.com/smallbiznis/royalti/internal/report/schema"
	"github.com/smallbiznis/royalti/internal/storage/local"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	walletrepo "github.com/smallbiznis/royalti/internal/wallet/repository"
	walletservice "github.com/smallbiznis/royalti/internal/wallet/service"
	"github.com/smallbiznis/royalti/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingQueue struct {
	mu  sync.Mutex
	ids []snowflake.ID
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, jobID snowflake.ID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, jobID)
	return q.err
}

// failingRecords fails the nth InsertBatch call.
type failingRecords struct {
	recorddomain.Repository
	failOn int
	calls  int
}

func (r *failingRecords) InsertBatch(ctx context.Context, db *gorm.DB, records []recorddomain.Record) error {
	if len(records) == 0 {
		return nil
	}
	r.calls++
	if r.calls == r.failOn {
		return errors.New("disk full")
	}
	return r.Repository.InsertBatch(ctx, db, records)
}

type fixture struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	svc     *Service
	queue   *recordingQueue
	periods perioddomain.Service
	wallets walletdomain.Service
	store   *local.Storage
	root    string
	records recorddomain.Repository
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	batchSize int
	records   func(recorddomain.Repository) recorddomain.Repository
}

func withBatchSize(n int) fixtureOption {
	return func(c *fixtureConfig) { c.batchSize = n }
}

func withRecords(wrap func(recorddomain.Repository) recorddomain.Repository) fixtureOption {
	return func(c *fixtureConfig) { c.records = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	fc := fixtureConfig{records: func(r recorddomain.Repository) recorddomain.Repository { return r }}
	for _, opt := range opts {
		opt(&fc)
	}

	db := dbtest.Open(t,
		&perioddomain.Period{},
		&domain.ReportJob{},
		&domain.RowError{},
		&recorddomain.AnalyticsRecord{},
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

	ingestCfg := config.DefaultIngestionConfig()
	if fc.batchSize > 0 {
		ingestCfg.InsertBatchSize = fc.batchSize
	}
	ingestion := config.NewStaticIngestionConfig(ingestCfg)
	locker := lock.NewLocal()
	cfg := config.Config{StrictInvariants: true, Ingest: config.IngestConfig{LockTTL: time.Minute}}

	root := t.TempDir()
	store, err := local.New(root, clk)
	require.NoError(t, err)

	periods := periodservice.New(periodservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: periodrepo.Provide()})
	wallets := walletservice.New(walletservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Cfg:       cfg,
		Ingestion: ingestion,
		Locker:    locker,
		Repo:      walletrepo.Provide(),
	})
	directory := directoryservice.New(directoryservice.Params{DB: db, Log: log, Clock: clk, Repo: directoryrepo.Provide()})
	records := fc.records(recordrepo.Provide(ingestion))
	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      ledgerrepo.Provide(),
		Records:   records,
		Directory: directory,
		Wallets:   wallets,
	})

	queue := &recordingQueue{}
	svc := New(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Cfg:        cfg,
		Ingestion:  ingestion,
		Repo:       repository.Provide(),
		Records:    records,
		Periods:    periods,
		Ledger:     ledger,
		Storage:    store,
		Locker:     locker,
		Normalizer: normalize.New(schema.NewValidator(ingestion)),
		Queue:      queue,
	})
	return &fixture{db: db, clock: clk, svc: svc, queue: queue, periods: periods, wallets: wallets, store: store, root: root, records: records}
}

func (f *fixture) period(t *testing.T, code string, reportType domain.ReportType) perioddomain.Period {
	t.Helper()
	p, err := f.periods.Create(context.Background(), perioddomain.CreateRequest{Code: code, Type: reportType.String()})
	require.NoError(t, err)
	return p
}

func (f *fixture) upload(t *testing.T, periodID snowflake.ID, reportType domain.ReportType, body string) domain.UploadResponse {
	t.Helper()
	ctx := obsctx.WithActor(context.Background(), obsctx.ActorTypeUser, "ops-1")
	resp, err := f.svc.Upload(ctx, domain.UploadRequest{
		PeriodID: periodID.String(),
		Type:     reportType.String(),
		FileName: "report.csv",
		File:     strings.NewReader(body),
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) job(t *testing.T, id string) domain.ReportJob {
	t.Helper()
	job, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (f *fixture) process(t *testing.T, id string) error {
	t.Helper()
	return f.svc.Process(context.Background(), mustParse(t, id))
}

func (f *fixture) regular(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), userID)
	require.NoError(t, err)
	return w.RegularRoyalty
}

const royaltyHeader = "accountId,isrc,platform,royalty\n"

func TestUploadAndProcessRoyaltyReport(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)

	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+
		"acc-1,ISRC1,spotify,100\n"+
		"acc-1,ISRC2,spotify,50\n"+
		"acc-1,ISRC3,apple,-10\n")
	assert.Equal(t, domain.JobStatusPending, resp.Status)
	require.Len(t, f.queue.ids, 1)

	job := f.job(t, resp.JobID)
	assert.Equal(t, "ops-1", job.UploadedBy)
	assert.True(t, job.Active)

	require.NoError(t, f.process(t, resp.JobID))

	job = f.job(t, resp.JobID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.EqualValues(t, 3, job.Summary.Data().TotalRecords)
	assert.EqualValues(t, 3, job.ProcessedRecords)
	assert.NotNil(t, job.CompletedAt)
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(150)))

	// a second run of the same job is a no-op
	require.NoError(t, f.process(t, resp.JobID))
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(150)))
}

func TestUploadRejectsMissingColumns(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)

	_, err := f.svc.Upload(context.Background(), domain.UploadRequest{
		PeriodID: p.ID.String(),
		Type:     "royalty",
		FileName: "report.csv",
		File:     strings.NewReader("accountId,isrc,platform\nacc-1,ISRC1,spotify\n"),
	})
	assert.ErrorIs(t, err, domain.ErrMissingColumns)
	assert.Empty(t, f.queue.ids)

	var jobs int64
	require.NoError(t, f.db.Model(&domain.ReportJob{}).Count(&jobs).Error)
	assert.Zero(t, jobs)

	assert.Zero(t, f.storedFiles(t))
}

func TestUploadValidatesRequest(t *testing.T) {
	f := newFixture(t)
	royalty := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.UploadRequest
		want error
	}{
		{"bad type", domain.UploadRequest{PeriodID: royalty.ID.String(), Type: "sales", FileName: "a.csv", File: strings.NewReader("x")}, domain.ErrInvalidReportType},
		{"no file", domain.UploadRequest{PeriodID: royalty.ID.String(), Type: "royalty"}, domain.ErrMissingFile},
		{"no period", domain.UploadRequest{Type: "royalty", FileName: "a.csv", File: strings.NewReader("x")}, domain.ErrInvalidPeriod},
		{"unknown period", domain.UploadRequest{PeriodID: "12345", Type: "royalty", FileName: "a.csv", File: strings.NewReader("x")}, domain.ErrPeriodNotFound},
		{"type mismatch", domain.UploadRequest{PeriodID: royalty.ID.String(), Type: "mcn", FileName: "a.csv", File: strings.NewReader("x")}, domain.ErrPeriodTypeMismatch},
		{"empty file", domain.UploadRequest{PeriodID: royalty.ID.String(), Type: "royalty", FileName: "a.csv", File: strings.NewReader("")}, domain.ErrEmptyFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Upload(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.periods.Deactivate(ctx, royalty.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, domain.UploadRequest{PeriodID: royalty.ID.String(), Type: "royalty", FileName: "a.csv", File: strings.NewReader(royaltyHeader)})
	assert.ErrorIs(t, err, domain.ErrPeriodInactive)
}

func TestReuploadReplacesPreviousEarnings(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)

	first := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,100\nacc-1,ISRC2,spotify,50\n")
	require.NoError(t, f.process(t, first.JobID))
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(150)))

	second := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,200\n")
	// wallets keep the previous totals until the replacement completes
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(150)))
	count, err := f.records.CountByJob(context.Background(), f.db, mustParse(t, first.JobID), domain.ReportTypeRoyalty)
	require.NoError(t, err)
	assert.Zero(t, count)
	old := f.job(t, first.JobID)
	assert.False(t, old.Active)
	exists, err := f.store.Exists(context.Background(), old.FilePath)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.process(t, second.JobID))
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(200)))

	count, err = f.records.CountByJob(context.Background(), f.db, mustParse(t, second.JobID), domain.ReportTypeRoyalty)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// the superseded job can no longer run
	require.NoError(t, f.process(t, first.JobID))
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(200)))
}

func TestProcessFailureRollsBackEverything(t *testing.T) {
	failing := &failingRecords{failOn: 2}
	f := newFixture(t, withBatchSize(1), withRecords(func(r recorddomain.Repository) recorddomain.Repository {
		failing.Repository = r
		return failing
	}))
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)

	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+
		"acc-1,ISRC1,spotify,100\n"+
		"acc-1,ISRC2,spotify,50\n"+
		"acc-1,ISRC3,spotify,25\n")
	err := f.process(t, resp.JobID)
	require.Error(t, err)

	job := f.job(t, resp.JobID)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "disk full")

	var rows int64
	require.NoError(t, f.db.Model(&recorddomain.RoyaltyRecord{}).Count(&rows).Error)
	assert.Zero(t, rows)
	assert.True(t, f.regular(t, "acc-1").IsZero())

	// retry succeeds once the store recovers
	failing.failOn = -1
	retried, err := f.svc.Retry(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, retried.Status)
	assert.Empty(t, retried.ErrorMessage)
	assert.Len(t, f.queue.ids, 2)

	require.NoError(t, f.process(t, resp.JobID))
	job = f.job(t, resp.JobID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.Attempts)
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(175)))
}

func TestRetryRequiresFailedJob(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,100\n")

	_, err := f.svc.Retry(context.Background(), resp.JobID)
	assert.ErrorIs(t, err, domain.ErrNotRetryable)

	_, err = f.svc.Retry(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestRowErrorsAreStored(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)

	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+
		"acc-1,ISRC1,spotify,100\n"+
		",ISRC2,spotify,50\n"+
		"acc-2,ISRC3,spotify,abc\n")
	require.NoError(t, f.process(t, resp.JobID))

	job := f.job(t, resp.JobID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.EqualValues(t, 1, job.ProcessedRecords)
	assert.EqualValues(t, 2, job.RejectedRecords)
	assert.EqualValues(t, 3, job.TotalRecords)

	rowErrors, err := f.svc.ListRowErrors(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.Len(t, rowErrors, 2)
	assert.Equal(t, 3, rowErrors[0].Line)
	assert.Equal(t, "missing_account", rowErrors[0].Reason)
	assert.Equal(t, 4, rowErrors[1].Line)
	assert.Equal(t, "invalid_number", rowErrors[1].Reason)
	assert.True(t, f.regular(t, "acc-2").IsZero())
}

func TestDeleteReversesEarnings(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,100\n")
	require.NoError(t, f.process(t, resp.JobID))

	job := f.job(t, resp.JobID)
	require.NoError(t, f.svc.Delete(context.Background(), resp.JobID))

	assert.True(t, f.regular(t, "acc-1").IsZero())
	assert.False(t, f.job(t, resp.JobID).Active)
	exists, err := f.store.Exists(context.Background(), job.FilePath)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), resp.JobID), domain.ErrNotFound)

	list, err := f.svc.List(context.Background(), domain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Jobs)
}

func TestReuploadAfterPayoutReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	body := royaltyHeader + "acc-1,ISRC1,spotify,100\nacc-1,ISRC2,spotify,50\n"

	first := f.upload(t, p.ID, domain.ReportTypeRoyalty, body)
	require.NoError(t, f.process(t, first.JobID))
	_, err := f.wallets.ReserveForPayout(ctx, nil, "acc-1", decimal.NewFromInt(100))
	require.NoError(t, err)

	second := f.upload(t, p.ID, domain.ReportTypeRoyalty, body)
	assert.Equal(t, domain.JobStatusPending, second.Status)
	w, err := f.wallets.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, w.RegularRoyalty.Equal(decimal.NewFromInt(150)))
	assert.True(t, w.PendingPayout.Equal(decimal.NewFromInt(100)))

	require.NoError(t, f.process(t, second.JobID))
	assert.Equal(t, domain.JobStatusCompleted, f.job(t, second.JobID).Status)
	w, err = f.wallets.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, w.RegularRoyalty.Equal(decimal.NewFromInt(150)))
	assert.True(t, w.WithdrawableBalance.Equal(decimal.NewFromInt(50)))

	// removing earnings that back a reservation is refused
	err = f.svc.Delete(ctx, second.JobID)
	assert.ErrorIs(t, err, domain.ErrEarningsCommitted)
	assert.ErrorIs(t, err, walletdomain.ErrInsufficientBalance)
	job := f.job(t, second.JobID)
	assert.True(t, job.Active)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	count, err := f.records.CountByJob(ctx, f.db, job.ID, domain.ReportTypeRoyalty)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(150)))
}

func TestDeleteRefusesProcessingJob(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,100\n")

	claimed, err := f.svc.claim(context.Background(), ptr(f.job(t, resp.JobID)))
	require.NoError(t, err)
	require.True(t, claimed)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), resp.JobID), domain.ErrJobProcessing)
	assert.True(t, f.job(t, resp.JobID).Active)
}

func TestUploadSupersedesJobMidProcessing(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	first := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,100\n")

	claimed, err := f.svc.claim(context.Background(), ptr(f.job(t, first.JobID)))
	require.NoError(t, err)
	require.True(t, claimed)

	second := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,200\n")
	old := f.job(t, first.JobID)
	assert.False(t, old.Active)
	assert.Equal(t, domain.JobStatusFailed, old.Status)
	assert.Equal(t, domain.SupersededMessage, old.ErrorMessage)

	require.NoError(t, f.process(t, second.JobID))
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(200)))
}

// supersedingRecords deactivates the job being ingested on the first batch,
// the way a concurrent upload would.
type supersedingRecords struct {
	recorddomain.Repository
	jobs  domain.Repository
	jobID snowflake.ID
	done  bool
}

func (r *supersedingRecords) InsertBatch(ctx context.Context, db *gorm.DB, records []recorddomain.Record) error {
	if !r.done && len(records) > 0 {
		r.done = true
		if err := r.jobs.Deactivate(ctx, db, r.jobID, time.Now()); err != nil {
			return err
		}
	}
	return r.Repository.InsertBatch(ctx, db, records)
}

func TestProcessDiscardsWorkOfSupersededJob(t *testing.T) {
	superseding := &supersedingRecords{jobs: repository.Provide()}
	f := newFixture(t, withRecords(func(r recorddomain.Repository) recorddomain.Repository {
		superseding.Repository = r
		return superseding
	}))
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,100\n")
	superseding.jobID = mustParse(t, resp.JobID)

	require.NoError(t, f.process(t, resp.JobID))
	assert.True(t, superseding.done)

	var rows int64
	require.NoError(t, f.db.Model(&recorddomain.RoyaltyRecord{}).Count(&rows).Error)
	assert.Zero(t, rows)
	var entries int64
	require.NoError(t, f.db.Model(&ledgerdomain.Entry{}).Count(&entries).Error)
	assert.Zero(t, entries)
	assert.True(t, f.regular(t, "acc-1").IsZero())
	assert.NotEqual(t, domain.JobStatusCompleted, f.job(t, resp.JobID).Status)
}

func TestConcurrentUploadsLeaveOneActiveJob(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	body := royaltyHeader + "acc-1,ISRC1,spotify,100\nacc-1,ISRC2,spotify,50\n"

	const uploads = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  []string
		errs []error
	)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.Upload(context.Background(), domain.UploadRequest{
				PeriodID: p.ID.String(),
				Type:     "royalty",
				FileName: "report.csv",
				File:     strings.NewReader(body),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids = append(ids, resp.JobID)
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	require.Len(t, ids, uploads)

	var active int64
	require.NoError(t, f.db.Model(&domain.ReportJob{}).Where("active = ?", true).Count(&active).Error)
	assert.EqualValues(t, 1, active)
	assert.Equal(t, 1, f.storedFiles(t))

	for _, id := range ids {
		require.NoError(t, f.process(t, id))
	}
	var rows int64
	require.NoError(t, f.db.Model(&recorddomain.RoyaltyRecord{}).Count(&rows).Error)
	assert.EqualValues(t, 2, rows)
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(150)))
}

func TestConcurrentProcessPostsOnce(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,100\nacc-1,ISRC2,spotify,50\n")
	jobID := mustParse(t, resp.JobID)

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.Process(context.Background(), jobID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	job := f.job(t, resp.JobID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Attempts)
	var entries []ledgerdomain.Entry
	require.NoError(t, f.db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.True(t, f.regular(t, "acc-1").Equal(decimal.NewFromInt(150)))
}

func TestAnalyticsReportLeavesWalletsAlone(t *testing.T) {
	f := newFixture(t)
	p := f.period(t, "2024-01", domain.ReportTypeAnalytics)
	resp := f.upload(t, p.ID, domain.ReportTypeAnalytics, "accountId,isrc,platform,units\nacc-1,ISRC1,spotify,12\n")
	require.NoError(t, f.process(t, resp.JobID))

	job := f.job(t, resp.JobID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.EqualValues(t, 12, job.Summary.Data().TotalUnits)

	var wallets int64
	require.NoError(t, f.db.Model(&walletdomain.Wallet{}).Count(&wallets).Error)
	assert.Zero(t, wallets)
}

func TestRecoverFailsStuckAndRequeuesPending(t *testing.T) {
	f := newFixture(t)
	royalty := f.period(t, "2024-01", domain.ReportTypeRoyalty)
	bonus := f.period(t, "2024-01", domain.ReportTypeBonusRoyalty)

	stuck := f.upload(t, royalty.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,100\n")
	ok, err := repository.Provide().Transition(context.Background(), f.db, mustParse(t, stuck.JobID), domain.JobStatusPending, domain.JobStatusProcessing, map[string]any{
		"started_at": f.clock.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.Advance(time.Hour)
	pending := f.upload(t, bonus.ID, domain.ReportTypeBonusRoyalty, "accountId,isrc,platform,bonusRoyalty\nacc-1,ISRC1,spotify,5\n")

	result, err := f.svc.Recover(context.Background(), f.clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []snowflake.ID{mustParse(t, pending.JobID)}, result.Requeued)

	job := f.job(t, stuck.JobID)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, stuckErrorMessage, job.ErrorMessage)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for _, code := range []string{"2024-01", "2024-02", "2024-03"} {
		p := f.period(t, code, domain.ReportTypeRoyalty)
		ids = append(ids, f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,1\n").JobID)
	}

	req := domain.ListRequest{Type: "royalty"}
	req.PageSize = 2
	page, err := f.svc.List(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, page.Jobs, 2)
	assert.Equal(t, ids[2], page.Jobs[0].ID.String())
	require.NotEmpty(t, page.NextPageToken)

	req.PageToken = page.NextPageToken
	page, err = f.svc.List(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, ids[0], page.Jobs[0].ID.String())

	_, err = f.svc.List(context.Background(), domain.ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestEnqueueFailureStillAcceptsUpload(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("queue full")
	p := f.period(t, "2024-01", domain.ReportTypeRoyalty)

	resp := f.upload(t, p.ID, domain.ReportTypeRoyalty, royaltyHeader+"acc-1,ISRC1,spotify,1\n")
	assert.Equal(t, domain.JobStatusPending, f.job(t, resp.JobID).Status)
}

func ptr[T any](v T) *T { return &v }

func mustParse(t *testing.T, id string) snowflake.ID {
	t.Helper()
	parsed, err := snowflake.ParseString(id)
	require.NoError(t, err)
	return parsed
}

func (f *fixture) storedFiles(t *testing.T) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(f.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}
