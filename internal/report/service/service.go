package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/config"
	ledgerdomain "github.com/smallbiznis/royalti/internal/ledger/domain"
	"github.com/smallbiznis/royalti/internal/lock"
	obsctx "github.com/smallbiznis/royalti/internal/observability/context"
	obsmetrics "github.com/smallbiznis/royalti/internal/observability/metrics"
	perioddomain "github.com/smallbiznis/royalti/internal/period/domain"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	"github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/smallbiznis/royalti/internal/report/normalize"
	storagedomain "github.com/smallbiznis/royalti/internal/storage/domain"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	"github.com/smallbiznis/royalti/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	uploadOutcomeAccepted = "accepted"
	uploadOutcomeRejected = "rejected"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Cfg           config.Config
	Ingestion     *config.IngestionConfigHolder
	Repo          domain.Repository
	Records       recorddomain.Repository
	Periods       perioddomain.Service
	Ledger        ledgerdomain.Service
	Storage       storagedomain.Storage
	Locker        lock.Locker
	Normalizer    *normalize.Normalizer
	Queue         domain.Queue
	ObsMetrics    *obsmetrics.Metrics       `optional:"true"`
	IngestMetrics *obsmetrics.IngestMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	lockTTL       time.Duration
	ingestion     *config.IngestionConfigHolder
	repo          domain.Repository
	records       recorddomain.Repository
	periods       perioddomain.Service
	ledger        ledgerdomain.Service
	storage       storagedomain.Storage
	locker        lock.Locker
	normalizer    *normalize.Normalizer
	queue         domain.Queue
	obsMetrics    *obsmetrics.Metrics
	ingestMetrics *obsmetrics.IngestMetrics
}

// New returns the report service. The same value serves uploads and the
// background processor.
func New(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("report.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		lockTTL:       p.Cfg.Ingest.LockTTL,
		ingestion:     p.Ingestion,
		repo:          p.Repo,
		records:       p.Records,
		periods:       p.Periods,
		ledger:        p.Ledger,
		storage:       p.Storage,
		locker:        p.Locker,
		normalizer:    p.Normalizer,
		queue:         p.Queue,
		obsMetrics:    p.ObsMetrics,
		ingestMetrics: p.IngestMetrics,
	}
}

// Upload validates and stores a report file, supersedes the active job for
// the same (period, type) and queues a new pending job.
func (s *Service) Upload(ctx context.Context, req domain.UploadRequest) (domain.UploadResponse, error) {
	reportType, err := domain.ParseReportType(req.Type)
	if err != nil {
		return domain.UploadResponse{}, err
	}
	if req.File == nil || strings.TrimSpace(req.FileName) == "" {
		return domain.UploadResponse{}, domain.ErrMissingFile
	}
	period, err := s.resolvePeriod(ctx, req.PeriodID, reportType)
	if err != nil {
		s.recordUpload(ctx, reportType, uploadOutcomeRejected)
		return domain.UploadResponse{}, err
	}

	obj, err := s.storage.Store(ctx, req.FileName, req.File)
	if err != nil {
		return domain.UploadResponse{}, err
	}
	if err := s.checkHeader(ctx, reportType, obj); err != nil {
		s.discard(ctx, obj.Path)
		s.recordUpload(ctx, reportType, uploadOutcomeRejected)
		return domain.UploadResponse{}, err
	}

	lease, err := s.acquire(ctx, period.ID, reportType)
	if err != nil {
		s.discard(ctx, obj.Path)
		return domain.UploadResponse{}, err
	}
	defer s.release(ctx, lease)

	_, actorID := obsctx.ActorFromContext(ctx)
	now := s.clock.Now()
	job := domain.ReportJob{
		ID:         s.genID.Generate(),
		PeriodID:   period.ID,
		ReportType: reportType,
		FileName:   obj.Name,
		FilePath:   obj.Path,
		FileSize:   obj.Size,
		Status:     domain.JobStatusPending,
		Summary:    datatypes.NewJSONType(domain.Summary{}),
		UploadedBy: actorID,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var superseded *domain.ReportJob
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		previous, err := s.repo.FindActive(ctx, tx, period.ID, reportType)
		if err != nil {
			return err
		}
		if previous != nil {
			if err := s.supersede(ctx, tx, previous); err != nil {
				return err
			}
			superseded = previous
		}
		return s.repo.Insert(ctx, tx, &job)
	})
	if err != nil {
		s.discard(ctx, obj.Path)
		return domain.UploadResponse{}, err
	}
	if superseded != nil {
		s.discard(ctx, superseded.FilePath)
		s.log.Info("report job superseded",
			zap.String("job_id", superseded.ID.String()),
			zap.String("replaced_by", job.ID.String()),
			zap.String("previous_status", string(superseded.Status)),
		)
	}
	s.recordUpload(ctx, reportType, uploadOutcomeAccepted)

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		s.log.Warn("report job not queued, recovery sweep will pick it up",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}

	s.log.Info("report uploaded",
		zap.String("job_id", job.ID.String()),
		zap.String("period_id", period.ID.String()),
		zap.String("report_type", reportType.String()),
		zap.Int64("file_size", obj.Size),
		zap.String("actor_id", actorID),
	)
	return domain.UploadResponse{JobID: job.ID.String(), Status: job.Status}, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.ReportJob, error) {
	jobID, err := parseID(id)
	if err != nil {
		return domain.ReportJob{}, err
	}
	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return domain.ReportJob{}, err
	}
	if job == nil {
		return domain.ReportJob{}, domain.ErrNotFound
	}
	return *job, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	var filter domain.ListFilter
	if strings.TrimSpace(req.Type) != "" {
		reportType, err := domain.ParseReportType(req.Type)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.Type = reportType
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseJobStatus(req.Status)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.Status = status
	}
	if strings.TrimSpace(req.PeriodID) != "" {
		periodID, err := snowflake.ParseString(strings.TrimSpace(req.PeriodID))
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPeriod
		}
		filter.PeriodID = periodID
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
	jobs, err := s.repo.List(ctx, s.db, filter, afterID, limit+1)
	if err != nil {
		return domain.ListResponse{}, err
	}
	jobs, pageInfo := pagination.Trim(jobs, limit, func(job domain.ReportJob) string {
		return job.ID.String()
	})
	if jobs == nil {
		jobs = []domain.ReportJob{}
	}
	return domain.ListResponse{PageInfo: pageInfo, Jobs: jobs}, nil
}

func (s *Service) ListRowErrors(ctx context.Context, id string) ([]domain.RowError, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRowErrors(ctx, s.db, job.ID)
}

// Retry moves a failed job back to pending and queues it again.
func (s *Service) Retry(ctx context.Context, id string) (domain.ReportJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return domain.ReportJob{}, err
	}
	if !job.Active || job.Status != domain.JobStatusFailed {
		return domain.ReportJob{}, domain.ErrNotRetryable
	}

	now := s.clock.Now()
	ok, err := s.repo.Transition(ctx, s.db, job.ID, domain.JobStatusFailed, domain.JobStatusPending, map[string]any{
		"error_message": "",
		"updated_at":    now,
	})
	if err != nil {
		return domain.ReportJob{}, err
	}
	if !ok {
		return domain.ReportJob{}, domain.ErrNotRetryable
	}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		s.log.Warn("retried job not queued", zap.String("job_id", job.ID.String()), zap.Error(err))
	}

	_, actorID := obsctx.ActorFromContext(ctx)
	s.log.Info("report job retried", zap.String("job_id", job.ID.String()), zap.String("actor_id", actorID))
	job.Status = domain.JobStatusPending
	job.ErrorMessage = ""
	job.UpdatedAt = now
	return job, nil
}

// Delete soft-deletes a job, removes its records and file, and reverses its
// wallet postings. A job that is processing cannot be deleted, and neither
// can one whose earnings were already reserved or paid out.
func (s *Service) Delete(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Active {
		return domain.ErrNotFound
	}

	lease, err := s.acquire(ctx, job.PeriodID, job.ReportType)
	if err != nil {
		return err
	}
	defer s.release(ctx, lease)

	var reversed ledgerdomain.Result
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if current == nil || !current.Active {
			return domain.ErrNotFound
		}
		if current.Status == domain.JobStatusProcessing {
			return domain.ErrJobProcessing
		}
		reversed, err = s.retire(ctx, tx, current)
		return err
	})
	if errors.Is(err, walletdomain.ErrInsufficientBalance) || errors.Is(err, walletdomain.ErrInvariantViolation) {
		return fmt.Errorf("%w: %w", domain.ErrEarningsCommitted, err)
	}
	if err != nil {
		return err
	}
	s.recordPostings(ctx, job.ReportType, reversed)
	s.discard(ctx, job.FilePath)

	_, actorID := obsctx.ActorFromContext(ctx)
	s.log.Info("report job deleted", zap.String("job_id", job.ID.String()), zap.String("actor_id", actorID))
	return nil
}

// supersede deactivates job in favour of a newer upload and drops the rows
// it wrote. Ledger entries keep the totals already posted, so the newer job
// reconciles against them in one step once it completes. Rows of a job
// still being ingested are uncommitted and left to its own rollback.
func (s *Service) supersede(ctx context.Context, tx *gorm.DB, job *domain.ReportJob) error {
	if err := s.repo.Deactivate(ctx, tx, job.ID, s.clock.Now()); err != nil {
		return err
	}
	if err := s.repo.DeleteRowErrors(ctx, tx, job.ID); err != nil {
		return err
	}
	_, err := s.records.DeleteByJob(ctx, tx, job.ID, job.ReportType)
	return err
}

// retire deactivates job, removes every record of its (period, type) and
// reconciles wallets to zero. Callers hold the (period, type) lock and
// delete the stored file after commit.
func (s *Service) retire(ctx context.Context, tx *gorm.DB, job *domain.ReportJob) (ledgerdomain.Result, error) {
	if err := s.repo.Deactivate(ctx, tx, job.ID, s.clock.Now()); err != nil {
		return ledgerdomain.Result{}, err
	}
	if err := s.repo.DeleteRowErrors(ctx, tx, job.ID); err != nil {
		return ledgerdomain.Result{}, err
	}
	if _, err := s.records.DeleteByPeriodType(ctx, tx, job.PeriodID, job.ReportType); err != nil {
		return ledgerdomain.Result{}, err
	}
	if !job.ReportType.Monetary() {
		return ledgerdomain.Result{}, nil
	}
	return s.ledger.Reverse(ctx, tx, job.PeriodID, job.ReportType, job.ID)
}

func (s *Service) resolvePeriod(ctx context.Context, rawID string, reportType domain.ReportType) (perioddomain.Period, error) {
	if strings.TrimSpace(rawID) == "" {
		return perioddomain.Period{}, domain.ErrInvalidPeriod
	}
	period, err := s.periods.Get(ctx, rawID)
	switch {
	case errors.Is(err, perioddomain.ErrInvalidID):
		return perioddomain.Period{}, domain.ErrInvalidPeriod
	case errors.Is(err, perioddomain.ErrNotFound):
		return perioddomain.Period{}, domain.ErrPeriodNotFound
	case err != nil:
		return perioddomain.Period{}, err
	}
	if !period.Active {
		return perioddomain.Period{}, domain.ErrPeriodInactive
	}
	if period.ReportType != reportType {
		return perioddomain.Period{}, domain.ErrPeriodTypeMismatch
	}
	return period, nil
}

func (s *Service) checkHeader(ctx context.Context, reportType domain.ReportType, obj storagedomain.Object) error {
	if obj.Size == 0 {
		return domain.ErrEmptyFile
	}
	rc, err := s.storage.Open(ctx, obj.Path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return s.normalizer.CheckHeader(reportType, obj.Name, rc)
}

func (s *Service) acquire(ctx context.Context, periodID snowflake.ID, reportType domain.ReportType) (lock.Lease, error) {
	start := time.Now()
	lease, err := s.locker.Acquire(ctx, lock.Key("ingest", periodID.String(), reportType.String()), s.lockTTL)
	s.ingestMetrics.ObserveLockWait(reportType.String(), time.Since(start))
	return lease, err
}

func (s *Service) release(ctx context.Context, lease lock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("failed to release ingest lock", zap.Error(err))
	}
}

func (s *Service) discard(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), path); err != nil && !errors.Is(err, storagedomain.ErrNotFound) {
		s.log.Warn("failed to delete stored report file", zap.String("path", path), zap.Error(err))
	}
}

func (s *Service) recordUpload(ctx context.Context, reportType domain.ReportType, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordUpload(ctx, reportType.String(), outcome)
	}
}

func (s *Service) recordPostings(ctx context.Context, reportType domain.ReportType, result ledgerdomain.Result) {
	if s.obsMetrics == nil {
		return
	}
	for _, p := range result.Postings {
		s.obsMetrics.RecordLedgerPosting(ctx, reportType.String(), string(p.Direction))
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

var (
	_ domain.Service   = (*Service)(nil)
	_ domain.Processor = (*Service)(nil)
)
