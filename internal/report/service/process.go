package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/royalti/internal/ledger/domain"
	obsctx "github.com/smallbiznis/royalti/internal/observability/context"
	obslogger "github.com/smallbiznis/royalti/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/royalti/internal/observability/metrics"
	"github.com/smallbiznis/royalti/internal/observability/tracing"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	"github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/smallbiznis/royalti/internal/report/summary"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	recoveryBatch      = 500
	maxErrorMessageLen = 1000
	stuckErrorMessage  = "processing_timeout"
)

var errJobSuperseded = errors.New("job superseded while processing")

type ingestOutcome struct {
	summary domain.Summary
	ledger  ledgerdomain.Result
}

// Process runs one pending job to completion. Jobs that are no longer
// pending or active are skipped without error.
func (s *Service) Process(ctx context.Context, jobID snowflake.ID) error {
	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return err
	}
	if job == nil || !job.Active || job.Status != domain.JobStatusPending {
		s.log.Debug("skipping report job", zap.String("job_id", jobID.String()))
		return nil
	}

	ctx = obsctx.WithJobID(ctx, jobID.String())
	ctx, span := otel.Tracer("royalti/ingest").Start(ctx, "report.process",
		trace.WithAttributes(tracing.SafeAttributes(
			attribute.String("report_type", job.ReportType.String()),
			attribute.String("job_id", jobID.String()),
		)...),
	)
	defer span.End()
	log := obslogger.WithContext(ctx, s.log)

	claimed, err := s.claim(ctx, job)
	if err != nil {
		return err
	}
	if !claimed {
		log.Debug("report job claimed elsewhere or superseded")
		return nil
	}
	log.Info("report job processing", zap.String("report_type", job.ReportType.String()))

	start := time.Now()
	outcome, err := s.ingest(ctx, job)
	if errors.Is(err, errJobSuperseded) {
		log.Info("report job superseded while processing, changes discarded")
		s.ingestMetrics.ObserveJob(job.ReportType.String(), string(domain.JobStatusFailed), time.Since(start))
		return nil
	}
	if err != nil {
		s.fail(ctx, job, err)
		s.ingestMetrics.IncJobError(job.ReportType.String(), err)
		s.ingestMetrics.ObserveJob(job.ReportType.String(), string(domain.JobStatusFailed), time.Since(start))
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "report processing failed")
		return err
	}

	reportType := job.ReportType.String()
	s.ingestMetrics.ObserveJob(reportType, string(domain.JobStatusCompleted), time.Since(start))
	s.ingestMetrics.AddRows(reportType, obsmetrics.RowOutcomeAccepted, int(outcome.summary.TotalRecords))
	s.ingestMetrics.AddRows(reportType, obsmetrics.RowOutcomeRejected, int(outcome.summary.RejectedRecords))
	s.recordPostings(ctx, job.ReportType, outcome.ledger)

	log.Info("report job completed",
		zap.Int64("records", outcome.summary.TotalRecords),
		zap.Int64("rejected", outcome.summary.RejectedRecords),
		zap.Int("wallet_postings", len(outcome.ledger.Postings)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// claim moves job from pending to processing. The (period, type) lock is
// held for the claim only: an upload arriving mid-run supersedes the job,
// and the completion check in ingest then discards its work.
func (s *Service) claim(ctx context.Context, job *domain.ReportJob) (bool, error) {
	lease, err := s.acquire(ctx, job.PeriodID, job.ReportType)
	if err != nil {
		return false, err
	}
	defer s.release(ctx, lease)

	now := s.clock.Now()
	return s.repo.Transition(ctx, s.db, job.ID, domain.JobStatusPending, domain.JobStatusProcessing, map[string]any{
		"started_at": now,
		"attempts":   gorm.Expr("attempts + 1"),
		"updated_at": now,
	})
}

// ingest replaces the (period, type) records with the job's rows, stores
// rejected rows, reconciles wallets and completes the job in one
// transaction.
func (s *Service) ingest(ctx context.Context, job *domain.ReportJob) (ingestOutcome, error) {
	rc, err := s.storage.Open(ctx, job.FilePath)
	if err != nil {
		return ingestOutcome{}, err
	}
	defer rc.Close()

	stream, err := s.normalizer.Open(job.ReportType, job.FileName, rc)
	if err != nil {
		return ingestOutcome{}, err
	}
	defer stream.Close()

	batchSize := s.ingestion.Get().InsertBatchSize
	calc := summary.NewCalculator()
	var out ingestOutcome

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.records.DeleteByPeriodType(ctx, tx, job.PeriodID, job.ReportType); err != nil {
			return err
		}
		if err := s.repo.DeleteRowErrors(ctx, tx, job.ID); err != nil {
			return err
		}

		now := s.clock.Now()
		records := make([]recorddomain.Record, 0, batchSize)
		var rejected []domain.RowError

		for row := range stream.Rows() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if row.Err != nil {
				calc.Reject(1)
				rejected = append(rejected, domain.RowError{
					ID:        s.genID.Generate(),
					JobID:     job.ID,
					Line:      row.Line,
					Field:     row.Err.Field,
					Reason:    row.Err.Reason,
					Raw:       rawValues(row.Err.Raw),
					CreatedAt: now,
				})
				if len(rejected) >= batchSize {
					if err := s.repo.InsertRowErrors(ctx, tx, rejected); err != nil {
						return err
					}
					rejected = rejected[:0]
				}
				continue
			}

			row.Record.Bind(s.genID.Generate(), job.ID, job.PeriodID, now)
			calc.Add(row.Record)
			records = append(records, row.Record)
			if len(records) >= batchSize {
				if err := s.records.InsertBatch(ctx, tx, records); err != nil {
					return err
				}
				records = records[:0]
			}
		}
		if err := stream.Err(); err != nil {
			return err
		}
		if err := s.records.InsertBatch(ctx, tx, records); err != nil {
			return err
		}
		if err := s.repo.InsertRowErrors(ctx, tx, rejected); err != nil {
			return err
		}

		out.summary = calc.Result()
		if job.ReportType.Monetary() {
			result, err := s.ledger.Accumulate(ctx, tx, job.PeriodID, job.ReportType, job.ID)
			if err != nil {
				return fmt.Errorf("ledger: %w", err)
			}
			out.ledger = result
		}

		ok, err := s.repo.Transition(ctx, tx, job.ID, domain.JobStatusProcessing, domain.JobStatusCompleted, map[string]any{
			"total_records":     out.summary.TotalRecords + out.summary.RejectedRecords,
			"processed_records": out.summary.TotalRecords,
			"rejected_records":  out.summary.RejectedRecords,
			"summary":           datatypes.NewJSONType(out.summary),
			"error_message":     "",
			"completed_at":      now,
			"updated_at":        now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errJobSuperseded
		}
		return nil
	})
	if err != nil {
		return ingestOutcome{}, err
	}
	return out, nil
}

func (s *Service) fail(ctx context.Context, job *domain.ReportJob, cause error) {
	now := s.clock.Now()
	ok, err := s.repo.Transition(context.WithoutCancel(ctx), s.db, job.ID, domain.JobStatusProcessing, domain.JobStatusFailed, map[string]any{
		"error_message": truncate(cause.Error(), maxErrorMessageLen),
		"completed_at":  now,
		"updated_at":    now,
	})
	log := obslogger.WithContext(ctx, s.log)
	switch {
	case err != nil:
		log.Error("failed to mark report job failed", zap.Error(err), zap.NamedError("cause", cause))
	case !ok:
		log.Warn("report job left processing before it could be failed", zap.NamedError("cause", cause))
	default:
		log.Error("report job failed", zap.Error(cause))
	}
}

// Recover fails jobs stuck in processing since before stuckBefore and
// returns the pending jobs that need to be queued again.
func (s *Service) Recover(ctx context.Context, stuckBefore time.Time) (domain.RecoveryResult, error) {
	var result domain.RecoveryResult

	stuck, err := s.repo.ListStuck(ctx, s.db, stuckBefore, recoveryBatch)
	if err != nil {
		return result, err
	}
	for _, job := range stuck {
		now := s.clock.Now()
		ok, err := s.repo.Transition(ctx, s.db, job.ID, domain.JobStatusProcessing, domain.JobStatusFailed, map[string]any{
			"error_message": stuckErrorMessage,
			"completed_at":  now,
			"updated_at":    now,
		})
		if err != nil {
			return result, err
		}
		if ok {
			result.Failed++
			s.log.Warn("stuck report job failed",
				zap.String("job_id", job.ID.String()),
				zap.String("report_type", job.ReportType.String()),
			)
		}
	}

	pending, err := s.repo.ListIDsByStatus(ctx, s.db, domain.JobStatusPending, recoveryBatch)
	if err != nil {
		return result, err
	}
	result.Requeued = pending

	s.ingestMetrics.AddRecovered("failed", result.Failed)
	s.ingestMetrics.AddRecovered("requeued", len(result.Requeued))
	return result, nil
}

func rawValues(raw map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
