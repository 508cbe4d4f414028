package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	storagedomain "github.com/smallbiznis/royalti/internal/storage/domain"
	"github.com/smallbiznis/royalti/pkg/db"
	"gorm.io/gorm"
)

const (
	RowOutcomeAccepted = "accepted"
	RowOutcomeRejected = "rejected"
)

const (
	IngestReasonDeadlineExceeded     = "deadline_exceeded"
	IngestReasonDBLockTimeout        = "db_lock_timeout"
	IngestReasonSerializationFailure = "serialization_failure"
	IngestReasonUniqueViolation      = "unique_violation"
	IngestReasonConcurrentUpdate     = "concurrent_update"
	IngestReasonStorage              = "storage"
	IngestReasonStuck                = "stuck"
	IngestReasonUnknown              = "unknown"
)

// IngestMetrics captures report ingestion health signals.
type IngestMetrics struct {
	jobs        *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	rows        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
	lockWait    *prometheus.HistogramVec
	sweeps      *prometheus.CounterVec
}

var (
	ingestMetricsOnce sync.Once
	ingestMetrics     *IngestMetrics
)

// Ingest returns the singleton ingestion metrics registry.
func Ingest() *IngestMetrics {
	return IngestWithConfig(Config{})
}

// IngestWithConfig returns the singleton ingestion metrics registry using config labels.
func IngestWithConfig(cfg Config) *IngestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetrics = newIngestMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ingestMetrics
}

// ResetIngestMetricsForTest resets the ingestion metrics singleton for tests.
func ResetIngestMetricsForTest() {
	ingestMetricsOnce = sync.Once{}
	ingestMetrics = nil
}

func newIngestMetrics(registerer prometheus.Registerer, cfg Config) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "royalti"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "royalti_ingest_jobs_total",
		Help:        "Report jobs reaching a terminal status.",
		ConstLabels: constLabels,
	}, []string{"type", "status"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "royalti_ingest_job_errors_total",
		Help:        "Report job failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"type", "reason"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "royalti_ingest_rows_total",
		Help:        "Report rows read, split by accepted and rejected.",
		ConstLabels: constLabels,
	}, []string{"type", "outcome"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "royalti_ingest_job_duration_seconds",
		Help:        "Wall time from claim to terminal status.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"type"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "royalti_ingest_queue_depth",
		Help:        "Report jobs waiting for a worker.",
		ConstLabels: constLabels,
	})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "royalti_ingest_lock_wait_seconds",
		Help:        "Time spent waiting for the (period, type) ingestion lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"type"})
	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "royalti_ingest_recovered_jobs_total",
		Help:        "Jobs touched by the recovery sweep.",
		ConstLabels: constLabels,
	}, []string{"action"})

	registerer.MustRegister(jobs, jobErrors, rows, jobDuration, queueDepth, lockWait, sweeps)

	return &IngestMetrics{
		jobs:        jobs,
		jobErrors:   jobErrors,
		rows:        rows,
		jobDuration: jobDuration,
		queueDepth:  queueDepth,
		lockWait:    lockWait,
		sweeps:      sweeps,
	}
}

// ObserveJob records a job reaching status after duration.
func (m *IngestMetrics) ObserveJob(reportType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(reportType, status).Inc()
	m.jobDuration.WithLabelValues(reportType).Observe(duration.Seconds())
}

func (m *IngestMetrics) IncJobError(reportType string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(reportType, ClassifyIngestReason(err)).Inc()
}

func (m *IngestMetrics) AddRows(reportType, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.rows.WithLabelValues(reportType, outcome).Add(float64(count))
}

func (m *IngestMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *IngestMetrics) ObserveLockWait(reportType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(reportType).Observe(duration.Seconds())
}

// AddRecovered counts jobs re-enqueued or failed by the recovery sweep.
func (m *IngestMetrics) AddRecovered(action string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sweeps.WithLabelValues(action).Add(float64(count))
}

// ClassifyIngestReason maps processing errors to low-cardinality reasons.
func ClassifyIngestReason(err error) string {
	switch {
	case err == nil:
		return IngestReasonUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return IngestReasonDeadlineExceeded
	case errors.Is(err, db.ErrConcurrentUpdate):
		return IngestReasonConcurrentUpdate
	case errors.Is(err, storagedomain.ErrUnavailable):
		return IngestReasonStorage
	case hasPGCode(err, "55P03"):
		return IngestReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return IngestReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505"):
		return IngestReasonUniqueViolation
	default:
		return IngestReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
