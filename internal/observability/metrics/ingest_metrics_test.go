package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	storagedomain "github.com/smallbiznis/royalti/internal/storage/domain"
	"github.com/smallbiznis/royalti/pkg/db"
	"gorm.io/gorm"
)

func TestIngestMetricsCountsJobsAndRows(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newIngestMetrics(registry, Config{ServiceName: "royalti", Environment: "test"})

	m.ObserveJob("royalty", "completed", 2*time.Second)
	m.AddRows("royalty", RowOutcomeAccepted, 3)
	m.AddRows("royalty", RowOutcomeRejected, 1)
	m.AddRows("royalty", RowOutcomeRejected, 0)
	m.IncJobError("royalty", context.DeadlineExceeded)

	base := map[string]string{"service": "royalti", "env": "test"}
	if got := counterValue(t, registry, "royalti_ingest_jobs_total", with(base, "type", "royalty", "status", "completed")); got != 1 {
		t.Fatalf("expected 1 completed job, got %v", got)
	}
	if got := counterValue(t, registry, "royalti_ingest_rows_total", with(base, "type", "royalty", "outcome", RowOutcomeAccepted)); got != 3 {
		t.Fatalf("expected 3 accepted rows, got %v", got)
	}
	if got := counterValue(t, registry, "royalti_ingest_rows_total", with(base, "type", "royalty", "outcome", RowOutcomeRejected)); got != 1 {
		t.Fatalf("expected 1 rejected row, got %v", got)
	}
	if got := counterValue(t, registry, "royalti_ingest_job_errors_total", with(base, "type", "royalty", "reason", IngestReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected 1 deadline error, got %v", got)
	}
}

func TestClassifyIngestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: IngestReasonUnknown},
		{err: fmt.Errorf("claim: %w", context.Canceled), want: IngestReasonDeadlineExceeded},
		{err: fmt.Errorf("wallet: %w", db.ErrConcurrentUpdate), want: IngestReasonConcurrentUpdate},
		{err: fmt.Errorf("open: %w", storagedomain.ErrUnavailable), want: IngestReasonStorage},
		{err: &pgconn.PgError{Code: "40001"}, want: IngestReasonSerializationFailure},
		{err: &pgconn.PgError{Code: "55P03"}, want: IngestReasonDBLockTimeout},
		{err: gorm.ErrDuplicatedKey, want: IngestReasonUniqueViolation},
		{err: fmt.Errorf("boom"), want: IngestReasonUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyIngestReason(tt.err); got != tt.want {
			t.Fatalf("ClassifyIngestReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func with(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
