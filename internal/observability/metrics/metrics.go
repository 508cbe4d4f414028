package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	uploads           metric.Int64Counter
	ledgerPostings    metric.Int64Counter
	walletOperations  metric.Int64Counter
	payoutTransitions metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "royalti"
	}
	meter := provider.Meter(name)

	uploads, err := meter.Int64Counter("royalti_report_uploads_total")
	if err != nil {
		return nil, err
	}
	ledgerPostings, err := meter.Int64Counter("royalti_ledger_postings_total")
	if err != nil {
		return nil, err
	}
	walletOperations, err := meter.Int64Counter("royalti_wallet_operations_total")
	if err != nil {
		return nil, err
	}
	payoutTransitions, err := meter.Int64Counter("royalti_payout_transitions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		uploads:           uploads,
		ledgerPostings:    ledgerPostings,
		walletOperations:  walletOperations,
		payoutTransitions: payoutTransitions,
	}, nil
}

// RecordUpload counts accepted and rejected report uploads.
func (m *Metrics) RecordUpload(ctx context.Context, reportType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("report_type", strings.TrimSpace(reportType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.uploads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerPosting counts per-user ledger reconciliations by direction.
func (m *Metrics) RecordLedgerPosting(ctx context.Context, reportType, direction string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("report_type", strings.TrimSpace(reportType)),
		attribute.String("direction", strings.TrimSpace(direction)),
	)
	m.ledgerPostings.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordWalletOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.walletOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPayoutTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from", strings.TrimSpace(from)),
		attribute.String("to", strings.TrimSpace(to)),
	)
	m.payoutTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"report_type": {},
	"outcome":     {},
	"direction":   {},
	"operation":   {},
	"from":        {},
	"to":          {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
