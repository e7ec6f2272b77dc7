// Package telemetry provides OpenTelemetry instrumentation for the categorizer.
// It exports Prometheus metrics and provides tracing capabilities.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "categorizer"

// Batch statuses used as metric labels.
const (
	BatchCommitted = "committed"
	BatchRetried   = "retried"
	BatchFailed    = "failed"
)

// Metrics holds all categorizer Prometheus metrics
type Metrics struct {
	// Classification metrics
	CommentsClassified *prometheus.CounterVec
	NoiseDetected      *prometheus.CounterVec
	ClassifyDuration   prometheus.Histogram

	// Batch metrics
	Batches       *prometheus.CounterVec
	BatchDuration prometheus.Histogram
	BatchSize     prometheus.Histogram
	RowsWritten   *prometheus.CounterVec

	// Run metrics
	ActiveWorkers prometheus.Gauge
	PendingRows   *prometheus.GaugeVec
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	gatherer prometheus.Gatherer
}

// NewProvider initializes telemetry with metrics on the default Prometheus registry.
func NewProvider() *Provider {
	return newProvider(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewProviderWithRegistry initializes telemetry on a private registry.
func NewProviderWithRegistry(reg *prometheus.Registry) *Provider {
	return newProvider(reg, reg)
}

func newProvider(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Provider {
	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		gatherer: gatherer,
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func initMetrics(f promauto.Factory) *Metrics {
	m := &Metrics{}
	initClassificationMetrics(f, m)
	initBatchMetrics(f, m)
	initRunMetrics(f, m)
	return m
}

func initClassificationMetrics(f promauto.Factory, m *Metrics) {
	m.CommentsClassified = f.NewCounterVec(prometheus.CounterOpts{
		Name: "categorizer_comments_classified_total",
		Help: "Total comments classified by outcome and category",
	}, []string{"outcome", "category"})

	m.NoiseDetected = f.NewCounterVec(prometheus.CounterOpts{
		Name: "categorizer_noise_total",
		Help: "Total comments flagged as noise by reason",
	}, []string{"reason"})

	m.ClassifyDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "categorizer_classify_duration_seconds",
		Help:    "Time to normalize, filter and match a single comment",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
}

func initBatchMetrics(f promauto.Factory, m *Metrics) {
	m.Batches = f.NewCounterVec(prometheus.CounterOpts{
		Name: "categorizer_batches_total",
		Help: "Batches by status (committed, retried, failed)",
	}, []string{"status"})

	m.BatchDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "categorizer_batch_duration_seconds",
		Help:    "Time to select, classify and write back one batch",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	m.BatchSize = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "categorizer_batch_size",
		Help:    "Number of rows per batch",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
	})

	m.RowsWritten = f.NewCounterVec(prometheus.CounterOpts{
		Name: "categorizer_rows_written_total",
		Help: "Rows visited by the write-back, by result (updated, unchanged)",
	}, []string{"result"})
}

func initRunMetrics(f promauto.Factory, m *Metrics) {
	m.ActiveWorkers = f.NewGauge(prometheus.GaugeOpts{
		Name: "categorizer_active_workers",
		Help: "Currently active batch workers",
	})

	m.PendingRows = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "categorizer_pending_rows",
		Help: "Rows matching a selector when the last run started",
	}, []string{"selector"})
}

// RecordClassification records metrics for a single classification
func (p *Provider) RecordClassification(outcome domain.Outcome, category, noiseReason string, duration time.Duration) {
	p.Metrics.CommentsClassified.WithLabelValues(string(outcome), category).Inc()
	if noiseReason != "" {
		p.Metrics.NoiseDetected.WithLabelValues(noiseReason).Inc()
	}
	p.Metrics.ClassifyDuration.Observe(duration.Seconds())
}

// RecordBatch records a finished batch attempt.
func (p *Provider) RecordBatch(status string, size int, duration time.Duration) {
	p.Metrics.Batches.WithLabelValues(status).Inc()
	if status != BatchCommitted {
		return
	}
	p.Metrics.BatchSize.Observe(float64(size))
	p.Metrics.BatchDuration.Observe(duration.Seconds())
}

// RecordWrites records the write-back result of a committed batch.
func (p *Provider) RecordWrites(updated, unchanged int) {
	p.Metrics.RowsWritten.WithLabelValues("updated").Add(float64(updated))
	p.Metrics.RowsWritten.WithLabelValues("unchanged").Add(float64(unchanged))
}

// SetActiveWorkers adjusts the active worker gauge by delta.
func (p *Provider) SetActiveWorkers(delta int) {
	p.Metrics.ActiveWorkers.Add(float64(delta))
}

// SetPending sets the pending row gauge for a selector.
func (p *Provider) SetPending(selector string, n int64) {
	p.Metrics.PendingRows.WithLabelValues(selector).Set(float64(n))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
