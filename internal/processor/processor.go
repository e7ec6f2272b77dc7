// Package processor drives classification runs over the comment store.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/categorizer/internal/classifier"
	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/telemetry"
)

// Defaults applied to zero Config fields.
const (
	DefaultBatchSize         = 500
	DefaultWorkers           = 1
	DefaultMaxAttempts       = 3
	DefaultRetryInitialDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay     = 10 * time.Second
)

// Store is the part of the comment repository a run needs.
type Store interface {
	ProcessBatch(ctx context.Context, q database.BatchQuery, fn database.BatchFunc) (database.BatchOutcome, error)
	CountPending(ctx context.Context, sel domain.Selector) (int64, error)
	CountRemaining(ctx context.Context, q database.BatchQuery) (int64, error)
}

// Telemetry receives run, batch and worker signals. *telemetry.Provider implements it.
type Telemetry interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
	RecordBatch(status string, size int, duration time.Duration)
	RecordWrites(updated, unchanged int)
	SetActiveWorkers(delta int)
	SetPending(selector string, n int64)
}

// Config holds processor defaults.
type Config struct {
	BatchSize         int           `env:"CATEGORIZER_BATCH_SIZE" yaml:"batch_size"`
	Workers           int           `env:"CATEGORIZER_WORKERS"    yaml:"workers"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`
	// BatchesPerSecond throttles batch starts across workers; 0 disables it.
	BatchesPerSecond float64 `yaml:"batches_per_second"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = DefaultRetryInitialDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = DefaultRetryMaxDelay
	}
}

// RunOptions selects rows and overrides Config for one run.
type RunOptions struct {
	Selector  domain.Selector
	BatchSize int
	Workers   int
	// Limit caps the rows visited; 0 means no limit.
	Limit int
	// DryRun classifies and counts but rolls back every batch.
	DryRun bool
	// StartAfter starts the keyset cursor after this id.
	StartAfter int64
	// MinConfidence demotes weaker winners to the fallback for this run only.
	MinConfidence float64
}

// Processor runs batches of classification against a Store.
type Processor struct {
	store     Store
	engine    *classifier.Engine
	cfg       Config
	telemetry Telemetry
	logger    infralogger.Logger
}

// New creates a Processor. A nil telemetry disables metrics and spans.
func New(store Store, engine *classifier.Engine, cfg Config, tel Telemetry, logger infralogger.Logger) *Processor {
	cfg.SetDefaults()
	if tel == nil {
		tel = noopTelemetry{}
	}
	return &Processor{
		store:     store,
		engine:    engine,
		cfg:       cfg,
		telemetry: tel,
		logger:    logger,
	}
}

// run carries the state shared by every worker of one run.
type run struct {
	id      string
	opts    RunOptions
	engine  *classifier.Engine
	limiter *RateLimiter
	quota   *quota
}

// Run classifies every row the selector matches, each worker walking its own
// id partition with a keyset cursor. The returned report is always non-nil
// once the run has started. The error wraps domain.ErrRetriesExhausted when a
// batch failed after every retry, and the context error when the run was
// cancelled.
func (p *Processor) Run(ctx context.Context, opts RunOptions) (*domain.Report, error) {
	if opts.Selector == "" {
		opts.Selector = domain.SelectorUncategorized
	}
	if _, err := domain.ParseSelector(string(opts.Selector)); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = p.cfg.BatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = p.cfg.Workers
	}

	r := &run{
		id:      ulid.Make().String(),
		opts:    opts,
		engine:  p.engine.WithMinConfidence(opts.MinConfidence),
		limiter: NewRateLimiter(p.cfg.BatchesPerSecond, opts.Workers),
		quota:   newQuota(opts.Limit),
	}

	ctx, span := p.telemetry.StartSpan(ctx, "categorizer.run",
		attribute.String("run_id", r.id),
		attribute.String("selector", string(opts.Selector)),
		attribute.Int("workers", opts.Workers),
		attribute.Bool("dry_run", opts.DryRun),
	)
	defer span.End()

	report := domain.NewReport(r.id, opts.Selector, opts.DryRun)
	report.StartedAt = time.Now()

	pending, err := p.store.CountPending(ctx, opts.Selector)
	if err != nil {
		span.SetStatus(codes.Error, "count pending")
		return nil, fmt.Errorf("count pending rows: %w", err)
	}
	p.telemetry.SetPending(string(opts.Selector), pending)

	log := p.logger.With(infralogger.String("run_id", r.id))
	log.Info("Run starting",
		infralogger.String("selector", string(opts.Selector)),
		infralogger.Int64("pending", pending),
		infralogger.Int("batch_size", opts.BatchSize),
		infralogger.Int("workers", opts.Workers),
		infralogger.Int("limit", opts.Limit),
		infralogger.Bool("dry_run", opts.DryRun),
		infralogger.Float64("min_confidence", opts.MinConfidence),
		infralogger.Bool("throttled", r.limiter.Limited()),
	)

	reports := make([]*domain.Report, opts.Workers)
	var wg sync.WaitGroup
	for w := range opts.Workers {
		wg.Add(1)
		go func(partition int) {
			defer wg.Done()
			reports[partition] = p.worker(ctx, r, partition, log)
		}(w)
	}
	wg.Wait()

	for _, wr := range reports {
		report.Merge(wr)
	}
	report.Duration = time.Since(report.StartedAt)

	span.SetAttributes(
		attribute.Int("processed", report.Processed),
		attribute.Int("updated", report.Updated),
		attribute.Int("failed_batches", report.FailedBatches),
	)

	log.Info("Run complete",
		infralogger.Int("processed", report.Processed),
		infralogger.Int("categorized", report.Categorized),
		infralogger.Int("fallback", report.Fallback),
		infralogger.Int("noise", report.Noise),
		infralogger.Int("errors", report.Errors),
		infralogger.Int("updated", report.Updated),
		infralogger.Int("unchanged", report.Unchanged),
		infralogger.Int("batches", report.Batches),
		infralogger.Int("failed_batches", report.FailedBatches),
		infralogger.Duration("duration", report.Duration),
	)

	if report.Failed() {
		span.SetStatus(codes.Error, "retries exhausted")
		return report, fmt.Errorf("%w: %d batch(es) failed, %d rows left unprocessed",
			domain.ErrRetriesExhausted, report.FailedBatches, report.Remaining)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, fmt.Errorf("run cancelled: %w", ctxErr)
	}
	return report, nil
}

// worker walks one id partition until it is exhausted, the row budget runs
// out, the context is cancelled or a batch exhausts its retries.
func (p *Processor) worker(ctx context.Context, r *run, partition int, log infralogger.Logger) *domain.Report {
	rep := domain.NewReport(r.id, r.opts.Selector, r.opts.DryRun)
	log = log.With(infralogger.Int("partition", partition))

	p.telemetry.SetActiveWorkers(1)
	defer p.telemetry.SetActiveWorkers(-1)

	cursor := r.opts.StartAfter
	for ctx.Err() == nil {
		size := r.quota.take(r.opts.BatchSize)
		if size == 0 {
			return rep
		}
		if err := r.limiter.Wait(ctx); err != nil {
			r.quota.refund(size)
			return rep
		}

		q := database.BatchQuery{
			Selector:   r.opts.Selector,
			AfterID:    cursor,
			Limit:      size,
			Partition:  partition,
			Partitions: r.opts.Workers,
			DryRun:     r.opts.DryRun,
		}

		out, err := p.processBatch(ctx, r, q, log)
		if err != nil {
			r.quota.refund(size)
			if ctx.Err() != nil {
				log.Warn("Worker stopping due to context cancellation", infralogger.Int64("cursor", cursor))
				return rep
			}
			rep.FailedBatches++
			rep.Remaining += p.remaining(ctx, q, log)
			log.Error("Batch retries exhausted, stopping partition",
				infralogger.Int64("cursor", cursor),
				infralogger.Int64("remaining", rep.Remaining),
				infralogger.Error(err),
			)
			return rep
		}

		r.quota.refund(size - out.Read)
		if out.Read == 0 {
			return rep
		}

		rep.Batches++
		rep.Updated += out.Updated
		rep.Unchanged += out.Unchanged
		for i := range out.Results {
			rep.Add(out.Results[i])
		}
		cursor = out.LastID

		log.Debug("Batch committed",
			infralogger.Int("rows", out.Read),
			infralogger.Int("updated", out.Updated),
			infralogger.Int64("cursor", cursor),
		)

		if out.Read < size {
			return rep
		}
	}
	return rep
}

// processBatch runs one batch with retries. Each attempt is its own transaction.
func (p *Processor) processBatch(
	ctx context.Context, r *run, q database.BatchQuery, log infralogger.Logger,
) (database.BatchOutcome, error) {
	ctx, span := p.telemetry.StartSpan(ctx, "categorizer.batch",
		attribute.String("run_id", r.id),
		attribute.Int("partition", q.Partition),
		attribute.Int64("after_id", q.AfterID),
		attribute.Int("limit", q.Limit),
	)
	defer span.End()

	start := time.Now()
	classify := classifyBatch(r.engine)

	var out database.BatchOutcome
	err := retry.Retry(ctx, p.retryConfig(log), func(ctx context.Context) error {
		var batchErr error
		out, batchErr = p.store.ProcessBatch(ctx, q, classify)
		return batchErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		p.telemetry.RecordBatch(telemetry.BatchFailed, 0, time.Since(start))
		return database.BatchOutcome{}, err
	}

	span.SetAttributes(attribute.Int("rows", out.Read), attribute.Int("updated", out.Updated))
	p.telemetry.RecordBatch(telemetry.BatchCommitted, out.Read, time.Since(start))
	p.telemetry.RecordWrites(out.Updated, out.Unchanged)
	return out, nil
}

func (p *Processor) retryConfig(log infralogger.Logger) retry.Config {
	return retry.Config{
		MaxAttempts:  p.cfg.MaxAttempts,
		InitialDelay: p.cfg.RetryInitialDelay,
		MaxDelay:     p.cfg.RetryMaxDelay,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			p.telemetry.RecordBatch(telemetry.BatchRetried, 0, 0)
			log.Warn("Batch failed, retrying",
				infralogger.Int("attempt", attempt),
				infralogger.Duration("delay", delay),
				infralogger.Error(err),
			)
		},
	}
}

// remaining counts the rows a failed partition leaves behind.
func (p *Processor) remaining(ctx context.Context, q database.BatchQuery, log infralogger.Logger) int64 {
	n, err := p.store.CountRemaining(ctx, q)
	if err != nil {
		log.Warn("Failed to count unprocessed rows", infralogger.Error(err))
		return 0
	}
	return n
}

func classifyBatch(engine *classifier.Engine) database.BatchFunc {
	return func(records []domain.CommentRecord) []domain.ClassificationResult {
		results := make([]domain.ClassificationResult, len(records))
		for i := range records {
			results[i] = engine.Classify(records[i])
		}
		return results
	}
}
