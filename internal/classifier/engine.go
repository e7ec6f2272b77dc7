package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/noise"
	"github.com/jonesrussell/north-cloud/categorizer/internal/normalize"
)

// DefaultErrorCategory marks rows whose text could not be classified.
const DefaultErrorCategory = "__error__"

const hashPrefixLen = 12

var errInvalidUTF8 = errors.New("text is not valid utf-8")

// Recorder receives per-row classification outcomes. telemetry.Provider implements it.
type Recorder interface {
	RecordClassification(outcome domain.Outcome, category, noiseReason string, d time.Duration)
}

// Engine runs normalize, noise filter and categorizer for one record.
// Noise short-circuits: the matcher never runs for noise rows.
type Engine struct {
	categorizer   *Categorizer
	filter        *noise.Filter
	errorCategory string
	recorder      Recorder
	logger        infralogger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithErrorCategory overrides the sentinel category written for failed rows.
func WithErrorCategory(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.errorCategory = name
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an Engine.
func NewEngine(c *Categorizer, f *noise.Filter, logger infralogger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		categorizer:   c,
		filter:        f,
		errorCategory: DefaultErrorCategory,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fallback returns the fallback category name.
func (e *Engine) Fallback() string { return e.categorizer.Fallback() }

// ErrorCategory returns the sentinel category name.
func (e *Engine) ErrorCategory() string { return e.errorCategory }

// Categorizer returns the underlying categorizer.
func (e *Engine) Categorizer() *Categorizer { return e.categorizer }

// WithMinConfidence returns an Engine that demotes winners below minConfidence
// to the fallback. A non-positive value keeps the configured minimum.
func (e *Engine) WithMinConfidence(minConfidence float64) *Engine {
	if minConfidence <= 0 {
		return e
	}
	clone := *e
	clone.categorizer = e.categorizer.WithMinConfidence(minConfidence)
	return &clone
}

// Classify never fails. Text that defeats normalization, or a panic while
// classifying, yields the sentinel error classification and a log line with the
// record id and the input's length and hash.
func (e *Engine) Classify(rec domain.CommentRecord) (res domain.ClassificationResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = e.errorResult(rec, fmt.Errorf("panic: %v", r))
		}
		if e.recorder != nil {
			e.recorder.RecordClassification(res.Outcome, res.CategoryName(), res.NoiseReasonName(), time.Since(start))
		}
	}()

	if !utf8.ValidString(rec.RawText) {
		return e.errorResult(rec, errInvalidUTF8)
	}

	return e.ClassifyText(rec.ID, normalize.Text(rec.RawText))
}

// ClassifyText classifies already-normalized text.
func (e *Engine) ClassifyText(id int64, normalized string) domain.ClassificationResult {
	if isNoise, reason := e.filter.Check(normalized); isNoise {
		return domain.ClassificationResult{
			RecordID:    id,
			IsNoise:     true,
			NoiseReason: &reason,
			Outcome:     domain.OutcomeNoise,
		}
	}

	d := e.categorizer.Categorize(normalized)
	category := d.Category
	outcome := domain.OutcomeCategorized
	if d.Fallback {
		outcome = domain.OutcomeFallback
	}

	return domain.ClassificationResult{
		RecordID:        id,
		Category:        &category,
		Confidence:      d.Confidence,
		Outcome:         outcome,
		MatchedPatterns: d.Matches,
	}
}

func (e *Engine) errorResult(rec domain.CommentRecord, cause error) domain.ClassificationResult {
	sum := sha256.Sum256([]byte(rec.RawText))
	e.logger.Error("Failed to classify record",
		infralogger.Int64("record_id", rec.ID),
		infralogger.Int("input_length", len(rec.RawText)),
		infralogger.String("input_sha256", hex.EncodeToString(sum[:])[:hashPrefixLen]),
		infralogger.Error(cause),
	)

	category := e.errorCategory
	return domain.ClassificationResult{
		RecordID: rec.ID,
		Category: &category,
		Outcome:  domain.OutcomeError,
	}
}
