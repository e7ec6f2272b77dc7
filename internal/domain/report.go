package domain

import (
	"errors"
	"time"
)

// ErrRetriesExhausted marks a run in which at least one batch failed after
// every retry attempt.
var ErrRetriesExhausted = errors.New("batch retries exhausted")

// Report summarizes one processor run. Workers each fill their own Report and
// the results are merged once all workers finish.
type Report struct {
	RunID         string         `json:"run_id"`
	Selector      Selector       `json:"selector"`
	DryRun        bool           `json:"dry_run"`
	Processed     int            `json:"processed"`
	Categorized   int            `json:"categorized"`
	Fallback      int            `json:"fallback"`
	Noise         int            `json:"noise"`
	Errors        int            `json:"errors"`
	Updated       int            `json:"updated"`
	Unchanged     int            `json:"unchanged"`
	Batches       int            `json:"batches"`
	FailedBatches int            `json:"failed_batches"`
	Remaining     int64          `json:"remaining"`
	ByCategory    map[string]int `json:"by_category"`
	NoiseReasons  map[string]int `json:"noise_reasons"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
}

// NewReport returns an empty report with initialized maps.
func NewReport(runID string, sel Selector, dryRun bool) *Report {
	return &Report{
		RunID:        runID,
		Selector:     sel,
		DryRun:       dryRun,
		ByCategory:   make(map[string]int),
		NoiseReasons: make(map[string]int),
	}
}

// Add counts one classification result.
func (r *Report) Add(res ClassificationResult) {
	r.Processed++
	switch res.Outcome {
	case OutcomeCategorized:
		r.Categorized++
	case OutcomeFallback:
		r.Fallback++
	case OutcomeNoise:
		r.Noise++
		r.NoiseReasons[res.NoiseReasonName()]++
		return
	case OutcomeError:
		r.Errors++
	}
	r.ByCategory[res.CategoryName()]++
}

// Merge folds other into r. Run metadata of r is kept.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Processed += other.Processed
	r.Categorized += other.Categorized
	r.Fallback += other.Fallback
	r.Noise += other.Noise
	r.Errors += other.Errors
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Batches += other.Batches
	r.FailedBatches += other.FailedBatches
	r.Remaining += other.Remaining
	for k, v := range other.ByCategory {
		r.ByCategory[k] += v
	}
	for k, v := range other.NoiseReasons {
		r.NoiseReasons[k] += v
	}
}

// Failed reports whether any batch exhausted its retries.
func (r *Report) Failed() bool {
	return r.FailedBatches > 0
}
