package classifier_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/classifier"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/noise"
)

type recordedOutcome struct {
	outcome  domain.Outcome
	category string
	reason   string
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedOutcome
}

func (r *fakeRecorder) RecordClassification(o domain.Outcome, category, reason string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedOutcome{o, category, reason})
}

func newEngine(t *testing.T, src string, opts ...classifier.EngineOption) *classifier.Engine {
	t.Helper()
	c := newCategorizer(t, src, classifier.Config{})
	return classifier.NewEngine(c, noise.New(noise.Config{}), infralogger.NewNop(), opts...)
}

func TestEngine_Classify(t *testing.T) {
	t.Parallel()

	e := newEngine(t, scenarioTaxonomy+"  - {name: Repetido, keywords: [aaa]}\n")

	tests := []struct {
		name       string
		raw        string
		outcome    domain.Outcome
		category   string
		noise      bool
		reason     string
		confidence func(float64) bool
	}{
		{"categorized", "Pésima atención al cliente", domain.OutcomeCategorized, "Atención al cliente", false, "",
			func(c float64) bool { return c > 0 && c < 1 }},
		{"fallback", "todo excelente gracias", domain.OutcomeFallback, "Otros", false, "",
			func(c float64) bool { return c == 0 }},
		{"empty is noise", "", domain.OutcomeNoise, "", true, domain.NoiseTooShort,
			func(c float64) bool { return c == 0 }},
		{"low entropy beats matcher score", "aaaaaaaaaa", domain.OutcomeNoise, "", true, domain.NoiseLowEntropy,
			func(c float64) bool { return c == 0 }},
		{"invalid utf8 is an error", "mal servicio \xff", domain.OutcomeError, classifier.DefaultErrorCategory, false, "",
			func(c float64) bool { return c == 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := e.Classify(domain.CommentRecord{ID: 7, RawText: tt.raw})

			assert.Equal(t, int64(7), res.RecordID)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.category, res.CategoryName())
			assert.Equal(t, tt.noise, res.IsNoise)
			assert.Equal(t, tt.reason, res.NoiseReasonName())
			assert.True(t, tt.confidence(res.Confidence), "confidence %v", res.Confidence)
			if tt.noise {
				assert.Nil(t, res.Category)
				assert.Empty(t, res.MatchedPatterns, "noise never reaches the matcher")
			}
		})
	}
}

func TestEngine_Options(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	e := newEngine(t, scenarioTaxonomy, classifier.WithErrorCategory("ERROR"), classifier.WithRecorder(rec))

	assert.Equal(t, "ERROR", e.ErrorCategory())
	assert.Equal(t, "Otros", e.Fallback())

	res := e.Classify(domain.CommentRecord{ID: 1, RawText: "\xfe\xfe"})
	assert.Equal(t, "ERROR", res.CategoryName())

	e.Classify(domain.CommentRecord{ID: 2, RawText: "mal servicio"})

	require.Len(t, rec.seen, 2)
	assert.Equal(t, recordedOutcome{domain.OutcomeError, "ERROR", ""}, rec.seen[0])
	assert.Equal(t, recordedOutcome{domain.OutcomeCategorized, "Atención al cliente", ""}, rec.seen[1])
}

func TestEngine_WithMinConfidence(t *testing.T) {
	t.Parallel()

	e := newEngine(t, scenarioTaxonomy)
	strict := e.WithMinConfidence(0.5)

	weak := domain.CommentRecord{ID: 1, RawText: "pésima atención"}
	strong := domain.CommentRecord{ID: 2, RawText: "mal servicio y mala atención"}

	assert.Equal(t, domain.OutcomeCategorized, e.Classify(weak).Outcome)

	res := strict.Classify(weak)
	assert.Equal(t, domain.OutcomeFallback, res.Outcome)
	assert.Equal(t, "Otros", res.CategoryName())
	assert.Zero(t, res.Confidence)

	assert.Equal(t, "Atención al cliente", strict.Classify(strong).CategoryName())
	assert.Same(t, e, e.WithMinConfidence(0))
}
