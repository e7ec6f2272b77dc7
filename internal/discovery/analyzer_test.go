package discovery_test

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/classifier"
	"github.com/jonesrussell/north-cloud/categorizer/internal/discovery"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/matcher"
	"github.com/jonesrussell/north-cloud/categorizer/internal/noise"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

const testTaxonomy = `
fallback: Otros
categories:
  - name: Tiempos de espera
    keywords: [espera]
  - name: Precio
    keywords: [caro]
  - name: Cajeros
    keywords: [tarifa]
`

func mustTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tx, err := taxonomy.Parse([]byte(testTaxonomy), "test.yml")
	require.NoError(t, err)
	return tx
}

func repeat(n int, d discovery.Document) []discovery.Document {
	out := make([]discovery.Document, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func corpus() []discovery.Document {
	var docs []discovery.Document
	docs = append(docs, repeat(4, discovery.Document{Text: "Larga espera en la fila", Category: "Tiempos de espera", Confidence: 0.6})...)
	docs = append(docs, repeat(4, discovery.Document{Text: "precio caro, tarifa!", Category: "Precio", Confidence: 0.6})...)
	docs = append(docs, discovery.Document{Text: "fila caro", Category: "Precio", Confidence: 0.6})
	docs = append(docs, repeat(2, discovery.Document{Text: "fila eterna", Category: "Otros"})...)
	docs = append(docs, discovery.Document{Text: "espera precio", Category: "Tiempos de espera", Confidence: 0.2})
	docs = append(docs, discovery.Document{Text: "xxxxxxxx", IsNoise: true})
	return docs
}

func testConfig() discovery.Config {
	return discovery.Config{MinSupport: 3, MinCorrelation: 0.7, MinConfidence: 0.5}
}

func TestDiscover_CategoryMode(t *testing.T) {
	t.Parallel()

	report := discovery.Discover(mustTaxonomy(t), testConfig(), slices.Values(corpus()))

	assert.Equal(t, 13, report.Documents)
	assert.Equal(t, 9, report.Labelled)
	assert.Equal(t, discovery.LabelCategory, report.Mode)

	tokens := make([]string, 0, len(report.Candidates))
	for _, c := range report.Candidates {
		tokens = append(tokens, c.Token)
	}
	assert.Equal(t, []string{"larga", "precio", "tarifa", "fila"}, tokens)

	byToken := make(map[string]domain.KeywordCandidate)
	for _, c := range report.Candidates {
		byToken[c.Token] = c
	}

	fila := byToken["fila"]
	assert.Equal(t, "Tiempos de espera", fila.Category)
	assert.Equal(t, 4, fila.Support)
	assert.Equal(t, 5, fila.TokenTotal)
	assert.InDelta(t, 0.8, fila.Correlation, 1e-9)
	assert.InDelta(t, 0.8/(4.0/9.0), fila.Lift, 1e-9)
	assert.Equal(t, 2, fila.FallbackHits)
	assert.False(t, fila.Conflict)

	tarifa := byToken["tarifa"]
	assert.Equal(t, "Precio", tarifa.Category)
	assert.True(t, tarifa.Conflict)
	assert.Equal(t, "Cajeros", tarifa.ConflictCategory)

	_, hasEspera := byToken["espera"]
	assert.False(t, hasEspera, "tokens already declared by the same category are not proposed")

	require.Len(t, report.Misplaced, 1)
	m := report.Misplaced[0]
	assert.Equal(t, "tarifa", m.Pattern)
	assert.Equal(t, "Cajeros", m.Category)
	assert.Equal(t, "Precio", m.Suggested)
	assert.Zero(t, m.CurrentCorrelation)
	assert.InDelta(t, 1.0, m.SuggestedCorrelation, 1e-9)
}

func TestDiscover_NeverBelowThresholds(t *testing.T) {
	t.Parallel()

	for _, cfg := range []discovery.Config{
		{MinSupport: 1, MinCorrelation: 0.01, MinConfidence: 0.1},
		{MinSupport: 4, MinCorrelation: 0.9, MinConfidence: 0.5},
		{MinSupport: 5, MinCorrelation: 0.5, MinConfidence: 0.5},
		{MinSupport: 2, MinCorrelation: 0.3, MinLift: 2.0, MinConfidence: 0.5},
	} {
		report := discovery.Discover(mustTaxonomy(t), cfg, slices.Values(corpus()))
		for _, c := range report.Candidates {
			assert.GreaterOrEqual(t, c.Support, cfg.MinSupport, "%+v", c)
			assert.GreaterOrEqual(t, c.Correlation, cfg.MinCorrelation, "%+v", c)
			if cfg.MinLift > 0 {
				assert.GreaterOrEqual(t, c.Lift, cfg.MinLift, "%+v", c)
			}
		}
	}

	strict := discovery.Discover(mustTaxonomy(t), discovery.Config{MinSupport: 5, MinConfidence: 0.5}, slices.Values(corpus()))
	assert.Empty(t, strict.Candidates)
}

func TestDiscover_MaxPerLabel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxPerLabel = 1
	report := discovery.Discover(mustTaxonomy(t), cfg, slices.Values(corpus()))

	require.Len(t, report.Candidates, 2)
	assert.Equal(t, "larga", report.Candidates[0].Token)
	assert.Equal(t, "precio", report.Candidates[1].Token)
}

// Documents carry the confidence the engine assigns, rounded the way the
// store persists it, so the default threshold must admit a single hit.
func TestDiscover_DefaultConfidenceAdmitsEngineResults(t *testing.T) {
	t.Parallel()

	tx := mustTaxonomy(t)
	a, err := matcher.Build(tx)
	require.NoError(t, err)
	engine := classifier.NewEngine(
		classifier.NewCategorizer(a, tx.Fallback, classifier.Config{}),
		noise.New(noise.Config{}),
		infralogger.NewNop(),
	)

	texts := []string{
		"mucha espera en la fila",
		"larga espera en la fila",
		"espera eterna en la fila",
		"muy caro el servicio",
	}
	docs := make([]discovery.Document, 0, len(texts))
	for i, text := range texts {
		res := engine.Classify(domain.CommentRecord{ID: int64(i + 1), RawText: text})
		require.Equal(t, domain.OutcomeCategorized, res.Outcome, text)
		docs = append(docs, discovery.Document{
			Text:       text,
			Category:   res.CategoryName(),
			Confidence: math.Round(res.Confidence*1e4) / 1e4,
		})
	}

	report := discovery.Discover(tx, discovery.Config{MinSupport: 3}, slices.Values(docs))
	assert.InDelta(t, discovery.DefaultMinConfidence, report.Thresholds.MinConfidence, 1e-9)
	assert.Equal(t, len(texts), report.Labelled)

	var tokens []string
	for _, c := range report.Candidates {
		if c.Category == "Tiempos de espera" {
			tokens = append(tokens, c.Token)
		}
	}
	assert.Contains(t, tokens, "fila")
}

func TestDiscover_EmptyCorpus(t *testing.T) {
	t.Parallel()

	report := discovery.Discover(mustTaxonomy(t), testConfig(), slices.Values([]discovery.Document(nil)))
	require.NotNil(t, report.Candidates)
	assert.Empty(t, report.Candidates)
	assert.Empty(t, report.Misplaced)
	assert.Zero(t, report.Documents)
}

func TestDiscover_OutcomeMode(t *testing.T) {
	t.Parallel()

	var docs []discovery.Document
	docs = append(docs, repeat(3, discovery.Document{Text: "cobro indebido", Outcome: domain.LabelDetractor})...)
	docs = append(docs, repeat(3, discovery.Document{Text: "excelente trato", Outcome: domain.LabelPromoter})...)
	docs = append(docs, discovery.Document{Text: "trato caro", Outcome: domain.LabelPassive})
	docs = append(docs, discovery.Document{Text: "sin score"})

	cfg := testConfig()
	cfg.Mode = discovery.LabelOutcome
	report := discovery.Discover(mustTaxonomy(t), cfg, slices.Values(docs))

	assert.Equal(t, 7, report.Labelled)
	labels := make(map[string]string)
	for _, c := range report.Candidates {
		labels[c.Token] = c.Category
	}
	assert.Equal(t, map[string]string{
		"cobro":     domain.LabelDetractor,
		"indebido":  domain.LabelDetractor,
		"excelente": domain.LabelPromoter,
		"trato":     domain.LabelPromoter,
	}, labels)
	assert.Empty(t, report.Misplaced)
}

func TestDocumentFromComment(t *testing.T) {
	t.Parallel()

	score, conf, cat, noise := 3.0, 0.75, "Precio", false
	c := &domain.ClassifiedComment{
		CommentRecord: domain.CommentRecord{ID: 1, Metric: "nps", Score: &score, RawText: "muy caro"},
		Category:      &cat,
		Confidence:    &conf,
		IsNoise:       &noise,
	}

	d := discovery.DocumentFromComment(c)
	assert.Equal(t, discovery.Document{
		Text:       "muy caro",
		Category:   "Precio",
		Confidence: 0.75,
		Outcome:    domain.LabelDetractor,
	}, d)
}
