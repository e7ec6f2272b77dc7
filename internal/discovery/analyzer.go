// Package discovery mines classified comments for tokens that correlate with
// a category or survey outcome and proposes them as taxonomy patterns.
package discovery

import (
	"cmp"
	"iter"
	"slices"
	"time"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/normalize"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

// LabelMode chooses what tokens are correlated against.
type LabelMode string

const (
	// LabelCategory correlates tokens with confidently assigned categories.
	LabelCategory LabelMode = "category"
	// LabelOutcome correlates tokens with the NPS/CSAT outcome of the answer.
	LabelOutcome LabelMode = "outcome"
)

// Defaults applied to zero Config fields. DefaultMinConfidence admits one
// default-weight hit at the default confidence constant, 1/(1+2), which is
// stored as 0.3333.
const (
	DefaultMinSupport         = 50
	DefaultMinCorrelation     = 0.70
	DefaultMinLift            = 1.0
	DefaultMaxPerLabel        = 30
	DefaultMinConfidence      = 0.33
	DefaultMinTokenLen        = 3
	DefaultMaxTokenLen        = 25
	DefaultMaxNGram           = 1
	DefaultMisplacedThreshold = 0.50
)

// Config holds discovery thresholds.
type Config struct {
	Mode LabelMode `yaml:"mode"`
	// MinSupport is the minimum number of labelled comments containing both
	// the token and the label.
	MinSupport int `yaml:"min_support"`
	// MinCorrelation is the minimum P(label | token).
	MinCorrelation float64 `yaml:"min_correlation"`
	// MinLift is the minimum P(label | token) / P(label).
	MinLift     float64 `yaml:"min_lift"`
	MaxPerLabel int     `yaml:"max_per_label"`
	// MinConfidence is the stored confidence a comment needs to count as
	// labelled in category mode.
	MinConfidence float64 `yaml:"min_confidence"`
	MinTokenLen   int     `yaml:"min_token_len"`
	MaxTokenLen   int     `yaml:"max_token_len"`
	MaxNGram      int     `yaml:"max_ngram"`
	// MisplacedThreshold flags a pattern whose correlation with its own
	// category is below this while another category dominates it.
	MisplacedThreshold float64  `yaml:"misplaced_threshold"`
	Stopwords          []string `yaml:"stopwords"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = LabelCategory
	}
	if c.MinSupport <= 0 {
		c.MinSupport = DefaultMinSupport
	}
	if c.MinCorrelation <= 0 {
		c.MinCorrelation = DefaultMinCorrelation
	}
	if c.MinLift <= 0 {
		c.MinLift = DefaultMinLift
	}
	if c.MaxPerLabel <= 0 {
		c.MaxPerLabel = DefaultMaxPerLabel
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = DefaultMinConfidence
	}
	if c.MinTokenLen <= 0 {
		c.MinTokenLen = DefaultMinTokenLen
	}
	if c.MaxTokenLen <= 0 {
		c.MaxTokenLen = DefaultMaxTokenLen
	}
	if c.MaxNGram <= 0 {
		c.MaxNGram = DefaultMaxNGram
	}
	if c.MisplacedThreshold <= 0 {
		c.MisplacedThreshold = DefaultMisplacedThreshold
	}
	if c.Stopwords == nil {
		c.Stopwords = DefaultStopwords
	}
}

// Document is one comment as seen by discovery.
type Document struct {
	Text string
	// Category is the stored category, "" when unclassified or noise.
	Category   string
	Confidence float64
	IsNoise    bool
	// Outcome is the survey outcome label, "" when unknown.
	Outcome string
}

// DocumentFromComment converts a stored comment.
func DocumentFromComment(c *domain.ClassifiedComment) Document {
	d := Document{Text: c.RawText, Outcome: c.OutcomeLabel()}
	if c.Category != nil {
		d.Category = *c.Category
	}
	if c.Confidence != nil {
		d.Confidence = *c.Confidence
	}
	if c.IsNoise != nil {
		d.IsNoise = *c.IsNoise
	}
	return d
}

// Misplaced is an existing pattern whose comments mostly carry another category.
type Misplaced struct {
	Pattern              string  `json:"pattern"               yaml:"pattern"`
	Category             string  `json:"category"              yaml:"category"`
	Suggested            string  `json:"suggested"             yaml:"suggested"`
	CurrentCorrelation   float64 `json:"current_correlation"   yaml:"current_correlation"`
	SuggestedCorrelation float64 `json:"suggested_correlation" yaml:"suggested_correlation"`
	Support              int     `json:"support"               yaml:"support"`
}

// Thresholds records the filters a report was produced with.
type Thresholds struct {
	MinSupport     int     `json:"min_support"     yaml:"min_support"`
	MinCorrelation float64 `json:"min_correlation" yaml:"min_correlation"`
	MinLift        float64 `json:"min_lift"        yaml:"min_lift"`
	MinConfidence  float64 `json:"min_confidence"  yaml:"min_confidence"`
}

// Report is the reviewable discovery artifact.
type Report struct {
	GeneratedAt time.Time                 `json:"generated_at"        yaml:"generated_at"`
	Mode        LabelMode                 `json:"mode"                yaml:"mode"`
	Taxonomy    string                    `json:"taxonomy,omitempty"  yaml:"taxonomy,omitempty"`
	Documents   int                       `json:"documents"           yaml:"documents"`
	Labelled    int                       `json:"labelled"            yaml:"labelled"`
	Thresholds  Thresholds                `json:"thresholds"          yaml:"thresholds"`
	Candidates  []domain.KeywordCandidate `json:"candidates"          yaml:"candidates"`
	Misplaced   []Misplaced               `json:"misplaced,omitempty" yaml:"misplaced,omitempty"`
	Findings    []taxonomy.Finding        `json:"findings,omitempty"  yaml:"findings,omitempty"`
}

// Analyzer accumulates token and label co-occurrence counts. Each comment
// counts a token at most once. An Analyzer is not safe for concurrent use.
type Analyzer struct {
	cfg    Config
	tax    *taxonomy.Taxonomy
	tokens *tokenizer
	owners map[string][]string

	documents    int
	labelled     int
	labelDocs    map[string]int
	tokenDocs    map[string]int
	pairs        map[string]map[string]int
	fallbackHits map[string]int
}

// NewAnalyzer creates an Analyzer against the current taxonomy.
func NewAnalyzer(t *taxonomy.Taxonomy, cfg Config) *Analyzer {
	cfg.SetDefaults()
	return &Analyzer{
		cfg:          cfg,
		tax:          t,
		tokens:       newTokenizer(cfg),
		owners:       t.Owners(),
		labelDocs:    make(map[string]int),
		tokenDocs:    make(map[string]int),
		pairs:        make(map[string]map[string]int),
		fallbackHits: make(map[string]int),
	}
}

// Observe counts one document.
func (a *Analyzer) Observe(d Document) {
	a.documents++
	if d.IsNoise {
		return
	}

	terms := a.tokens.terms(normalize.Text(d.Text))
	if len(terms) == 0 {
		return
	}

	if d.Category == a.tax.Fallback {
		for _, t := range terms {
			a.fallbackHits[t]++
		}
	}

	label := a.label(d)
	if label == "" {
		return
	}

	a.labelled++
	a.labelDocs[label]++
	for _, t := range terms {
		a.tokenDocs[t]++
		byLabel := a.pairs[t]
		if byLabel == nil {
			byLabel = make(map[string]int)
			a.pairs[t] = byLabel
		}
		byLabel[label]++
	}
}

func (a *Analyzer) label(d Document) string {
	if a.cfg.Mode == LabelOutcome {
		return d.Outcome
	}
	if d.Category == "" || d.Category == a.tax.Fallback || a.tax.Index(d.Category) < 0 {
		return ""
	}
	if d.Confidence < a.cfg.MinConfidence {
		return ""
	}
	return d.Category
}

// Candidates returns every (token, label) pair clearing the support,
// correlation and lift thresholds, sorted by correlation, then support, then
// token, and capped per label. Tokens already declared by the same category
// are left out. An empty corpus yields an empty list.
func (a *Analyzer) Candidates() []domain.KeywordCandidate {
	out := make([]domain.KeywordCandidate, 0)
	if a.labelled == 0 {
		return out
	}

	for token, byLabel := range a.pairs {
		total := a.tokenDocs[token]
		for label, support := range byLabel {
			if support < a.cfg.MinSupport {
				continue
			}
			correlation := float64(support) / float64(total)
			if correlation < a.cfg.MinCorrelation {
				continue
			}
			base := float64(a.labelDocs[label]) / float64(a.labelled)
			lift := correlation / base
			if lift < a.cfg.MinLift {
				continue
			}

			owners := a.owners[token]
			if a.cfg.Mode == LabelCategory && slices.Contains(owners, label) {
				continue
			}

			c := domain.KeywordCandidate{
				Token:        token,
				Category:     label,
				Support:      support,
				TokenTotal:   total,
				Correlation:  correlation,
				Lift:         lift,
				FallbackHits: a.fallbackHits[token],
			}
			if other := firstOther(owners, label); other != "" {
				c.Conflict = true
				c.ConflictCategory = other
			}
			out = append(out, c)
		}
	}

	slices.SortFunc(out, func(x, y domain.KeywordCandidate) int {
		return cmp.Or(
			cmp.Compare(y.Correlation, x.Correlation),
			cmp.Compare(y.Support, x.Support),
			cmp.Compare(x.Token, y.Token),
			cmp.Compare(x.Category, y.Category),
		)
	})

	perLabel := make(map[string]int)
	capped := out[:0]
	for _, c := range out {
		if perLabel[c.Category] >= a.cfg.MaxPerLabel {
			continue
		}
		perLabel[c.Category]++
		capped = append(capped, c)
	}
	return capped
}

// Misplaced reports positive patterns of a category that appear in at least
// MinSupport labelled comments, are dominated by another category, and
// correlate with their own category below the misplaced threshold. Only
// meaningful in category mode.
func (a *Analyzer) Misplaced() []Misplaced {
	out := make([]Misplaced, 0)
	if a.cfg.Mode != LabelCategory {
		return out
	}

	for _, c := range a.tax.Categories {
		for _, p := range c.Patterns {
			if p.Exclusion {
				continue
			}
			total := a.tokenDocs[p.Text]
			if total < a.cfg.MinSupport {
				continue
			}
			dominant, count := dominantLabel(a.pairs[p.Text])
			if dominant == "" || dominant == c.Name {
				continue
			}
			current := float64(a.pairs[p.Text][c.Name]) / float64(total)
			if current >= a.cfg.MisplacedThreshold {
				continue
			}
			out = append(out, Misplaced{
				Pattern:              p.Text,
				Category:             c.Name,
				Suggested:            dominant,
				CurrentCorrelation:   current,
				SuggestedCorrelation: float64(count) / float64(total),
				Support:              total,
			})
		}
	}
	return out
}

// Report assembles the artifact for the documents observed so far.
func (a *Analyzer) Report() *Report {
	return &Report{
		GeneratedAt: time.Now().UTC(),
		Mode:        a.cfg.Mode,
		Taxonomy:    a.tax.Source,
		Documents:   a.documents,
		Labelled:    a.labelled,
		Thresholds: Thresholds{
			MinSupport:     a.cfg.MinSupport,
			MinCorrelation: a.cfg.MinCorrelation,
			MinLift:        a.cfg.MinLift,
			MinConfidence:  a.cfg.MinConfidence,
		},
		Candidates: a.Candidates(),
		Misplaced:  a.Misplaced(),
		Findings:   taxonomy.Lint(a.tax),
	}
}

// Discover observes every document of docs and returns the report.
func Discover(t *taxonomy.Taxonomy, cfg Config, docs iter.Seq[Document]) *Report {
	a := NewAnalyzer(t, cfg)
	for d := range docs {
		a.Observe(d)
	}
	return a.Report()
}

// dominantLabel returns the most frequent label, ties broken by name.
func dominantLabel(byLabel map[string]int) (string, int) {
	best, bestN := "", 0
	for label, n := range byLabel {
		if n > bestN || (n == bestN && label < best) {
			best, bestN = label, n
		}
	}
	return best, bestN
}

func firstOther(owners []string, label string) string {
	for _, o := range owners {
		if o != label {
			return o
		}
	}
	return ""
}
