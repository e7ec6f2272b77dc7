// Package classifier turns normalized comment text into a category decision
// and wires normalization, noise filtering and categorization into the
// per-row pipeline.
package classifier

import (
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/matcher"
)

// BoundaryPolicy decides which raw automaton hits count as matches.
type BoundaryPolicy string

const (
	// BoundaryNone counts every substring occurrence.
	BoundaryNone BoundaryPolicy = "none"
	// BoundaryPrefix requires the match to start at a word start ("atencion" in "atencionn").
	BoundaryPrefix BoundaryPolicy = "prefix"
	// BoundaryWord requires the match to cover whole words.
	BoundaryWord BoundaryPolicy = "word"
)

// DedupPolicy decides how repeated occurrences of one pattern are scored.
type DedupPolicy string

const (
	// DedupNone sums every occurrence of every pattern.
	DedupNone DedupPolicy = "none"
	// DedupPattern counts each pattern at most once per text.
	DedupPattern DedupPolicy = "pattern"
)

// Defaults.
const (
	DefaultConfidenceK = 2.0
	scoreEpsilon       = 1e-9
)

// Config tunes scoring.
type Config struct {
	// ConfidenceK is the saturation constant in score/(score+K).
	ConfidenceK float64        `yaml:"confidence_k"`
	Boundary    BoundaryPolicy `yaml:"boundary"`
	Dedup       DedupPolicy    `yaml:"dedup"`
	// MinConfidence sends weaker winners to the fallback with confidence 0.
	MinConfidence float64 `yaml:"min_confidence"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.ConfidenceK <= 0 {
		c.ConfidenceK = DefaultConfidenceK
	}
	if c.Boundary == "" {
		c.Boundary = BoundaryNone
	}
	if c.Dedup == "" {
		c.Dedup = DedupNone
	}
}

// Decision is the categorizer output for one text.
type Decision struct {
	Category   string
	Score      float64
	Confidence float64
	Fallback   bool
	Matches    []domain.MatchedPattern
	Vetoed     []string
}

// Categorizer scores categories over a shared immutable automaton. It holds
// no mutable state and is safe for concurrent use.
type Categorizer struct {
	automaton *matcher.Automaton
	fallback  string
	cfg       Config
}

// NewCategorizer creates a Categorizer.
func NewCategorizer(a *matcher.Automaton, fallback string, cfg Config) *Categorizer {
	cfg.SetDefaults()
	return &Categorizer{automaton: a, fallback: fallback, cfg: cfg}
}

// Fallback returns the fallback category name.
func (c *Categorizer) Fallback() string { return c.fallback }

// Config returns the effective configuration.
func (c *Categorizer) Config() Config { return c.cfg }

// WithMinConfidence returns a Categorizer sharing the automaton with a
// different minimum confidence.
func (c *Categorizer) WithMinConfidence(minConfidence float64) *Categorizer {
	cfg := c.cfg
	cfg.MinConfidence = minConfidence
	return &Categorizer{automaton: c.automaton, fallback: c.fallback, cfg: cfg}
}

type categoryScore struct {
	score   float64
	vetoed  bool
	bestW   float64
	bestLen int
}

// Categorize scans normalized text once and picks a category. Exclusion hits
// veto their category outright. Ties on score go to the category whose
// highest-weight match is longer, then to the earlier declared category.
// It never fails: text with no surviving match yields the fallback with
// confidence 0.
func (c *Categorizer) Categorize(text string) Decision {
	d := Decision{Category: c.fallback, Fallback: true}
	if text == "" {
		return d
	}

	scores := make([]categoryScore, c.automaton.NumCategories())
	var seen map[int]bool
	if c.cfg.Dedup == DedupPattern {
		seen = make(map[int]bool)
	}

	c.automaton.Scan(text, func(m matcher.Match) {
		if !c.acceptBoundary(text, m) {
			return
		}
		e := c.automaton.Entry(m.Entry)
		s := &scores[e.Category]

		d.Matches = append(d.Matches, domain.MatchedPattern{
			Category:  c.automaton.Category(e.Category),
			Pattern:   e.Text,
			Weight:    e.Weight,
			Exclusion: e.Exclusion,
			Start:     m.Start,
			End:       m.End,
		})

		if e.Exclusion {
			s.vetoed = true
			return
		}
		if seen != nil {
			if seen[m.Entry] {
				return
			}
			seen[m.Entry] = true
		}

		s.score += e.Weight
		if e.Weight > s.bestW || (e.Weight == s.bestW && e.Len() > s.bestLen) {
			s.bestW, s.bestLen = e.Weight, e.Len()
		}
	})

	winner := -1
	for i := range scores {
		s := &scores[i]
		if s.vetoed {
			d.Vetoed = append(d.Vetoed, c.automaton.Category(i))
			continue
		}
		if s.score <= 0 {
			continue
		}
		if winner < 0 || beats(s, &scores[winner]) {
			winner = i
		}
	}

	if winner < 0 {
		return d
	}

	score := scores[winner].score
	confidence := score / (score + c.cfg.ConfidenceK)
	if confidence < c.cfg.MinConfidence {
		return d
	}

	d.Category = c.automaton.Category(winner)
	d.Score = score
	d.Confidence = confidence
	d.Fallback = false
	return d
}

// beats reports whether a outranks b; b was declared earlier, so equality keeps b.
func beats(a, b *categoryScore) bool {
	if diff := a.score - b.score; diff > scoreEpsilon || diff < -scoreEpsilon {
		return diff > 0
	}
	return a.bestLen > b.bestLen
}

func (c *Categorizer) acceptBoundary(text string, m matcher.Match) bool {
	switch c.cfg.Boundary {
	case BoundaryPrefix:
		return wordStart(text, m.Start)
	case BoundaryWord:
		return wordStart(text, m.Start) && wordEnd(text, m.End)
	default:
		return true
	}
}

// Normalized text uses a single ASCII space as its only separator.
func wordStart(text string, i int) bool { return i == 0 || text[i-1] == ' ' }
func wordEnd(text string, i int) bool   { return i == len(text) || text[i] == ' ' }
