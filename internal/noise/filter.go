// Package noise rejects comments that carry no classifiable content before they
// reach the matcher.
package noise

import (
	"strings"
	"unicode"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
)

// Default thresholds.
const (
	DefaultMinChars         = 3
	DefaultMinDistinctRatio = 0.3
	DefaultEntropyWindow    = 20
	DefaultMaxRepeatRun     = 6
	DefaultMinAlphaRatio    = 0.5
	DefaultMinTokenRepeats  = 3
)

// DefaultFillerTokens are normalized answers that say nothing about the experience.
var DefaultFillerTokens = []string{
	"na", "n", "a", "no", "si", "ok", "okay", "nada", "ninguno", "ninguna", "ningun",
	"sin", "comentario", "comentarios", "x", "xx", "xxx", "asdf", "test",
	"prueba", "null", "none", "nan", "etc", "ya", "eso", "es", "todo", "jaja", "jajaja", "jeje",
}

// Config holds the noise thresholds. Zero values take the defaults.
type Config struct {
	MinChars         int      `yaml:"min_chars"`
	MinDistinctRatio float64  `yaml:"min_distinct_ratio"`
	EntropyWindow    int      `yaml:"entropy_window"`
	MaxRepeatRun     int      `yaml:"max_repeat_run"`
	MinAlphaRatio    float64  `yaml:"min_alpha_ratio"`
	MinTokenRepeats  int      `yaml:"min_token_repeats"`
	FillerTokens     []string `yaml:"filler_tokens"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.MinChars == 0 {
		c.MinChars = DefaultMinChars
	}
	if c.MinDistinctRatio == 0 {
		c.MinDistinctRatio = DefaultMinDistinctRatio
	}
	if c.EntropyWindow == 0 {
		c.EntropyWindow = DefaultEntropyWindow
	}
	if c.MaxRepeatRun == 0 {
		c.MaxRepeatRun = DefaultMaxRepeatRun
	}
	if c.MinAlphaRatio == 0 {
		c.MinAlphaRatio = DefaultMinAlphaRatio
	}
	if c.MinTokenRepeats == 0 {
		c.MinTokenRepeats = DefaultMinTokenRepeats
	}
	if len(c.FillerTokens) == 0 {
		c.FillerTokens = DefaultFillerTokens
	}
}

// Filter applies the noise rules in order; the first rule that fires wins.
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	cfg    Config
	filler map[string]struct{}
}

// New creates a Filter. Filler tokens are matched against normalized tokens,
// so they should be given in normalized form.
func New(cfg Config) *Filter {
	cfg.SetDefaults()

	filler := make(map[string]struct{}, len(cfg.FillerTokens))
	for _, tok := range cfg.FillerTokens {
		for _, f := range strings.Fields(strings.ToLower(tok)) {
			filler[f] = struct{}{}
		}
	}

	return &Filter{cfg: cfg, filler: filler}
}

// Check reports whether normalized text is noise and why.
func (f *Filter) Check(normalized string) (bool, string) {
	stats := measure(normalized, f.cfg.EntropyWindow)

	if stats.runes < f.cfg.MinChars {
		return true, domain.NoiseTooShort
	}
	if f.lowEntropy(stats) {
		return true, domain.NoiseLowEntropy
	}
	if f.fillerOnly(normalized, stats) {
		return true, domain.NoiseFillerOnly
	}
	return false, ""
}

type textStats struct {
	runes      int // non-space runes
	letters    int
	distinct   int // distinct non-space runes within the entropy window
	longestRun int
}

func measure(s string, window int) textStats {
	var st textStats
	seen := make(map[rune]struct{})

	var prev rune
	run := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			prev, run = 0, 0
			continue
		}
		st.runes++
		if unicode.IsLetter(r) {
			st.letters++
		}
		if st.runes <= window {
			seen[r] = struct{}{}
		}

		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		st.longestRun = max(st.longestRun, run)
	}

	st.distinct = len(seen)
	return st
}

// lowEntropy flags keyboard mashing. A long run of one rune only counts when
// it makes up most of the text, so "buenoooooo servicio" is kept.
func (f *Filter) lowEntropy(st textStats) bool {
	if st.longestRun >= f.cfg.MaxRepeatRun && st.longestRun*2 > st.runes {
		return true
	}
	if st.distinct == 1 {
		return true
	}

	window := min(st.runes, f.cfg.EntropyWindow)
	return float64(st.distinct)/float64(window) < f.cfg.MinDistinctRatio
}

func (f *Filter) fillerOnly(normalized string, st textStats) bool {
	if float64(st.letters)/float64(st.runes) < f.cfg.MinAlphaRatio {
		return true
	}

	tokens := strings.Fields(normalized)
	allFiller := true
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
		if _, ok := f.filler[tok]; !ok && !isNumeric(tok) {
			allFiller = false
		}
	}
	if allFiller {
		return true
	}

	return len(counts) == 1 && len(tokens) >= f.cfg.MinTokenRepeats
}

func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}
