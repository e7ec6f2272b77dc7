// Package taxonomy holds the typed category/pattern model the matcher is
// compiled from. A Taxonomy is validated completely when it is built and is
// never mutated afterwards; merges produce a new value.
package taxonomy

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/normalize"
)

// DefaultFallback is the catch-all category name.
const DefaultFallback = "Otros"

// DefaultWeight applies to patterns declared without a weight.
const DefaultWeight = 1.0

// Pattern is a normalized keyword or phrase.
type Pattern struct {
	Text      string  `json:"text"`
	Raw       string  `json:"raw"`
	Weight    float64 `json:"weight"`
	Exclusion bool    `json:"exclusion,omitempty"`
}

// Category is a named, ordered list of patterns.
type Category struct {
	Name     string    `json:"name"`
	Patterns []Pattern `json:"patterns"`
}

// Taxonomy is the ordered category set plus the fallback name. Declaration
// order is the final tie-break, so it is preserved everywhere.
type Taxonomy struct {
	Source     string     `json:"source,omitempty"`
	Fallback   string     `json:"fallback"`
	Categories []Category `json:"categories"`
	// Warnings are non-fatal findings from compilation.
	Warnings []string `json:"warnings,omitempty"`
}

// Index returns the position of the named category or -1.
func (t *Taxonomy) Index(name string) int {
	for i := range t.Categories {
		if t.Categories[i].Name == name {
			return i
		}
	}
	return -1
}

// PatternCount returns the number of patterns across all categories.
func (t *Taxonomy) PatternCount() int {
	n := 0
	for i := range t.Categories {
		n += len(t.Categories[i].Patterns)
	}
	return n
}

// Owners maps each normalized positive pattern to the categories declaring it.
func (t *Taxonomy) Owners() map[string][]string {
	owners := make(map[string][]string)
	for _, c := range t.Categories {
		for _, p := range c.Patterns {
			if p.Exclusion {
				continue
			}
			owners[p.Text] = appendUnique(owners[p.Text], c.Name)
		}
	}
	return owners
}

// Definition is the on-disk YAML form. The Spanish keys written by the
// earlier tooling (categorias, nombre, palabras_clave) are accepted too.
type Definition struct {
	Fallback   string               `yaml:"fallback"`
	Categories []CategoryDefinition `yaml:"categories"`
	Categorias []CategoryDefinition `yaml:"categorias,omitempty"`
}

// CategoryDefinition is one category in a Definition.
type CategoryDefinition struct {
	Name          string              `yaml:"name"`
	Nombre        string              `yaml:"nombre,omitempty"`
	Patterns      []PatternDefinition `yaml:"patterns,omitempty"`
	Keywords      []string            `yaml:"keywords,omitempty"`
	PalabrasClave []string            `yaml:"palabras_clave,omitempty"`
	Exclusions    []string            `yaml:"exclusions,omitempty"`
}

// PatternDefinition is a pattern with explicit options. Weight defaults to 1.
type PatternDefinition struct {
	Text    string   `yaml:"text"`
	Weight  *float64 `yaml:"weight,omitempty"`
	Exclude bool     `yaml:"exclude,omitempty"`
}

// Load reads and compiles the taxonomy file at path.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes YAML and compiles it.
func Parse(data []byte, source string) (*Taxonomy, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, domain.NewTaxonomyError(source, []error{fmt.Errorf("decode yaml: %w", err)})
	}
	return Compile(def, source)
}

// Compile validates def and builds a Taxonomy. Every problem is collected and
// returned together as a *domain.TaxonomyError.
func Compile(def Definition, source string) (*Taxonomy, error) {
	t := &Taxonomy{
		Source:   source,
		Fallback: strings.TrimSpace(def.Fallback),
	}
	if t.Fallback == "" {
		t.Fallback = DefaultFallback
	}

	defs := append(append([]CategoryDefinition{}, def.Categories...), def.Categorias...)

	var problems []error
	seen := make(map[string]bool, len(defs))

	for i, cd := range defs {
		name := strings.TrimSpace(firstNonEmpty(cd.Name, cd.Nombre))
		switch {
		case name == "":
			problems = append(problems, fmt.Errorf("category #%d: name is required", i+1))
			continue
		case seen[name]:
			problems = append(problems, fmt.Errorf("duplicate category %q", name))
			continue
		}
		seen[name] = true

		cat, catProblems, warnings := compileCategory(name, cd)
		t.Warnings = append(t.Warnings, warnings...)

		if name == t.Fallback {
			// Older files list the fallback as an empty category; tolerate that.
			if len(cat.Patterns) > 0 {
				problems = append(problems, fmt.Errorf("category %q is the fallback and cannot declare patterns", name))
			}
			continue
		}

		problems = append(problems, catProblems...)
		if len(catProblems) == 0 {
			t.Categories = append(t.Categories, cat)
		}
	}

	if len(t.Categories) == 0 && len(problems) == 0 {
		problems = append(problems, domain.ErrNoCategories)
	}

	if err := domain.NewTaxonomyError(source, problems); err != nil {
		return nil, err
	}
	return t, nil
}

func compileCategory(name string, cd CategoryDefinition) (Category, []error, []string) {
	cat := Category{Name: name}

	var problems []error
	var warnings []string
	seen := make(map[string]bool)
	positives := 0

	add := func(raw string, weight *float64, exclude bool) {
		text := normalize.Text(raw)
		if text == "" {
			problems = append(problems, fmt.Errorf("category %q pattern %q: %w", name, raw, domain.ErrEmptyPattern))
			return
		}

		w := DefaultWeight
		if weight != nil {
			w = *weight
		}
		if !validWeight(w) {
			problems = append(problems, fmt.Errorf("category %q pattern %q: weight must be positive and finite, got %v", name, raw, w))
			return
		}

		key := fmt.Sprintf("%t/%s", exclude, text)
		if seen[key] {
			warnings = append(warnings, fmt.Sprintf("category %q repeats pattern %q; keeping the first", name, text))
			return
		}
		seen[key] = true

		if !exclude {
			positives++
		}
		cat.Patterns = append(cat.Patterns, Pattern{Text: text, Raw: raw, Weight: w, Exclusion: exclude})
	}

	for _, p := range cd.Patterns {
		add(p.Text, p.Weight, p.Exclude)
	}
	for _, kw := range cd.Keywords {
		add(kw, nil, false)
	}
	for _, kw := range cd.PalabrasClave {
		add(kw, nil, false)
	}
	for _, ex := range cd.Exclusions {
		add(ex, nil, true)
	}

	if positives == 0 && len(problems) == 0 {
		problems = append(problems, fmt.Errorf("category %q has no positive patterns", name))
	}

	return cat, problems, warnings
}

// Definition converts t back to its YAML form. Plain weight-1 patterns are
// written as keywords and exclusions; the rest keep their options.
func (t *Taxonomy) Definition() Definition {
	def := Definition{Fallback: t.Fallback}
	for _, c := range t.Categories {
		cd := CategoryDefinition{Name: c.Name}
		for _, p := range c.Patterns {
			raw := firstNonEmpty(p.Raw, p.Text)
			switch {
			case p.Weight != DefaultWeight:
				w := p.Weight
				cd.Patterns = append(cd.Patterns, PatternDefinition{Text: raw, Weight: &w, Exclude: p.Exclusion})
			case p.Exclusion:
				cd.Exclusions = append(cd.Exclusions, raw)
			default:
				cd.Keywords = append(cd.Keywords, raw)
			}
		}
		def.Categories = append(def.Categories, cd)
	}
	return def
}

// Marshal encodes t as YAML.
func (t *Taxonomy) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(t.Definition())
	if err != nil {
		return nil, fmt.Errorf("encode taxonomy: %w", err)
	}
	return data, nil
}

// IsTaxonomyError reports whether err came from taxonomy validation.
func IsTaxonomyError(err error) bool {
	var tErr *domain.TaxonomyError
	return errors.As(err, &tErr)
}

// validWeight rejects zero, negative, NaN and infinite weights.
func validWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 0)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
