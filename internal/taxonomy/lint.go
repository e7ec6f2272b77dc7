package taxonomy

import (
	"fmt"
	"slices"
	"sort"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// FindingKind classifies a lint finding.
type FindingKind string

const (
	// FindingDuplicate: the same positive pattern is declared by several categories.
	FindingDuplicate FindingKind = "duplicate"
	// FindingOverlap: a pattern contains another category's pattern, so any
	// text matching it also scores for that other category.
	FindingOverlap FindingKind = "overlap"
)

// Finding is a non-fatal taxonomy hygiene problem.
type Finding struct {
	Kind       FindingKind `json:"kind"               yaml:"kind"`
	Pattern    string      `json:"pattern"            yaml:"pattern"`
	Categories []string    `json:"categories"         yaml:"categories"`
	Contains   string      `json:"contains,omitempty" yaml:"contains,omitempty"`
}

func (f Finding) String() string {
	if f.Kind == FindingOverlap {
		return fmt.Sprintf("%s: %q (%s) contains %q (%s)", f.Kind, f.Pattern, f.Categories[0], f.Contains, f.Categories[1])
	}
	return fmt.Sprintf("%s: %q declared in %v", f.Kind, f.Pattern, f.Categories)
}

// Lint reports duplicate and overlapping positive patterns across categories.
func Lint(t *Taxonomy) []Finding {
	owners := t.Owners()

	texts := make([]string, 0, len(owners))
	for text := range owners {
		texts = append(texts, text)
	}
	sort.Strings(texts)

	var findings []Finding
	for _, text := range texts {
		if len(owners[text]) > 1 {
			findings = append(findings, Finding{
				Kind:       FindingDuplicate,
				Pattern:    text,
				Categories: slices.Clone(owners[text]),
			})
		}
	}

	if len(texts) == 0 {
		return findings
	}

	matcher := ahocorasick.NewStringMatcher(texts)
	for _, text := range texts {
		hits := matcher.Match([]byte(text))
		sort.Ints(hits)
		for _, hit := range hits {
			inner := texts[hit]
			if inner == text {
				continue
			}
			for _, outerCat := range owners[text] {
				for _, innerCat := range owners[inner] {
					if outerCat == innerCat {
						continue
					}
					findings = append(findings, Finding{
						Kind:       FindingOverlap,
						Pattern:    text,
						Categories: []string{outerCat, innerCat},
						Contains:   inner,
					})
				}
			}
		}
	}

	return findings
}
