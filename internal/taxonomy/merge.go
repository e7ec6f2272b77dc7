package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/normalize"
)

// MergeOptions controls how discovery proposals are folded into a taxonomy.
type MergeOptions struct {
	// MaxPerCategory caps accepted candidates per category; 0 means no cap.
	MaxPerCategory int
	// MinCorrelation drops candidates below this correlation.
	MinCorrelation float64
	// IncludeConflicts accepts tokens already declared by another category.
	IncludeConflicts bool
	// Weight is given to new patterns; 0 or a non-finite value means DefaultWeight.
	Weight float64
}

// MergeStats reports what a merge did.
type MergeStats struct {
	Added     map[string]int `json:"added"`
	Skipped   int            `json:"skipped"`
	Conflicts int            `json:"conflicts"`
	Unknown   int            `json:"unknown_category"`
}

// Total returns the number of patterns added.
func (s MergeStats) Total() int {
	n := 0
	for _, v := range s.Added {
		n += v
	}
	return n
}

// Merge returns a new taxonomy with accepted candidates appended to their
// categories in the order given. t is not modified. Candidates naming the
// fallback or an unknown category are skipped.
func Merge(t *Taxonomy, candidates []domain.KeywordCandidate, opts MergeOptions) (*Taxonomy, MergeStats) {
	weight := opts.Weight
	if !validWeight(weight) {
		weight = DefaultWeight
	}

	out := &Taxonomy{
		Source:     t.Source,
		Fallback:   t.Fallback,
		Categories: make([]Category, len(t.Categories)),
		Warnings:   append([]string(nil), t.Warnings...),
	}
	for i, c := range t.Categories {
		out.Categories[i] = Category{Name: c.Name, Patterns: append([]Pattern(nil), c.Patterns...)}
	}

	stats := MergeStats{Added: make(map[string]int)}
	owners := t.Owners()

	for _, cand := range candidates {
		idx := out.Index(cand.Category)
		if idx < 0 {
			stats.Unknown++
			continue
		}

		text := normalize.Text(cand.Token)
		switch {
		case text == "" || cand.Correlation < opts.MinCorrelation:
			stats.Skipped++
			continue
		case opts.MaxPerCategory > 0 && stats.Added[cand.Category] >= opts.MaxPerCategory:
			stats.Skipped++
			continue
		case hasPattern(out.Categories[idx], text):
			stats.Skipped++
			continue
		}

		if others := otherOwners(owners[text], cand.Category); len(others) > 0 || cand.Conflict {
			stats.Conflicts++
			if !opts.IncludeConflicts {
				continue
			}
		}

		out.Categories[idx].Patterns = append(out.Categories[idx].Patterns, Pattern{
			Text:   text,
			Raw:    cand.Token,
			Weight: weight,
		})
		stats.Added[cand.Category]++
	}

	return out, stats
}

// Save writes t as YAML to path. When path already exists its current content
// is first copied to "<path>.backup.<timestamp>", whose name is returned.
func Save(t *Taxonomy, path string) (string, error) {
	data, err := t.Marshal()
	if err != nil {
		return "", err
	}

	backup, err := backupFile(path)
	if err != nil {
		return "", err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // taxonomy files are not secret
		return backup, fmt.Errorf("write taxonomy: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return backup, fmt.Errorf("replace taxonomy: %w", err)
	}
	return backup, nil
}

func backupFile(path string) (string, error) {
	current, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read taxonomy for backup: %w", err)
	}

	backup := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(backup, current, 0o644); err != nil { //nolint:gosec // copy of a non-secret file
		return "", fmt.Errorf("write backup %s: %w", filepath.Base(backup), err)
	}
	return backup, nil
}

func hasPattern(c Category, text string) bool {
	for _, p := range c.Patterns {
		if p.Text == text {
			return true
		}
	}
	return false
}

func otherOwners(owners []string, category string) []string {
	var out []string
	for _, o := range owners {
		if o != category {
			out = append(out, o)
		}
	}
	return out
}
