package common

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
	"github.com/jonesrussell/north-cloud/categorizer/internal/discovery"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func rightAlign(numbers ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, 0, len(numbers))
	for _, n := range numbers {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	return cfgs
}

// RenderReport prints a run summary followed by the per-category counts.
func RenderReport(w io.Writer, r *domain.Report) {
	title := fmt.Sprintf("Run %s (%s)", r.RunID, r.Selector)
	if r.DryRun {
		title += " [dry run]"
	}

	t := newTable(w, title)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Processed", r.Processed},
		{"Categorized", r.Categorized},
		{"Fallback", r.Fallback},
		{"Noise", r.Noise},
		{"Errors", r.Errors},
		{"Rows updated", r.Updated},
		{"Rows unchanged", r.Unchanged},
		{"Batches committed", r.Batches},
		{"Batches failed", r.FailedBatches},
		{"Rows left unprocessed", r.Remaining},
		{"Duration", r.Duration.Truncate(time.Millisecond)},
	})
	t.SetColumnConfigs(rightAlign(2))
	t.Render()

	if len(r.ByCategory) > 0 {
		renderCounts(w, "Categories", r.ByCategory, r.Processed)
	}
	if len(r.NoiseReasons) > 0 {
		renderCounts(w, "Noise reasons", r.NoiseReasons, r.Processed)
	}
}

func renderCounts(w io.Writer, title string, counts map[string]int, total int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})

	t := newTable(w, title)
	t.AppendHeader(table.Row{"Name", "Rows", "Share"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, counts[k], percent(int64(counts[k]), int64(total))})
	}
	t.SetColumnConfigs(rightAlign(2, 3))
	t.Render()
}

// RenderCandidates prints keyword candidates in report order.
func RenderCandidates(w io.Writer, candidates []domain.KeywordCandidate) {
	t := newTable(w, "Keyword candidates")
	t.AppendHeader(table.Row{"Token", "Category", "Support", "Correlation", "Lift", "Fallback hits", "Conflict"})
	for _, c := range candidates {
		conflict := ""
		if c.Conflict {
			conflict = c.ConflictCategory
		}
		t.AppendRow(table.Row{
			c.Token, c.Category, c.Support,
			fmt.Sprintf("%.3f", c.Correlation), fmt.Sprintf("%.2f", c.Lift),
			c.FallbackHits, conflict,
		})
	}
	t.SetColumnConfigs(rightAlign(3, 4, 5, 6))
	t.Render()
}

// RenderMisplaced prints patterns whose comments mostly carry another category.
func RenderMisplaced(w io.Writer, misplaced []discovery.Misplaced) {
	if len(misplaced) == 0 {
		return
	}
	t := newTable(w, "Misplaced patterns")
	t.AppendHeader(table.Row{"Pattern", "Category", "Suggested", "Current", "Suggested corr.", "Support"})
	for _, m := range misplaced {
		t.AppendRow(table.Row{
			m.Pattern, m.Category, m.Suggested,
			fmt.Sprintf("%.3f", m.CurrentCorrelation), fmt.Sprintf("%.3f", m.SuggestedCorrelation),
			m.Support,
		})
	}
	t.SetColumnConfigs(rightAlign(4, 5, 6))
	t.Render()
}

// RenderFindings prints taxonomy lint findings.
func RenderFindings(w io.Writer, findings []taxonomy.Finding) {
	if len(findings) == 0 {
		return
	}
	t := newTable(w, "Taxonomy findings")
	t.AppendHeader(table.Row{"Kind", "Pattern", "Categories", "Contains"})
	for _, f := range findings {
		t.AppendRow(table.Row{f.Kind, f.Pattern, strings.Join(f.Categories, ", "), f.Contains})
	}
	t.Render()
}

// RenderTaxonomy prints one row per category.
func RenderTaxonomy(w io.Writer, tx *taxonomy.Taxonomy) {
	t := newTable(w, fmt.Sprintf("Taxonomy %s (fallback %q)", tx.Source, tx.Fallback))
	t.AppendHeader(table.Row{"#", "Category", "Patterns", "Exclusions"})
	for i, c := range tx.Categories {
		exclusions := 0
		for _, p := range c.Patterns {
			if p.Exclusion {
				exclusions++
			}
		}
		t.AppendRow(table.Row{i + 1, c.Name, len(c.Patterns) - exclusions, exclusions})
	}
	t.AppendFooter(table.Row{"", "Total", tx.PatternCount(), ""})
	t.SetColumnConfigs(rightAlign(1, 3, 4))
	t.Render()
}

// RenderMergeStats prints the patterns a merge added per category.
func RenderMergeStats(w io.Writer, stats taxonomy.MergeStats) {
	t := newTable(w, "Merge")
	t.AppendHeader(table.Row{"Category", "Added"})
	keys := make([]string, 0, len(stats.Added))
	for k := range stats.Added {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		t.AppendRow(table.Row{k, stats.Added[k]})
	}
	t.AppendFooter(table.Row{"Total", stats.Total()})
	t.Render()
	_, _ = fmt.Fprintf(w, "skipped %d, conflicts %d, unknown category %d\n", stats.Skipped, stats.Conflicts, stats.Unknown)
}

// RenderDistribution prints the stored category distribution.
func RenderDistribution(w io.Writer, rows []database.CategoryCount) {
	var total int64
	for _, r := range rows {
		total += r.Count
	}

	t := newTable(w, "Stored classification")
	t.AppendHeader(table.Row{"Category", "Noise", "Rows", "Share"})
	for _, r := range rows {
		name := r.Category
		if name == "" && !r.IsNoise {
			name = "(unclassified)"
		}
		t.AppendRow(table.Row{name, r.IsNoise, r.Count, percent(r.Count, total)})
	}
	t.AppendFooter(table.Row{"Total", "", total, ""})
	t.SetColumnConfigs(rightAlign(3, 4))
	t.Render()
}

func percent(n, total int64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}
