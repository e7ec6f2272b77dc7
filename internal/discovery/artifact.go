package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Sheet names of the XLSX artifact.
const (
	SheetCandidates = "Candidates"
	SheetMisplaced  = "Misplaced"
	SheetFindings   = "Findings"
)

// WriteReport writes r to path. The format follows the extension: .xlsx for
// review in a spreadsheet, .json, or YAML (the mergeable default).
func WriteReport(r *Report, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return writeXLSX(r, path)
	case ".json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		return writeFile(path, data)
	default:
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		return writeFile(path, data)
	}
}

// ReadReport loads a YAML or JSON report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var r Report
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return nil, fmt.Errorf("read report %s: xlsx reports are for review only", path)
	case ".json":
		err = json.Unmarshal(data, &r)
	default:
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: report is meant to be shared
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeXLSX(r *Report, path string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetCandidates); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	candidates := [][]any{{
		"token", "category", "support", "token_total", "correlation", "lift",
		"fallback_hits", "conflict", "conflict_category",
	}}
	for _, c := range r.Candidates {
		candidates = append(candidates, []any{
			c.Token, c.Category, c.Support, c.TokenTotal, c.Correlation, c.Lift,
			c.FallbackHits, c.Conflict, c.ConflictCategory,
		})
	}
	if err := writeRows(f, SheetCandidates, candidates); err != nil {
		return err
	}

	misplaced := [][]any{{"pattern", "category", "suggested", "current_correlation", "suggested_correlation", "support"}}
	for _, m := range r.Misplaced {
		misplaced = append(misplaced, []any{
			m.Pattern, m.Category, m.Suggested, m.CurrentCorrelation, m.SuggestedCorrelation, m.Support,
		})
	}
	if err := writeSheet(f, SheetMisplaced, misplaced); err != nil {
		return err
	}

	findings := [][]any{{"kind", "pattern", "categories", "contains"}}
	for _, fd := range r.Findings {
		findings = append(findings, []any{string(fd.Kind), fd.Pattern, strings.Join(fd.Categories, ", "), fd.Contains})
	}
	if err := writeSheet(f, SheetFindings, findings); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
