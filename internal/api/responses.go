package api

import (
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

// ClassifyRequest is a batch of free texts to preview.
type ClassifyRequest struct {
	Texts []string `binding:"required,min=1,max=500" json:"texts"`
	// MinConfidence overrides the configured threshold for this request.
	MinConfidence float64 `binding:"gte=0,lte=1" json:"min_confidence"`
}

// ClassifiedText is one previewed text with its matched patterns.
type ClassifiedText struct {
	Text       string                      `json:"text"`
	Normalized string                      `json:"normalized"`
	Result     domain.ClassificationResult `json:"result"`
}

// ClassifyResponse holds previews in request order plus totals.
type ClassifyResponse struct {
	Results    []ClassifiedText       `json:"results"`
	Total      int                    `json:"total"`
	ByOutcome  map[domain.Outcome]int `json:"by_outcome"`
	ByCategory map[string]int         `json:"by_category"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PatternResponse is one taxonomy pattern.
type PatternResponse struct {
	Text      string  `json:"text"`
	Weight    float64 `json:"weight"`
	Exclusion bool    `json:"exclusion,omitempty"`
}

// CategoryResponse is one taxonomy category.
type CategoryResponse struct {
	Name     string            `json:"name"`
	Patterns []PatternResponse `json:"patterns"`
}

// TaxonomyResponse describes the loaded taxonomy.
type TaxonomyResponse struct {
	Source     string             `json:"source,omitempty"`
	Fallback   string             `json:"fallback"`
	Categories []CategoryResponse `json:"categories"`
	Patterns   int                `json:"patterns"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// CategoryStat is one stored category count.
type CategoryStat struct {
	Category string `json:"category"`
	IsNoise  bool   `json:"is_noise"`
	Count    int64  `json:"count"`
}

// StatsResponse is the stored classification distribution.
type StatsResponse struct {
	Categories []CategoryStat            `json:"categories"`
	Total      int64                     `json:"total"`
	Pending    map[domain.Selector]int64 `json:"pending"`
}

func toTaxonomyResponse(t *taxonomy.Taxonomy) TaxonomyResponse {
	resp := TaxonomyResponse{
		Source:     t.Source,
		Fallback:   t.Fallback,
		Categories: make([]CategoryResponse, 0, len(t.Categories)),
		Patterns:   t.PatternCount(),
		Warnings:   t.Warnings,
	}
	for _, c := range t.Categories {
		cr := CategoryResponse{Name: c.Name, Patterns: make([]PatternResponse, 0, len(c.Patterns))}
		for _, p := range c.Patterns {
			cr.Patterns = append(cr.Patterns, PatternResponse{Text: p.Text, Weight: p.Weight, Exclusion: p.Exclusion})
		}
		resp.Categories = append(resp.Categories, cr)
	}
	return resp
}
