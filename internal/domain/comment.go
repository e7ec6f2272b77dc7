package domain

import "strings"

// Metric identifies the survey instrument a score belongs to.
type Metric string

// Metric constants
const (
	MetricNPS  Metric = "NPS"
	MetricCSAT Metric = "CSAT"
)

// CommentRecord is one survey answer as read from the store. The engine only
// reads it; derived fields are written back through ClassificationResult.
type CommentRecord struct {
	ID          int64    `db:"id"           json:"id"`
	SourceTable string   `db:"-"            json:"source_table,omitempty"`
	Channel     string   `db:"canal"        json:"channel,omitempty"`
	Metric      string   `db:"metrica"      json:"metric,omitempty"`
	Score       *float64 `db:"score"        json:"score,omitempty"`
	RawText     string   `db:"motivo_texto" json:"raw_text"`
}

// ClassifiedComment is a stored comment together with its persisted classification.
// Discovery reads these.
type ClassifiedComment struct {
	CommentRecord
	Category   *string  `db:"categoria"           json:"category,omitempty"`
	Confidence *float64 `db:"categoria_confianza" json:"confidence,omitempty"`
	IsNoise    *bool    `db:"es_ruido"            json:"is_noise,omitempty"`
}

// Outcome labels derived from the survey score.
const (
	LabelPromoter     = "promoter"
	LabelPassive      = "passive"
	LabelDetractor    = "detractor"
	LabelSatisfied    = "satisfied"
	LabelNeutral      = "neutral"
	LabelDissatisfied = "dissatisfied"
)

// OutcomeLabel maps the score to its survey outcome: NPS 0-6 detractor, 7-8
// passive, 9-10 promoter; CSAT below 3 dissatisfied, 4 and above satisfied.
// It returns "" when the metric is unknown or the score is missing.
func (r *CommentRecord) OutcomeLabel() string {
	if r.Score == nil {
		return ""
	}
	s := *r.Score
	switch Metric(strings.ToUpper(strings.TrimSpace(r.Metric))) {
	case MetricNPS:
		switch {
		case s <= 6:
			return LabelDetractor
		case s <= 8:
			return LabelPassive
		default:
			return LabelPromoter
		}
	case MetricCSAT:
		switch {
		case s < 3:
			return LabelDissatisfied
		case s >= 4:
			return LabelSatisfied
		default:
			return LabelNeutral
		}
	default:
		return ""
	}
}
