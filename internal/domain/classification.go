package domain

// Noise reasons, in the order the filter checks them.
const (
	NoiseTooShort   = "too_short"
	NoiseLowEntropy = "low_entropy"
	NoiseFillerOnly = "filler_only"
)

// Outcome summarizes how a record was classified.
type Outcome string

// Outcome constants
const (
	OutcomeCategorized Outcome = "categorized"
	OutcomeFallback    Outcome = "fallback"
	OutcomeNoise       Outcome = "noise"
	OutcomeError       Outcome = "error"
)

// MatchedPattern is one automaton hit, kept for audit.
type MatchedPattern struct {
	Category  string  `json:"category"`
	Pattern   string  `json:"pattern"`
	Weight    float64 `json:"weight"`
	Exclusion bool    `json:"exclusion,omitempty"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
}

// ClassificationResult holds the derived fields for one record. Category is nil
// for noise; the four persisted fields are always written together.
type ClassificationResult struct {
	RecordID        int64            `json:"record_id"`
	Category        *string          `json:"category"`
	Confidence      float64          `json:"confidence"`
	IsNoise         bool             `json:"is_noise"`
	NoiseReason     *string          `json:"noise_reason"`
	Outcome         Outcome          `json:"outcome"`
	MatchedPatterns []MatchedPattern `json:"matched_patterns,omitempty"`
}

// CategoryName returns the category or "" when none is set.
func (r *ClassificationResult) CategoryName() string {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}

// NoiseReasonName returns the noise reason or "" when none is set.
func (r *ClassificationResult) NoiseReasonName() string {
	if r.NoiseReason == nil {
		return ""
	}
	return *r.NoiseReason
}
