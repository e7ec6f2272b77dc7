package domain

// KeywordCandidate is a token proposed for a label by the discovery run.
// Candidates are never applied automatically.
type KeywordCandidate struct {
	Token       string  `json:"token"        yaml:"token"`
	Category    string  `json:"category"     yaml:"category"`
	Support     int     `json:"support"      yaml:"support"`
	TokenTotal  int     `json:"token_total"  yaml:"token_total"`
	Correlation float64 `json:"correlation"  yaml:"correlation"`
	Lift        float64 `json:"lift"         yaml:"lift"`
	// FallbackHits counts fallback-bucket comments containing the token,
	// i.e. how many rows a merge could pull out of the catch-all.
	FallbackHits     int    `json:"fallback_hits"               yaml:"fallback_hits"`
	Conflict         bool   `json:"conflict"                    yaml:"conflict"`
	ConflictCategory string `json:"conflict_category,omitempty" yaml:"conflict_category,omitempty"`
}
