package domain

import "fmt"

// Selector names the set of rows a run visits.
type Selector string

// Selector constants
const (
	// SelectorUncategorized selects rows never classified (no category and no noise flag).
	SelectorUncategorized Selector = "uncategorized"
	// SelectorAll selects every row.
	SelectorAll Selector = "all"
	// SelectorFallback selects rows currently in the fallback category.
	SelectorFallback Selector = "fallback"
)

// ParseSelector validates a selector name.
func ParseSelector(s string) (Selector, error) {
	switch sel := Selector(s); sel {
	case SelectorUncategorized, SelectorAll, SelectorFallback:
		return sel, nil
	default:
		return "", fmt.Errorf("unknown selector %q", s)
	}
}
