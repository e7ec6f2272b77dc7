package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCategories is reported when a taxonomy defines no categories.
var ErrNoCategories = errors.New("taxonomy has no categories")

// ErrEmptyPattern is reported when a pattern is empty after normalization.
var ErrEmptyPattern = errors.New("pattern is empty after normalization")

// TaxonomyError collects every problem found while loading or compiling a
// taxonomy. It is always fatal.
type TaxonomyError struct {
	Source   string
	Problems []error
}

// NewTaxonomyError returns nil when problems is empty.
func NewTaxonomyError(source string, problems []error) error {
	if len(problems) == 0 {
		return nil
	}
	return &TaxonomyError{Source: source, Problems: problems}
}

func (e *TaxonomyError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	src := e.Source
	if src == "" {
		src = "taxonomy"
	}
	return fmt.Sprintf("invalid taxonomy %s: %s", src, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *TaxonomyError) Unwrap() []error {
	return e.Problems
}
