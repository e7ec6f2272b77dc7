package discovery

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonesrussell/north-cloud/categorizer/internal/normalize"
)

// DefaultStopwords are common Spanish function words, already normalized.
var DefaultStopwords = []string{
	"el", "la", "de", "que", "y", "a", "en", "un", "ser", "se", "no", "haber",
	"por", "con", "su", "para", "como", "estar", "tener", "le", "lo", "todo",
	"pero", "mas", "hacer", "o", "poder", "decir", "este", "ir", "otro", "ese",
	"si", "me", "ya", "ver", "porque", "dar", "cuando", "muy", "sin", "vez",
	"mucho", "mucha", "saber", "sobre", "mi", "alguno", "mismo", "yo", "tambien",
	"hasta", "ano", "dos", "querer", "entre", "asi", "primero", "desde", "grande",
	"eso", "ni", "nos", "llegar", "pasar", "tiempo", "ella", "del", "al", "los",
	"las", "una", "unos", "unas", "es", "son", "fue", "era", "han", "hay", "he",
	"has", "ha", "estoy", "esta", "estan", "sea", "solo", "bien", "cual", "donde",
	"quien", "cada",
}

// tokenizer extracts the distinct terms of one comment: unigrams that pass the
// length and stopword filters, plus n-grams up to maxNGram whose first and
// last words pass them.
type tokenizer struct {
	minLen, maxLen int
	maxNGram       int
	stopwords      map[string]struct{}
}

func newTokenizer(cfg Config) *tokenizer {
	stop := make(map[string]struct{}, len(cfg.Stopwords))
	for _, w := range cfg.Stopwords {
		if n := normalize.Text(w); n != "" {
			stop[n] = struct{}{}
		}
	}
	return &tokenizer{
		minLen:    cfg.MinTokenLen,
		maxLen:    cfg.MaxTokenLen,
		maxNGram:  cfg.MaxNGram,
		stopwords: stop,
	}
}

// terms returns the distinct terms of normalized text in first-seen order.
func (tk *tokenizer) terms(normalized string) []string {
	words := normalize.Tokens(normalized)
	if len(words) == 0 {
		return nil
	}

	keep := make([]bool, len(words))
	alpha := make([]bool, len(words))
	for i, w := range words {
		alpha[i] = isAlphabetic(w)
		keep[i] = alpha[i] && tk.accept(w)
	}

	seen := make(map[string]struct{}, len(words))
	var out []string
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for i, w := range words {
		if keep[i] {
			add(w)
		}
		for n := 2; n <= tk.maxNGram && i+n <= len(words); n++ {
			last := i + n - 1
			if !keep[i] || !keep[last] || !allTrue(alpha[i:last+1]) {
				continue
			}
			add(strings.Join(words[i:last+1], " "))
		}
	}
	return out
}

func (tk *tokenizer) accept(w string) bool {
	n := utf8.RuneCountInString(w)
	if n < tk.minLen || n > tk.maxLen {
		return false
	}
	_, stop := tk.stopwords[w]
	return !stop
}

func isAlphabetic(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return w != ""
}

func allTrue(bs []bool) bool {
	for _, b := range bs {
		if !b {
			return false
		}
	}
	return true
}
