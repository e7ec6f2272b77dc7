// Package matcher compiles every taxonomy pattern into one Aho-Corasick
// automaton so a comment is scanned once regardless of taxonomy size.
package matcher

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

const root = 0

// Entry is a compiled pattern, tagged with the category it belongs to.
type Entry struct {
	Category  int
	Text      string
	Weight    float64
	Exclusion bool
}

// Len returns the pattern length in bytes.
func (e *Entry) Len() int { return len(e.Text) }

// Match is one occurrence of an entry in the scanned text. Offsets are byte
// positions in the normalized text; End is exclusive.
type Match struct {
	Entry int
	Start int
	End   int
}

type node struct {
	next map[byte]int32
	fail int32
	// dict is the nearest node on the failure chain that ends a pattern, or -1.
	dict int32
	out  []int32
}

// Automaton is immutable after Build and safe for concurrent scans.
type Automaton struct {
	nodes      []node
	entries    []Entry
	categories []string
}

// Build inserts every positive and exclusion pattern of t into a trie, then
// links failure and dictionary edges breadth-first. It runs in time linear in
// the total pattern length.
func Build(t *taxonomy.Taxonomy) (*Automaton, error) {
	if t == nil || len(t.Categories) == 0 {
		return nil, domain.NewTaxonomyError(sourceOf(t), []error{domain.ErrNoCategories})
	}

	a := &Automaton{
		nodes:      []node{{fail: root, dict: -1}},
		categories: make([]string, len(t.Categories)),
	}

	var problems []error
	for ci, c := range t.Categories {
		a.categories[ci] = c.Name
		for _, p := range c.Patterns {
			if p.Text == "" {
				problems = append(problems, fmt.Errorf("category %q: %w", c.Name, domain.ErrEmptyPattern))
				continue
			}
			a.insert(Entry{Category: ci, Text: p.Text, Weight: p.Weight, Exclusion: p.Exclusion})
		}
	}
	if err := domain.NewTaxonomyError(sourceOf(t), problems); err != nil {
		return nil, err
	}

	a.link()
	return a, nil
}

func (a *Automaton) insert(e Entry) {
	cur := int32(root)
	for i := 0; i < len(e.Text); i++ {
		b := e.Text[i]
		n := &a.nodes[cur]
		nxt, ok := n.next[b]
		if !ok {
			if n.next == nil {
				n.next = make(map[byte]int32, 1)
			}
			nxt = int32(len(a.nodes))
			n.next[b] = nxt
			a.nodes = append(a.nodes, node{dict: -1})
		}
		cur = nxt
	}

	id := int32(len(a.entries))
	a.entries = append(a.entries, e)
	a.nodes[cur].out = append(a.nodes[cur].out, id)
}

func (a *Automaton) link() {
	queue := make([]int32, 0, len(a.nodes))
	for _, child := range a.nodes[root].next {
		a.nodes[child].fail = root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for b, child := range a.nodes[cur].next {
			f := a.nodes[cur].fail
			for {
				if nxt, ok := a.nodes[f].next[b]; ok && nxt != child {
					a.nodes[child].fail = nxt
					break
				}
				if f == root {
					a.nodes[child].fail = root
					break
				}
				f = a.nodes[f].fail
			}

			fail := a.nodes[child].fail
			if len(a.nodes[fail].out) > 0 {
				a.nodes[child].dict = fail
			} else {
				a.nodes[child].dict = a.nodes[fail].dict
			}
			queue = append(queue, child)
		}
	}
}

// Scan walks text once and calls fn for every occurrence of every pattern,
// overlapping occurrences included, in order of end position.
func (a *Automaton) Scan(text string, fn func(Match)) {
	state := int32(root)
	for i := 0; i < len(text); i++ {
		b := text[i]
		for {
			if nxt, ok := a.nodes[state].next[b]; ok {
				state = nxt
				break
			}
			if state == root {
				break
			}
			state = a.nodes[state].fail
		}

		for n := state; n >= 0; n = a.nodes[n].dict {
			for _, id := range a.nodes[n].out {
				end := i + 1
				fn(Match{Entry: int(id), Start: end - len(a.entries[id].Text), End: end})
			}
			if n == root {
				break
			}
		}
	}
}

// FindAll returns every match in text.
func (a *Automaton) FindAll(text string) []Match {
	var matches []Match
	a.Scan(text, func(m Match) { matches = append(matches, m) })
	return matches
}

// Entry returns the compiled pattern with the given id.
func (a *Automaton) Entry(id int) *Entry { return &a.entries[id] }

// Category returns the name of category index i.
func (a *Automaton) Category(i int) string { return a.categories[i] }

// NumCategories returns the number of categories compiled in.
func (a *Automaton) NumCategories() int { return len(a.categories) }

// NumEntries returns the number of compiled patterns.
func (a *Automaton) NumEntries() int { return len(a.entries) }

// NumStates returns the trie size, including the root.
func (a *Automaton) NumStates() int { return len(a.nodes) }

func sourceOf(t *taxonomy.Taxonomy) string {
	if t == nil {
		return ""
	}
	return t.Source
}
