package signatures

import "strings"

// Matcher tests content against a signature list using case-insensitive
// substring containment.
type Matcher struct {
	patterns []pattern
}

type pattern struct {
	original string
	folded   string
}

// NewMatcher builds a matcher. Empty entries are dropped and signatures that
// fold to the same lower-case text are kept once, first occurrence wins.
func NewMatcher(sigs []string) *Matcher {
	seen := make(map[string]struct{}, len(sigs))
	m := &Matcher{patterns: make([]pattern, 0, len(sigs))}
	for _, s := range sigs {
		folded := strings.ToLower(s)
		if folded == "" {
			continue
		}
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		m.patterns = append(m.patterns, pattern{original: s, folded: folded})
	}
	return m
}

// Len returns the number of distinct patterns.
func (m *Matcher) Len() int {
	return len(m.patterns)
}

// Match decodes content permissively, dropping invalid UTF-8, and returns
// every signature it contains, in list order.
func (m *Matcher) Match(content []byte) []string {
	if len(m.patterns) == 0 || len(content) == 0 {
		return nil
	}
	text := strings.ToLower(strings.ToValidUTF8(string(content), ""))

	var hits []string
	for _, p := range m.patterns {
		if strings.Contains(text, p.folded) {
			hits = append(hits, p.original)
		}
	}
	return hits
}
