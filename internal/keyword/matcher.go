package keyword

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Matcher scans text for whole-word occurrences of a vocabulary.
//
// A single Aho-Corasick pass narrows the vocabulary down to the keywords that
// occur anywhere in the text; each candidate is then confirmed against word
// boundaries so that "MON" never matches inside "MONTH" and "2:30" never
// matches inside "12:30".
type Matcher struct {
	mu       sync.Mutex
	keywords []string
	ac       *ahocorasick.Matcher
}

// NewMatcher builds the automaton for vocab. Empty and duplicate entries are
// ignored.
func NewMatcher(vocab Vocabulary) *Matcher {
	keywords := make([]string, 0, len(vocab))
	seen := make(map[string]struct{}, len(vocab))
	for _, kw := range vocab {
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}

	m := &Matcher{keywords: keywords}
	if len(keywords) > 0 {
		m.ac = ahocorasick.NewStringMatcher(keywords)
	}
	return m
}

// Keywords returns the deduplicated vocabulary the matcher was built from.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// Match returns the subset of the vocabulary present in text as whole words.
func (m *Matcher) Match(text string) Set {
	out := make(Set)
	if m.ac == nil || text == "" {
		return out
	}

	// The automaton keeps per-call scratch state.
	m.mu.Lock()
	hits := m.ac.Match([]byte(text))
	m.mu.Unlock()

	for _, idx := range hits {
		if idx < 0 || idx >= len(m.keywords) {
			continue
		}
		kw := m.keywords[idx]
		if containsWord(text, kw) {
			out.Add(kw)
		}
	}
	return out
}

// Match is a convenience wrapper for one-off scans.
func Match(text string, vocab Vocabulary) Set {
	return NewMatcher(vocab).Match(text)
}

func containsWord(text, kw string) bool {
	for start := 0; start <= len(text)-len(kw); {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		if isBoundary(text, i) && isBoundary(text, i+len(kw)) {
			return true
		}
		start = i + 1
	}
	return false
}

// isBoundary mirrors the \b assertion of ASCII regular expressions: exactly one
// side of pos is a word character. Text edges count as non-word.
func isBoundary(text string, pos int) bool {
	before := pos > 0 && isWordByte(text[pos-1])
	after := pos < len(text) && isWordByte(text[pos])
	return before != after
}

func isWordByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == '_':
		return true
	default:
		return false
	}
}
