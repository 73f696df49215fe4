// Package keyword holds the calendar vocabulary and the set algebra used to
// decide whether a page gained new availability since the last check.
package keyword

import "sort"

// Vocabulary is an ordered list of literal keywords. Order only affects how
// sets are rendered, never what matches.
type Vocabulary []string

// DefaultVocabulary is the fixed set of day names, day abbreviations and the
// one time token the checker scans for.
var DefaultVocabulary = Vocabulary{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
	"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN",
	"2:30",
}

// Set is an unordered collection of unique keywords.
type Set map[string]struct{}

// NewSet builds a Set from the given keywords, dropping duplicates.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts kw into the set.
func (s Set) Add(kw string) {
	s[kw] = struct{}{}
}

// Has reports whether kw is a member.
func (s Set) Has(kw string) bool {
	_, ok := s[kw]
	return ok
}

// Len returns the number of members. A nil set has length zero.
func (s Set) Len() int {
	return len(s)
}

// Equal reports whether both sets hold exactly the same keywords.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for kw := range s {
		if !other.Has(kw) {
			return false
		}
	}
	return true
}

// Sorted renders the set as a slice following the order of vocab. Members that
// are not part of vocab (for example stale entries read back from an older
// state file) are appended in lexical order.
func (s Set) Sorted(vocab Vocabulary) []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]struct{}, len(s))
	for _, kw := range vocab {
		if _, dup := seen[kw]; dup {
			continue
		}
		if s.Has(kw) {
			out = append(out, kw)
			seen[kw] = struct{}{}
		}
	}
	var extra []string
	for kw := range s {
		if _, ok := seen[kw]; !ok {
			extra = append(extra, kw)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Diff returns the keywords present in current but absent from previous.
// Keywords that disappeared are not part of the result. A nil previous set is
// treated as empty, so on a fresh start every current keyword is new.
func Diff(current, previous Set) Set {
	out := make(Set)
	for kw := range current {
		if !previous.Has(kw) {
			out[kw] = struct{}{}
		}
	}
	return out
}
