package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchScenario(t *testing.T) {
	t.Parallel()

	vocab := Vocabulary{"Monday", "Tuesday", "2:30", "Wednesday"}
	got := Match("Open Monday and Tuesday, slot at 2:30", vocab)

	assert.True(t, got.Equal(NewSet("Monday", "Tuesday", "2:30")), "got %v", got.Sorted(vocab))
	assert.False(t, got.Has("Wednesday"))
}

func TestMatchWholeWordsOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "abbreviation inside word", text: "MONTHLY SUNDAE", want: nil},
		{name: "uppercase day is not abbreviation", text: "MONDAY", want: nil},
		{name: "time inside longer time", text: "slots at 12:30 and 2:305", want: nil},
		{name: "time at edges", text: "2:30", want: []string{"2:30"}},
		{name: "punctuation boundaries", text: "(MON)/[FRI].", want: []string{"MON", "FRI"}},
		{name: "underscore is a word char", text: "SAT_ONLY", want: nil},
		{name: "case sensitive", text: "monday friday", want: nil},
		{name: "second occurrence qualifies", text: "SUNSET SUN", want: []string{"SUN"}},
		{name: "non ascii neighbours", text: "éMondayé", want: []string{"Monday"}},
		{name: "newline separated", text: "Thursday\nWED\n", want: []string{"Thursday", "WED"}},
		{name: "empty text", text: "", want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Match(tt.text, DefaultVocabulary)
			assert.True(t, got.Equal(NewSet(tt.want...)), "got %v want %v", got.Sorted(DefaultVocabulary), tt.want)
		})
	}
}

func TestMatchIsSubsetAndDeterministic(t *testing.T) {
	t.Parallel()

	text := "MON MON Monday Monday 2:30 2:30 FRI Saturday SUN"
	m := NewMatcher(DefaultVocabulary)

	first := m.Match(text)
	second := m.Match(text)
	require.True(t, first.Equal(second))

	vocab := NewSet(DefaultVocabulary...)
	for kw := range first {
		assert.True(t, vocab.Has(kw), "%q not in vocabulary", kw)
	}
	assert.Len(t, first.Sorted(DefaultVocabulary), first.Len())
}

func TestNewMatcherDeduplicatesVocabulary(t *testing.T) {
	t.Parallel()

	m := NewMatcher(Vocabulary{"MON", "", "MON", "TUE"})
	assert.Equal(t, []string{"MON", "TUE"}, m.Keywords())

	empty := NewMatcher(nil)
	assert.Equal(t, 0, empty.Match("MON TUE").Len())
}

func TestDiff(t *testing.T) {
	t.Parallel()

	s := NewSet("Monday", "Friday", "2:30")

	assert.True(t, Diff(s, nil).Equal(s), "fresh start reports everything")
	assert.True(t, Diff(s, NewSet()).Equal(s))
	assert.Equal(t, 0, Diff(s, s).Len(), "self diff is empty")

	added := Diff(NewSet("Monday", "Friday"), NewSet("Monday"))
	assert.True(t, added.Equal(NewSet("Friday")))

	disappeared := Diff(NewSet("Monday"), NewSet("Monday", "Friday"))
	assert.Equal(t, 0, disappeared.Len(), "disappearance is not a signal")
}

func TestSortedFollowsVocabulary(t *testing.T) {
	t.Parallel()

	s := NewSet("2:30", "stale", "Friday", "Monday", "alpha")
	assert.Equal(t, []string{"Monday", "Friday", "2:30", "alpha", "stale"}, s.Sorted(DefaultVocabulary))
	assert.Empty(t, Set(nil).Sorted(DefaultVocabulary))
}
