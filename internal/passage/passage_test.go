package passage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    Passage
		want float64
	}{
		{"distance", Passage{Distance: Float(0.2), RelevanceScore: Float(0.1)}, 0.2},
		{"relevance_score", Passage{RelevanceScore: Float(0.9), Relevance: Float(0.1)}, 0.1},
		{"relevance", Passage{Relevance: Float(0.7), SimilarityScore: Float(0.1)}, 0.3},
		{"similarity_score", Passage{SimilarityScore: Float(0.6)}, 0.4},
		{"default", Passage{}, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.p.EffectiveDistance(), 1e-9, tt.name)
		assert.InDelta(t, 1-tt.want, tt.p.Score(), 1e-9, tt.name)
	}
}

func TestDedupeFirstSeenWins(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 200)
	broad := List{
		{Text: "Venus in the 7th house", Source: "broad"},
		{Text: long + " tail one", Source: "broad"},
	}
	deep := List{
		{Text: "  VENUS IN THE 7TH HOUSE  ", Source: "deep"},
		{Text: long + " tail two", Source: "deep"},
		{Text: "Mahadasha timing rule", Source: "deep"},
		{Text: "   "},
	}

	got := Dedupe(broad, deep)
	assert.Len(t, got, 3)
	assert.Equal(t, "broad", got[0].Source)
	assert.Equal(t, "broad", got[1].Source, "texts sharing the first 200 characters merge")
	assert.Equal(t, "Mahadasha timing rule", got[2].Text)
}

func TestStableID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "given", Passage{ID: "given", Text: "x"}.StableID())
	a := Passage{Text: "Venus rule"}.StableID()
	assert.Equal(t, a, Passage{Text: "Venus rule"}.StableID())
	assert.True(t, strings.HasPrefix(a, "p_"))
	assert.Len(t, a, 14)
	assert.NotEqual(t, a, Passage{Text: "Saturn rule"}.StableID())
}

func TestRecords(t *testing.T) {
	t.Parallel()

	l := List{
		{Text: "a", Query: "q", Distance: Float(0.25)},
		{Text: "b", Source: "BPHS", RerankScore: Float(1.4)},
	}
	got := l.Records()
	assert.Equal(t, Record{Text: "a", Source: DefaultSource, Query: "q", Relevance: 0.75}, got[0])
	assert.Equal(t, Record{Text: "b", Source: "BPHS", Relevance: 1.4}, got[1])
}
