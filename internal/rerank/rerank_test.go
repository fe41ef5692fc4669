package rerank

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"astro-rag/internal/passage"
)

func TestRerankDegenerateCases(t *testing.T) {
	t.Parallel()

	r := New(Weights{}, zaptest.NewLogger(t))

	got := r.Rerank(nil, "when will I marry", Options{})
	assert.NotNil(t, got)
	assert.Empty(t, got)

	single := passage.List{{Text: "Venus rules marriage", Distance: passage.Float(0.4)}}
	got = r.Rerank(single, "when will I marry", Options{TopK: 5})
	require.Len(t, got, 1)
	assert.Equal(t, single[0], got[0])
	assert.Nil(t, got[0].RerankScore, "single passages are not scored")
}

func TestRerankCloseTaggedPassageWins(t *testing.T) {
	t.Parallel()

	r := New(DefaultWeights(), zaptest.NewLogger(t))
	body := strings.Repeat("x", 600)
	far := passage.Passage{Text: "far " + body, Distance: passage.Float(0.9)}
	near := passage.Passage{Text: "near " + body, Distance: passage.Float(0.0), Tags: []string{"marriage"}}

	got := r.Rerank(passage.List{far, near}, "marriage timing", Options{})
	require.Len(t, got, 2)
	assert.Equal(t, near.Text, got[0].Text)
	assert.Equal(t, 1, *got[0].OriginalRank)
	assert.Equal(t, 0, *got[1].OriginalRank)
	assert.Greater(t, *got[0].RerankScore, *got[1].RerankScore)
}

func TestRerankIsDeterministic(t *testing.T) {
	t.Parallel()

	r := New(DefaultWeights(), nil)
	in := passage.List{
		{Text: "Saturn delays marriage in the seventh house", RelevanceScore: passage.Float(0.7)},
		{Text: "Venus in Libra gives a charming spouse", Distance: passage.Float(0.2), Tags: []string{"venus"}},
		{Text: "Jupiter transit over the seventh lord", Relevance: passage.Float(0.6)},
		{Text: "Dasha of the seventh lord brings marriage", SimilarityScore: passage.Float(0.65)},
		{Text: "unscored passage about houses"},
	}
	q := "When will Venus bring marriage?"

	first := r.Rerank(in, q, Options{})
	second := r.Rerank(in, q, Options{})
	assert.Equal(t, first.IDs(), second.IDs())
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, *first[i-1].RerankScore, *first[i].RerankScore)
	}
	assert.Nil(t, in[0].RerankScore, "input is not annotated")
}

func TestRerankTiesKeepInputOrder(t *testing.T) {
	t.Parallel()

	r := New(DefaultWeights(), nil)
	in := passage.List{{Text: "alpha"}, {Text: "bravo"}, {Text: "charlie"}, {Text: "delta"}}
	got := r.Rerank(in, "unrelated question", Options{})
	for i, p := range got {
		assert.Equal(t, in[i].Text, p.Text)
		assert.Equal(t, i, *p.OriginalRank)
	}
}

func TestRerankTopK(t *testing.T) {
	t.Parallel()

	r := New(DefaultWeights(), nil)
	in := passage.List{
		{Text: "a passage", Distance: passage.Float(0.8)},
		{Text: "b passage", Distance: passage.Float(0.1)},
		{Text: "c passage", Distance: passage.Float(0.5)},
	}
	got := r.Rerank(in, "q", Options{TopK: 2})
	require.Len(t, got, 2)
	assert.Equal(t, "b passage", got[0].Text)
	assert.Equal(t, "c passage", got[1].Text)
}

func TestRerankFusedScore(t *testing.T) {
	t.Parallel()

	r := New(DefaultWeights(), nil)
	in := passage.List{
		{Text: "Venus promises marriage", Distance: passage.Float(0.2), Tags: []string{"venus", "saturn"}},
		{Text: "filler", Distance: passage.Float(0.9)},
	}
	got := r.Rerank(in, "marriage timing venus", Options{})

	idf := (0.8 + 0.5) / (0.8 + 0.6 + 0.5)
	want := 1.0*0.8 + 0.35*idf + 0.2*0.5 + 0.15*(2.0/3) + 0.2
	assert.InDelta(t, want, *got[0].RerankScore, 1e-9)
}

func TestRerankPrecomputedQueryTokens(t *testing.T) {
	t.Parallel()

	r := New(DefaultWeights(), nil)
	in := passage.List{{Text: "saturn return"}, {Text: "venus return"}}
	got := r.Rerank(in, "ignored", Options{QueryTokens: Tokenize("venus")})
	assert.Equal(t, "venus return", got[0].Text)
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := Tokenize("The 7th lord AND Venus-in-Libra, for an age of 108!")
	want := TokenSet{"7th": {}, "lord": {}, "venus": {}, "libra": {}, "age": {}, "108": {}}
	assert.Equal(t, want, got)
	assert.Empty(t, Tokenize(""))
}

func TestLengthScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want float64
	}{
		{0, 2.0 / 3},
		{300, 2.0 / 3},
		{450, 1 - 150.0/900},
		{600, 1},
		{900, 2.0 / 3},
		{5000, 2.0 / 3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, lengthScore(tt.n), 1e-9, "length %d", tt.n)
	}
}

func TestTagScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, tagScore("venus", nil))
	assert.Equal(t, 1.0, tagScore("venus in libra", []string{"Venus", "libra"}))
	assert.Equal(t, 0.5, tagScore("venus", []string{"venus", "mars"}))
}

func TestIDFOverlapEmptySets(t *testing.T) {
	t.Parallel()

	q := Tokenize("venus")
	assert.Equal(t, 0.0, idfOverlap(TokenSet{}, 0, q))
	assert.Equal(t, 0.0, idfOverlap(q, q.weight(), TokenSet{}))
}
