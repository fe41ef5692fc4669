package cache

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKeyLiteralFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		session string
		niche   string
		factor  string
		want    string
	}{
		{"ampersand niche", "abc123", "Love & Relationships", "venus_sign", "astro:rag:abc123:love_and_relationships:venus_sign"},
		{"already normalized", "abc123", "love_and_relationships", "venus_sign", "astro:rag:abc123:love_and_relationships:venus_sign"},
		{"factor with spaces", "s", "Career & Finance", "10th Lord", "astro:rag:s:career_and_finance:10th_lord"},
		{"timing pseudo factor", "s", "Health & Wellness", "Mars_Mahadasha_Effects", "astro:rag:s:health_and_wellness:mars_mahadasha_effects"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FactorKey{SessionID: tt.session, Niche: tt.niche, Factor: tt.factor}.String()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, BuildKey(RAGNamespace, tt.session, tt.niche, tt.factor), "key builder must be deterministic")
		})
	}
}

func TestCosmeticNicheDifferencesShareAKey(t *testing.T) {
	t.Parallel()

	a := FactorKey{SessionID: "s", Niche: "Love & Relationships", Factor: "venus_sign"}.String()
	b := FactorKey{SessionID: "s", Niche: "love_and_relationships", Factor: "venus_sign"}.String()
	assert.Equal(t, a, b)
}

func TestLevelKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "astro:l1:timing_marriage_love:0a1b2c3d4e5f", Level1Key{IntentBucket: "timing_marriage_love", ChartBucket: "0a1b2c3d4e5f"}.String())
	assert.Equal(t, "astro:l2:deadbeef", Level2Key{PromptHash: "deadbeef"}.String())
}

func TestCanonicalizeIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a := map[string]any{
		"venus_sign": "Libra",
		"houses":     map[string]any{"7": "Aries", "1": "Libra"},
		"dashas":     []any{map[string]any{"lord": "Venus", "end": "2030"}},
	}
	b := map[string]any{
		"dashas":     []any{map[string]any{"end": "2030", "lord": "Venus"}},
		"houses":     map[string]any{"1": "Libra", "7": "Aries"},
		"venus_sign": "Libra",
	}

	assert.Equal(t, string(CanonicalJSON(a)), string(CanonicalJSON(b)))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, `{"dashas":[{"end":"2030","lord":"Venus"}],"houses":{"1":"Libra","7":"Aries"},"venus_sign":"Libra"}`, string(CanonicalJSON(a)))
}

func TestCanonicalizeSequencesKeepOrder(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, Fingerprint([]string{"a", "b"}), Fingerprint([]string{"b", "a"}))
}

func TestCanonicalizeCoercesUnsupportedTypes(t *testing.T) {
	t.Parallel()

	type chartRow struct {
		Planet string `json:"planet"`
		House  int    `json:"house"`
	}
	ch := make(chan int)

	require.NotPanics(t, func() {
		_ = Fingerprint(map[string]any{"ch": ch, "fn": func() {}})
	})
	assert.IsType(t, "", Canonicalize(ch))

	got := Canonicalize(map[int]chartRow{7: {Planet: "Venus", House: 7}})
	m, ok := got.(map[string]any)
	require.True(t, ok, "maps with non-string keys become string-keyed maps")
	row, ok := m["7"].(map[string]any)
	require.True(t, ok, "structs become JSON objects")
	assert.Equal(t, "Venus", row["planet"])

	assert.Equal(t, "NaN", Canonicalize(math.NaN()))
	assert.Nil(t, Canonicalize((*chartRow)(nil)))
}

func TestPromptHashIsSHA1Hex(t *testing.T) {
	t.Parallel()

	h := PromptHash(map[string]any{"question": "When will I marry?", "niche": "Love & Relationships"})
	assert.Len(t, h, 40)
	assert.Equal(t, h, PromptHash(map[string]any{"niche": "Love & Relationships", "question": "When will I marry?"}))
	// SHA-1 of the compact encoding of {}
	assert.Equal(t, "bf21a9e8fbc5a3846fb05b4fa0859e0917b2202f", PromptHash(map[string]any{}))
}
