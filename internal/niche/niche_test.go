package niche

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	c := Default()
	tests := map[string]string{
		"Love & Relationships":   Love,
		"love_and_relationships": Love,
		"career":                 Career,
		"Career & Finance":       Career,
		"finance tips":           Wealth,
		"Health":                 Health,
		"spirituality":           Spiritual,
		"something else":         Love,
		"":                       Love,
	}
	for in, want := range tests {
		assert.Equal(t, want, c.Resolve(in).Name, "Resolve(%q)", in)
	}
}

func TestFactorsOrder(t *testing.T) {
	t.Parallel()

	n, ok := Default().Lookup(Career)
	require.True(t, ok)

	f := n.Factors()
	require.Len(t, f, len(n.D1Factors)+len(n.D9Factors)+len(n.D10Factors))
	assert.Equal(t, "10th_house_sign", f[0])
	assert.Equal(t, "d9_10th_house", f[len(n.D1Factors)])
	assert.Equal(t, "d10_jupiter", f[len(f)-1])

	love := Default().Factors(Love)
	assert.Equal(t, "best_marriage_periods_ranking", love[len(love)-1], "timing factors come last")
	assert.Nil(t, Default().Factors("Astrocartography"))
}

func TestCacheTTL(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.Equal(t, 120*time.Minute, c.CacheTTL(Love))
	assert.Equal(t, 120*time.Minute, c.CacheTTL("career_and_finance"))
	assert.Equal(t, 90*time.Minute, c.CacheTTL(Health))
	assert.Equal(t, 90*time.Minute, c.CacheTTL(Spiritual))
	assert.Equal(t, 60*time.Minute, c.CacheTTL("Unknown Niche"))
}

func TestTimingFactorsDoNotMutateCatalog(t *testing.T) {
	t.Parallel()

	c := Default()
	n, _ := c.Lookup(Love)
	before := len(n.Dasha.TimingFactors)

	chart := map[string]any{"7th_lord": "Mars", "darakaraka_planet": "Venus"}
	got := c.TimingFactors(Love, chart)
	require.Len(t, got, before+4)
	assert.Equal(t, []string{
		"mars_mahadasha_marriage", "mars_antardasha_timing",
		"venus_dasha_spouse", "venus_period_relationship",
	}, got[before:])

	_ = c.TimingFactors(Love, chart)
	assert.Len(t, n.Dasha.TimingFactors, before, "repeated calls must not grow the catalog")

	assert.Empty(t, c.TimingFactors(Career, chart), "career has no timing factors")
}

func TestAllFactorsWithTiming(t *testing.T) {
	t.Parallel()

	c := Default()
	chart := map[string]any{"7th_lord": "Mars"}

	plain := c.AllFactorsWithTiming(Love, "Describe my spouse", chart)
	assert.Equal(t, c.Factors(Love), plain)

	timing := c.AllFactorsWithTiming(Love, "When will I marry?", chart)
	assert.Equal(t, len(plain)+2, len(timing), "base timing factors are already present; only chart extras are new")
	assert.Equal(t, "mars_antardasha_timing", timing[len(timing)-1])

	seen := map[string]bool{}
	for _, f := range timing {
		require.False(t, seen[f], "duplicate factor %q", f)
		seen[f] = true
	}
}

func TestDashaRange(t *testing.T) {
	t.Parallel()

	c := Default()
	tests := []struct {
		question string
		niche    string
		rule     string
		rng      string
	}{
		{"When will I marry?", Love, "timing_keywords", "±5 years"},
		{"What happened in my past relationship?", Love, "past_keywords", "±20 years (past focus)"},
		{"Is my career going to improve?", Career, "future_keywords", "±20 years (future focus)"},
		{"How am I doing currently?", Health, "current_keywords", "±2 years"},
		{"Describe my constitution", Health, "niche_default", "±3 years"},
		{"Describe my constitution", "Unknown", "niche_default", "±5 years"},
	}
	for _, tt := range tests {
		got := c.DashaRange(tt.question, tt.niche)
		assert.Equal(t, tt.rule, got.Rule, tt.question)
		assert.Equal(t, tt.rng, got.Range, tt.question)
	}
}

func TestQuestionKeywords(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTimingQuestion("What does my Venus mahadasha bring?"))
	assert.False(t, IsTimingQuestion("Describe my spouse"))
	assert.True(t, ShouldUseExtendedDasha("Give me a life overview"))
	assert.False(t, ShouldUseExtendedDasha("Is Venus strong?"))
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	t.Parallel()

	_, err := Load([]byte("niches: []"))
	assert.Error(t, err)
	_, err = Load([]byte("niches: ["))
	assert.Error(t, err)
}
