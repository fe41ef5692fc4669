package query

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForQuestion(t *testing.T) {
	t.Parallel()

	chart := map[string]any{
		"7th_lord":   "Mars",
		"venus_sign": "Libra",
		"moon_sign":  "",
	}
	got := ForQuestion(QuestionInput{
		Question:     "  Describe my future spouse  ",
		NicheKey:     "love",
		Intent:       "general",
		Chart:        chart,
		PriorityKeys: []string{"moon_sign", "7th_lord", "venus_sign"},
		Max:          5,
	})
	assert.Equal(t, []string{
		"Describe my future spouse",
		"7th lord Mars general insight",
		"Venus sign Libra general insight",
		"general love classical interpretation",
		"love vedic astrology 4",
	}, got)
}

func TestForQuestionTiming(t *testing.T) {
	t.Parallel()

	got := ForQuestion(QuestionInput{
		Question:      "When will I marry?",
		NicheKey:      "love",
		Intent:        "timing",
		TimingFactors: []string{"venus_mahadasha_timing", "jupiter_transit_7th_house"},
		Max:           3,
	})
	assert.Equal(t, []string{
		"When will I marry?",
		"Venus mahadasha timing timing for When will I marry?",
		"Jupiter transit 7th house timing for When will I marry?",
	}, got)
}

func TestForQuestionTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 300)
	got := ForQuestion(QuestionInput{
		Question:     long,
		NicheKey:     "career",
		Intent:       "general",
		Chart:        map[string]any{"10th_lord": strings.Repeat("x", 100)},
		PriorityKeys: []string{"10th_lord"},
		Max:          2,
	})
	require.Len(t, got, 2)
	assert.Equal(t, 140, utf8.RuneCountInString(got[0]))
	assert.Equal(t, "10th lord "+strings.Repeat("x", 61)+"... general insight", got[1])
}

func TestForQuestionZeroBudget(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ForQuestion(QuestionInput{Question: "q", Max: 0}))
}

func TestFriendlyAndTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Venus sign", Friendly("venus_sign"))
	assert.Equal(t, "7th lord", Friendly("7th_LORD"))
	assert.Equal(t, "", Friendly(""))
	assert.Equal(t, "short", Truncate("  short ", 64))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
}
