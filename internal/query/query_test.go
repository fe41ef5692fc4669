package query

import (
	"strings"
	"testing"
)

func TestForFactor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		factor string
		want   string
	}{
		{"venus_combustion", "venus combustion vedic astrology interpretation"},
		{"current_mahadasha", "current mahadasha period timing predictions"},
		{"venus_mahadasha_timing", "venus mahadasha timing period timing predictions"},
		{"7th_house_sign", "7th house sign placement significance"},
		{"graha_malika_yoga", "graha malika yoga combination effects"},
		{"saturn_transit_venus", "saturn transit venus current influence"},
		{"jupiter_transit_7th_house", "jupiter transit 7th house placement significance"},
		{"Venus_Dasha", "Venus Dasha period timing predictions"},
	}
	for _, tt := range tests {
		if got := ForFactor(tt.factor); got != tt.want {
			t.Errorf("ForFactor(%q) = %q, want %q", tt.factor, got, tt.want)
		}
	}
}

func TestForFactorDeterministic(t *testing.T) {
	t.Parallel()

	first := ForFactor("venus_combustion")
	for i := 0; i < 10; i++ {
		if got := ForFactor("venus_combustion"); got != first {
			t.Fatalf("run %d: got %q, want %q", i, got, first)
		}
	}
	if !strings.Contains(first, "venus combustion") || !strings.HasSuffix(first, "vedic astrology interpretation") {
		t.Fatalf("unexpected generic query %q", first)
	}
}

func TestForFactors(t *testing.T) {
	t.Parallel()

	got := ForFactors([]string{"venus_mahadasha_timing", "jupiter_transit_moon", "venus_sign", "7th_lord", "10th_lord", "moon_sign", "d9_navamsa_strength_overall_extra"})
	want := []string{
		"venus mahadasha timing marriage timing prediction",
		"venus mahadasha timing spouse meeting period",
		"venus mahadasha timing relationship timing effects",
		"jupiter transit moon marriage timing effects",
		"jupiter transit moon relationship activation",
		"venus sign spouse characteristics traits",
		"venus sign marriage relationship",
		"7th lord partnership marriage",
		"7th lord spouse nature",
		"10th lord career profession",
		"10th lord work occupation",
		"moon sign significations meaning",
		"moon sign astrological effects",
		"d9 navamsa strength overall extra significations meaning",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d queries, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("query %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question string
		want     string
	}{
		{"When will I marry?", "venus 7th house timing predictions for When will I marry?"},
		{"How will my spouse look?", "venus 7th house physical appearance traits characteristics How will my spouse look?"},
		{"How strong is it?", "venus 7th house detailed analysis How strong is it?"},
		{"Where will we meet?", "venus 7th house location meeting place Where will we meet?"},
		{"What does it mean?", "venus 7th house specific details What does it mean?"},
		{"Why the delay?", "venus 7th house reasons causes explanation Why the delay?"},
		{"Tell me more", "venus 7th house comprehensive analysis Tell me more"},
	}
	for _, tt := range tests {
		if got := Deep("venus_7th_house", tt.question); got != tt.want {
			t.Errorf("Deep(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}

func TestForValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		factor Factor
		want   []string
	}{
		{
			name:   "timing pseudo factor",
			factor: Factor{Name: "venus_return_timing", Value: TimingPlaceholder, Chart: ChartTiming},
			want: []string{
				"venus return timing marriage timing prediction when",
				"venus return timing spouse meeting period relationship",
				"venus return timing effects on partnership timing",
			},
		},
		{
			name:   "venus",
			factor: Factor{Name: "venus_sign", Value: "Libra", Chart: ChartD1},
			want:   []string{"Venus in Libra significations traits spouse", "Libra Venus relationship marriage partner"},
		},
		{
			name:   "seventh house",
			factor: Factor{Name: "7th_lord", Value: "Mars", Chart: ChartD1},
			want:   []string{"7th house Mars marriage spouse characteristics", "Mars in 7th partnership relationships"},
		},
		{
			name:   "darakaraka",
			factor: Factor{Name: "darakaraka_planet", Value: "Moon", Chart: ChartD1},
			want:   []string{"Darakaraka Moon spouse appearance nature", "Moon as darakaraka marriage timing"},
		},
		{
			name:   "current dashas",
			factor: Factor{Name: "current_dashas", Value: CurrentDashas{Mahadasha: "Venus", Antardasha: "Sun"}, Chart: ChartTiming},
			want: []string{
				"Venus-Sun dasha period effects timing events",
				"Venus mahadasha Sun antardasha marriage timing",
			},
		},
		{
			name:   "tenth house",
			factor: Factor{Name: "10th_lord", Value: "Saturn", Chart: ChartD1},
			want:   []string{"10th house Saturn career profession", "Saturn in 10th work occupation"},
		},
		{
			name:   "generic",
			factor: Factor{Name: "moon_sign", Value: "Cancer", Chart: ChartD1},
			want:   []string{"moon sign Cancer significations"},
		},
	}
	for _, tt := range tests {
		got := ForValue(tt.factor)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestForValueIncompleteCurrentDashas(t *testing.T) {
	t.Parallel()

	if got := ForValue(Factor{Name: "current_dashas", Value: CurrentDashas{Mahadasha: "Venus"}, Chart: ChartD1}); len(got) != 0 {
		t.Fatalf("incomplete dashas should yield no queries, got %q", got)
	}
}
