package classify

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question   string
		complexity Complexity
		intent     string
		confidence float64
	}{
		{"", Simple, "general", 0.5},
		{"   ", Simple, "general", 0.5},
		{"Compare my D9 with the D1 chart", Complex, "multi_chart", 0.9},
		{"Synthesize all methods across charts", Complex, "multi_chart", 0.9},
		{"My Venus shows delay but the dasha says otherwise", Complex, "contradiction", 0.9},
		{"Give me precise timing of my wedding", Complex, "deep_timing", 0.9},
		{"How will my spouse look?", Simple, "appearance", 0.85},
		{"What kind of partner will I get?", Simple, "personality", 0.85},
		{"When will I marry?", Simple, "basic_timing", 0.85},
		{"Should I change my job?", Simple, "career", 0.85},
		{"Is this a favorable period for me?", Simple, "general", 0.85},
		{"What does my Saturn transit bring this year?", Moderate, "timing", 0.7},
		{"Tell me about my Venus", Moderate, "general", 0.7},
	}
	for _, tt := range tests {
		got := Classify(tt.question)
		if got.Complexity != tt.complexity || got.Intent != tt.intent || got.Confidence != tt.confidence {
			t.Errorf("Classify(%q) = %s/%s/%.2f, want %s/%s/%.2f",
				tt.question, got.Complexity, got.Intent, got.Confidence, tt.complexity, tt.intent, tt.confidence)
		}
		if got.Reasoning == "" {
			t.Errorf("Classify(%q) has no reasoning", tt.question)
		}
	}
}

func TestProfileFor(t *testing.T) {
	t.Parallel()

	if p := ProfileFor(Simple); p != (Profile{ChartLimit: 50, QueryCount: 2, PassageLimit: 5}) {
		t.Fatalf("unexpected SIMPLE profile %+v", p)
	}
	if p := ProfileFor(Complex); p != (Profile{ChartLimit: 150, QueryCount: 6, PassageLimit: 30}) {
		t.Fatalf("unexpected COMPLEX profile %+v", p)
	}
	if p := ProfileFor("UNKNOWN"); p != ProfileFor(Moderate) {
		t.Fatalf("unknown complexity should use MODERATE, got %+v", p)
	}
}
