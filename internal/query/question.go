package query

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	maxQueryRunes   = 140
	maxSnippetRunes = 64
	timingQuestion  = 60
)

// QuestionInput drives ForQuestion.
type QuestionInput struct {
	Question string
	// NicheKey is the short niche key ("love", "career", ...).
	NicheKey string
	Intent   string
	Chart    map[string]any
	// PriorityKeys are the niche's chart keys, most important first.
	PriorityKeys []string
	// TimingFactors are used when Timing is set.
	TimingFactors []string
	Timing        bool
	Max           int
}

// ForQuestion builds exactly Max queries: the question itself, one query per
// populated priority chart key, timing queries for timing questions, then
// generic fillers.
func ForQuestion(in QuestionInput) []string {
	if in.Max <= 0 {
		return nil
	}
	qs := make([]string, 0, in.Max)
	seen := make(map[string]struct{}, in.Max)
	add := func(q string) {
		q = truncateRunes(q, maxQueryRunes)
		qs = append(qs, q)
		seen[q] = struct{}{}
	}

	if base := strings.TrimSpace(in.Question); base != "" {
		add(base)
	}

	for _, key := range in.PriorityKeys {
		if len(qs) >= in.Max {
			break
		}
		v, ok := in.Chart[key]
		if !ok || !Present(v) {
			continue
		}
		add(fmt.Sprintf("%s %s %s insight", Friendly(key), Truncate(v, maxSnippetRunes), in.Intent))
	}

	if len(qs) < in.Max && (in.Intent == "timing" || in.Timing) {
		head := truncateRunes(in.Question, timingQuestion)
		for _, f := range in.TimingFactors {
			if len(qs) >= in.Max {
				break
			}
			q := fmt.Sprintf("%s timing for %s", Friendly(f), head)
			if _, dup := seen[truncateRunes(q, maxQueryRunes)]; dup {
				continue
			}
			add(q)
		}
	}

	for len(qs) < in.Max {
		fallback := fmt.Sprintf("%s %s classical interpretation", in.Intent, in.NicheKey)
		if _, dup := seen[fallback]; dup {
			fallback = fmt.Sprintf("%s vedic astrology %d", in.NicheKey, len(qs))
		}
		add(fallback)
	}
	return qs
}

// Friendly turns a factor key into a label: "7th_lord" -> "7th lord",
// "venus_sign" -> "Venus sign".
func Friendly(key string) string {
	r := []rune(strings.ToLower(clean(key)))
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Truncate renders a chart value and shortens it to limit runes with a
// trailing "...".
func Truncate(v any, limit int) string {
	text := strings.TrimSpace(fmt.Sprint(v))
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Present reports whether a chart value carries information: non-empty
// strings, collections and non-zero numbers.
func Present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}
