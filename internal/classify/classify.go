// Package classify routes questions to SIMPLE, MODERATE or COMPLEX tracks
// with regex heuristics, so no model call sits on the hot path.
package classify

import (
	"regexp"
	"strings"
)

type Complexity string

const (
	Simple   Complexity = "SIMPLE"
	Moderate Complexity = "MODERATE"
	Complex  Complexity = "COMPLEX"
)

// Result is the outcome of Classify.
type Result struct {
	Complexity Complexity `json:"complexity"`
	Intent     string     `json:"intent"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

// Profile bounds how much chart context, how many queries and how many
// passages a track uses.
type Profile struct {
	ChartLimit   int `json:"chart_limit"`
	QueryCount   int `json:"query_count"`
	PassageLimit int `json:"passage_limit"`
}

var profiles = map[Complexity]Profile{
	Simple:   {ChartLimit: 50, QueryCount: 2, PassageLimit: 5},
	Moderate: {ChartLimit: 80, QueryCount: 3, PassageLimit: 10},
	Complex:  {ChartLimit: 150, QueryCount: 6, PassageLimit: 30},
}

// ProfileFor returns the track profile; unknown values get MODERATE.
func ProfileFor(c Complexity) Profile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return profiles[Moderate]
}

type rule struct {
	intent   string
	patterns []*regexp.Regexp
}

func compile(intent string, exprs ...string) rule {
	r := rule{intent: intent}
	for _, e := range exprs {
		r.patterns = append(r.patterns, regexp.MustCompile(e))
	}
	return r
}

func (r rule) match(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Evaluated in order; complex rules pre-empt simple ones.
var (
	complexRules = []rule{
		compile("multi_chart",
			`\b(d1|d9|d10|d7|divisional|navamsa|dasamsa|saptamsa)\b.*\b(and|with|together|combine|compare|vs)\b`,
			`\b(compare|combine|cross[- ]?check|synthesize|synthesis)\b.*\b(charts|methods|sources)\b`),
		compile("contradiction",
			`\b(contradict|conflict|clash|opposite|different|difference)\b`,
			`\b(but|however|although|yet)\b.*\b(says|shows|indicates)\b`),
		compile("deep_timing",
			`\b(detailed|comprehensive|precise|exact|pinpoint|specific)\b.*\b(timing|dates|months|years)\b`,
			`\buse\b.*\b(three|four|five|multiple)\b.*\b(methods|texts|systems)\b`),
	}

	simpleRules = []rule{
		compile("appearance",
			`\b(look|looks|appearance|face|physical|physique|build|height|complexion)\b`,
			`\b(spouse|partner|wife|husband)\b.*\b(look|appearance)\b`),
		compile("personality",
			`\b(personality|nature|character|behaviou?r|temperament|traits)\b`,
			`\bwhat\b.*\bkind of\b.*\b(spouse|partner|person)\b`),
		compile("basic_timing",
			`\bwhen\b.*\b(marry|marriage|meet|union|wedding)\b`,
			`\b(soon|timing|timeframe|time frame|period)\b.*\b(marriage|meet)\b`),
		compile("career",
			`\b(career|job|profession|work|business)\b`,
			`\bwhat\b.*\b(job|career|profession|work)\b`),
		compile("general",
			`\b(strength|weakness|quality|trait|indicator)\b`,
			`\b(good|bad|favourable|favorable|unfavourable|unfavorable)\b.*\b(time|period|phase|dasha)\b`),
	}

	timingHints = compile("timing", `\b(when|timing|period|date|month|year|dasha|transit)\b`)
)

// Classify labels a question.
func Classify(question string) Result {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return Result{Complexity: Simple, Intent: "general", Confidence: 0.5, Reasoning: "Empty question defaults to SIMPLE"}
	}
	for _, r := range complexRules {
		if r.match(q) {
			return Result{Complexity: Complex, Intent: r.intent, Confidence: 0.9, Reasoning: "Matched complex pattern: " + r.intent}
		}
	}
	for _, r := range simpleRules {
		if r.match(q) {
			return Result{Complexity: Simple, Intent: r.intent, Confidence: 0.85, Reasoning: "Matched simple pattern: " + r.intent}
		}
	}
	intent := "general"
	if timingHints.match(q) {
		intent = "timing"
	}
	return Result{Complexity: Moderate, Intent: intent, Confidence: 0.7, Reasoning: "Defaulted to MODERATE based on keywords"}
}
