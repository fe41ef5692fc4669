// Package niche holds the question-domain catalog: which chart factors,
// timing factors and cache TTLs apply to each niche.
package niche

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"astro-rag/internal/cache"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Canonical niche names.
const (
	Love      = "Love & Relationships"
	Career    = "Career & Finance"
	Wealth    = "Wealth & Prosperity"
	Health    = "Health & Wellness"
	Spiritual = "Spiritual & Education"
)

type DashaConfig struct {
	DefaultRange  string   `yaml:"default_range"`
	ExtendedRange string   `yaml:"extended_range"`
	FocusPeriods  []string `yaml:"focus_periods"`
	TimingFactors []string `yaml:"timing_factors"`
}

// Niche is one catalog entry. Treat it as read-only; accessors return copies.
type Niche struct {
	Name             string      `yaml:"name"`
	Keywords         []string    `yaml:"keywords"`
	Description      string      `yaml:"description"`
	Priority         string      `yaml:"priority"`
	CacheTTLMinutes  int         `yaml:"cache_ttl_minutes"`
	DivisionalCharts []string    `yaml:"divisional_charts"`
	D1Factors        []string    `yaml:"d1_factors"`
	D9Factors        []string    `yaml:"d9_factors"`
	D7Factors        []string    `yaml:"d7_factors"`
	D10Factors       []string    `yaml:"d10_factors"`
	Dasha            DashaConfig `yaml:"dasha"`
	PriorityKeys     []string    `yaml:"priority_keys"`
}

// Key is the normalized niche name used in cache keys.
func (n *Niche) Key() string { return cache.NormalizeNiche(n.Name) }

// Factors returns d1, d9, d7, d10 and timing factors, in that order.
func (n *Niche) Factors() []string {
	out := make([]string, 0, len(n.D1Factors)+len(n.D9Factors)+len(n.D7Factors)+len(n.D10Factors)+len(n.Dasha.TimingFactors))
	out = append(out, n.D1Factors...)
	out = append(out, n.D9Factors...)
	out = append(out, n.D7Factors...)
	out = append(out, n.D10Factors...)
	out = append(out, n.Dasha.TimingFactors...)
	return out
}

func (n *Niche) CacheTTL() time.Duration {
	return time.Duration(n.CacheTTLMinutes) * time.Minute
}

// TimingFactors returns the configured timing factors. For Love &
// Relationships, dasha factors of the chart's 7th lord and darakaraka are
// appended.
func (n *Niche) TimingFactors(chart map[string]any) []string {
	out := append([]string(nil), n.Dasha.TimingFactors...)
	if n.Name != Love || len(chart) == 0 {
		return out
	}
	if lord := planet(chart, "7th_lord"); lord != "" {
		out = append(out, lord+"_mahadasha_marriage", lord+"_antardasha_timing")
	}
	if dk := planet(chart, "darakaraka_planet"); dk != "" {
		out = append(out, dk+"_dasha_spouse", dk+"_period_relationship")
	}
	return out
}

func planet(chart map[string]any, key string) string {
	s, _ := chart[key].(string)
	return strings.ToLower(strings.TrimSpace(s))
}

// DashaRule maps question keywords to a dasha extraction range.
type DashaRule struct {
	Name        string   `yaml:"name"`
	Keywords    []string `yaml:"keywords"`
	Range       string   `yaml:"range"`
	Description string   `yaml:"description"`
}

// DashaRange is the result of DashaRange.
type DashaRange struct {
	Range       string `json:"range"`
	Description string `json:"description"`
	Rule        string `json:"rule"`
}

// Catalog is the parsed niche table.
type Catalog struct {
	DefaultTTLMinutes int         `yaml:"default_ttl_minutes"`
	DefaultDashaRange string      `yaml:"default_dasha_range"`
	Niches            []*Niche    `yaml:"niches"`
	DashaRules        []DashaRule `yaml:"dasha_rules"`

	byName map[string]*Niche
}

// Load parses a catalog document.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse niche catalog: %w", err)
	}
	if len(c.Niches) == 0 {
		return nil, fmt.Errorf("niche catalog has no niches")
	}
	if c.DefaultTTLMinutes <= 0 {
		c.DefaultTTLMinutes = 60
	}
	if c.DefaultDashaRange == "" {
		c.DefaultDashaRange = "±5 years"
	}
	c.byName = make(map[string]*Niche, 2*len(c.Niches))
	for _, n := range c.Niches {
		if n.Name == "" {
			return nil, fmt.Errorf("niche catalog entry without a name")
		}
		c.byName[n.Name] = n
		c.byName[n.Key()] = n
	}
	return &c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup finds a niche by exact or normalized name.
func (c *Catalog) Lookup(name string) (*Niche, bool) {
	if n, ok := c.byName[name]; ok {
		return n, true
	}
	n, ok := c.byName[cache.NormalizeNiche(name)]
	return n, ok
}

// Resolve is Lookup with keyword matching and a Love & Relationships
// default, so it always returns a niche.
func (c *Catalog) Resolve(name string) *Niche {
	if n, ok := c.Lookup(name); ok {
		return n
	}
	lowered := strings.ToLower(name)
	for _, n := range c.Niches {
		for _, kw := range n.Keywords {
			if strings.Contains(lowered, kw) {
				return n
			}
		}
	}
	if n, ok := c.byName[Love]; ok {
		return n
	}
	return c.Niches[0]
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.Niches))
	for i, n := range c.Niches {
		out[i] = n.Name
	}
	return out
}

// Factors returns every factor of a niche, or nil when it is unknown.
func (c *Catalog) Factors(name string) []string {
	n, ok := c.Lookup(name)
	if !ok {
		return nil
	}
	return n.Factors()
}

// CacheTTL returns the niche TTL, or the catalog default for unknown niches.
func (c *Catalog) CacheTTL(name string) time.Duration {
	if n, ok := c.Lookup(name); ok && n.CacheTTLMinutes > 0 {
		return n.CacheTTL()
	}
	return time.Duration(c.DefaultTTLMinutes) * time.Minute
}

// TimingFactors returns the timing factors of a niche; nil when unknown.
func (c *Catalog) TimingFactors(name string, chart map[string]any) []string {
	n, ok := c.Lookup(name)
	if !ok {
		return nil
	}
	return n.TimingFactors(chart)
}

// AllFactorsWithTiming returns the niche factors, plus chart-specific timing
// factors for timing questions, deduplicated in first-seen order.
func (c *Catalog) AllFactorsWithTiming(name, question string, chart map[string]any) []string {
	n, ok := c.Lookup(name)
	if !ok {
		return nil
	}
	base := n.Factors()
	if !IsTimingQuestion(question) {
		return base
	}
	return dedupe(append(base, n.TimingFactors(chart)...))
}

// DashaRange picks the dasha window for a question: the first matching
// keyword rule, else the niche default.
func (c *Catalog) DashaRange(question, name string) DashaRange {
	q := strings.ToLower(question)
	for _, r := range c.DashaRules {
		if containsAny(q, r.Keywords) {
			return DashaRange{Range: r.Range, Description: r.Description, Rule: r.Name}
		}
	}
	rng := c.DefaultDashaRange
	if n, ok := c.Lookup(name); ok && n.Dasha.DefaultRange != "" {
		rng = n.Dasha.DefaultRange
	}
	return DashaRange{Range: rng, Description: "Default niche range", Rule: "niche_default"}
}

var (
	timingKeywords = []string{
		"when", "timing", "time", "period", "year", "age",
		"soon", "later", "future", "upcoming", "next",
		"current", "now", "this year", "how long",
		"dasha", "mahadasha", "antardasha", "transit",
	}
	extendedKeywords = []string{
		"life", "lifetime", "entire", "all", "complete", "full",
		"overview", "history", "timeline", "journey",
	}
)

// IsTimingQuestion reports whether the question asks about timing.
func IsTimingQuestion(question string) bool {
	return containsAny(strings.ToLower(question), timingKeywords)
}

// ShouldUseExtendedDasha reports whether the question needs the ±20 year window.
func ShouldUseExtendedDasha(question string) bool {
	return containsAny(strings.ToLower(question), extendedKeywords)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
