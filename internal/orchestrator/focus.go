package orchestrator

import (
	"fmt"
	"sort"

	"astro-rag/internal/cache"
	"astro-rag/internal/query"
)

const focusSnippetRunes = 64

var (
	planets    = []string{"sun", "moon", "mars", "mercury", "jupiter", "venus", "saturn", "rahu", "ketu"}
	focusOrder = buildFocusOrder()
)

// buildFocusOrder lists chart keys in presentation order: D1 basics, houses,
// planets, karakas, D9, D10, other vargas, lagnas, dashas, yogas.
func buildFocusOrder() []string {
	var keys []string
	add := func(k ...string) { keys = append(keys, k...) }
	each := func(format string, items ...any) {
		for _, it := range items {
			add(fmt.Sprintf(format, it))
		}
	}
	houses := make([]any, 12)
	for i := range houses {
		houses[i] = ordinal(i + 1)
	}
	ps := make([]any, len(planets))
	for i, p := range planets {
		ps[i] = p
	}

	add("ascendant", "moon_sign", "sun_sign")
	each("%s_house_sign", houses...)
	each("%s_lord", houses...)
	each("%s_lord_placement", houses...)
	each("planets_in_%s", houses...)
	each("%s_sign", ps...)
	each("%s_house", ps...)
	each("%s_nakshatra", ps...)
	each("%s_pada", ps...)
	each("%s_retrograde", "mars", "mercury", "jupiter", "venus", "saturn")
	each("%s_planet", "atmakaraka", "amatyakaraka", "bhratrukaraka", "matrukaraka",
		"putrakaraka", "gnatikaraka", "darakaraka", "pitrkaraka")
	each("%s_sign", "atmakaraka", "amatyakaraka", "darakaraka")
	each("%s_house", "atmakaraka", "amatyakaraka", "darakaraka")
	add("d9_ascendant")
	each("d9_%s_house", houses...)
	each("d9_%s_lord", houses...)
	each("d9_%s", ps...)
	add("d10_ascendant")
	each("d10_%s_house", houses...)
	each("d10_%s", ps[:7]...)
	each("d%d_ascendant", 2, 3, 4, 7, 12, 16, 20, 24, 27, 30, 40, 45, 60)
	add("upapada_lagna", "upapada_lord", "arudha_lagna", "bhava_lagna")
	add("current_mahadasha", "current_mahadasha_lord", "current_mahadasha_start", "current_mahadasha_end",
		"current_antardasha", "current_antardasha_lord", "current_antardasha_start", "current_antardasha_end",
		"current_pratyantara", "next_antardasha", "next_antardasha_start", "next_mahadasha")
	each("%s_yoga", "raj", "dhana", "mahapurusha", "pancha_mahapurusha", "gajakesari",
		"hamsa", "malavya", "ruchaka", "bhadra", "sasa", "neecha_bhanga", "viparita_raja",
		"parivartana", "graha_malika", "kalsarpa", "chandra_mangala", "budhaditya")
	add("parivartana_strength", "yoga_details")

	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	}
	return fmt.Sprintf("%dth", n)
}

// focusBuilder formats chart highlights, memoized per (niche, limit, chart).
type focusBuilder struct {
	lru *cache.LRU[[]string]
}

func newFocusBuilder(capacity int) *focusBuilder {
	return &focusBuilder{lru: cache.NewLRU[[]string](capacity)}
}

// Build returns at most limit "Label: value" lines: the niche's priority
// keys first, then the fixed presentation order, then any remaining keys
// alphabetically. Empty values are skipped.
func (f *focusBuilder) Build(chart map[string]any, nicheKey string, priority []string, limit int) []string {
	if limit <= 0 || len(chart) == 0 {
		return []string{}
	}
	key := cache.Fingerprint(map[string]any{"niche": nicheKey, "limit": limit, "chart": chart})
	if cached, ok := f.lru.Get(key); ok {
		return append([]string(nil), cached...)
	}

	out := make([]string, 0, min(limit, len(chart)))
	used := make(map[string]struct{}, len(chart))
	emit := func(keys []string) {
		for _, k := range keys {
			if len(out) >= limit {
				return
			}
			if _, done := used[k]; done {
				continue
			}
			v, ok := chart[k]
			if !ok || !query.Present(v) {
				continue
			}
			used[k] = struct{}{}
			out = append(out, fmt.Sprintf("%s: %s", query.Friendly(k), query.Truncate(v, focusSnippetRunes)))
		}
	}

	emit(priority)
	emit(focusOrder)
	if len(out) < limit {
		rest := make([]string, 0, len(chart))
		for k := range chart {
			rest = append(rest, k)
		}
		sort.Strings(rest)
		emit(rest)
	}

	if len(out) > 0 {
		f.lru.Set(key, append([]string(nil), out...))
	}
	return out
}
