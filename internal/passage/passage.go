// Package passage holds the retrieved classical-text unit shared by the
// retrieval, rerank and orchestration layers.
package passage

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// DefaultSource labels passages whose collaborator gave no source.
const DefaultSource = "Classical Text"

// Passage is one retrieved snippet. Score fields are optional and kept as
// the collaborator sent them; EffectiveDistance normalizes them.
type Passage struct {
	ID     string `json:"id,omitempty"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Query  string `json:"query,omitempty"`
	Factor string `json:"factor,omitempty"`

	Distance        *float64 `json:"distance,omitempty"`
	RelevanceScore  *float64 `json:"relevance_score,omitempty"`
	Relevance       *float64 `json:"relevance,omitempty"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`

	Tags []string `json:"tags,omitempty"`

	// Set by the reranker.
	RerankScore  *float64 `json:"rerank_score,omitempty"`
	OriginalRank *int     `json:"original_rank,omitempty"`
}

// Float returns a pointer to f, for the optional score fields.
func Float(f float64) *float64 { return &f }

// defaultDistance is used when a passage carries no score at all.
const defaultDistance = 0.5

// EffectiveDistance reads distance directly, else inverts the first of
// relevance_score, relevance, similarity_score, else 0.5.
func (p Passage) EffectiveDistance() float64 {
	switch {
	case p.Distance != nil:
		return *p.Distance
	case p.RelevanceScore != nil:
		return 1 - *p.RelevanceScore
	case p.Relevance != nil:
		return 1 - *p.Relevance
	case p.SimilarityScore != nil:
		return 1 - *p.SimilarityScore
	}
	return defaultDistance
}

// Score is the "higher is better" relevance: 1 - EffectiveDistance.
func (p Passage) Score() float64 {
	return 1 - p.EffectiveDistance()
}

// StableID returns the collaborator ID, or one derived from the text.
func (p Passage) StableID() string {
	if p.ID != "" {
		return p.ID
	}
	sum := sha1.Sum([]byte(p.Text))
	return "p_" + hex.EncodeToString(sum[:])[:12]
}

const fingerprintRunes = 200

// Fingerprint is the dedupe key: the first 200 characters, trimmed and
// lowercased.
func Fingerprint(text string) string {
	r := []rune(text)
	if len(r) > fingerprintRunes {
		r = r[:fingerprintRunes]
	}
	return strings.ToLower(strings.TrimSpace(string(r)))
}

// List is the single normalized shape the core works with.
type List []Passage

// IDs returns the StableID of every passage, in order.
func (l List) IDs() []string {
	ids := make([]string, len(l))
	for i, p := range l {
		ids[i] = p.StableID()
	}
	return ids
}

// Clone copies the list so a reranker can annotate it freely.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Dedupe merges lists in order, keeping the first passage seen for each
// text fingerprint. Passages with no text are dropped.
func Dedupe(lists ...List) List {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	seen := make(map[string]struct{}, total)
	out := make(List, 0, total)
	for _, l := range lists {
		for _, p := range l {
			fp := Fingerprint(p.Text)
			if fp == "" {
				continue
			}
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Record is what the synthesis collaborator receives per passage.
type Record struct {
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	Query     string  `json:"query"`
	Relevance float64 `json:"relevance"`
}

// Records converts an ordered list into synthesis records, preserving order.
// A reranked passage reports its fused score as relevance.
func (l List) Records() []Record {
	out := make([]Record, len(l))
	for i, p := range l {
		rel := p.Score()
		if p.RerankScore != nil {
			rel = *p.RerankScore
		}
		src := p.Source
		if src == "" {
			src = DefaultSource
		}
		out[i] = Record{Text: p.Text, Source: src, Query: p.Query, Relevance: rel}
	}
	return out
}
