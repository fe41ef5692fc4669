package passage

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Shape tags the collaborator payload variant Decode recognized.
type Shape string

const (
	ShapeList         Shape = "list"          // [passage, ...]
	ShapeEnvelope     Shape = "envelope"      // {"passages": [...]}
	ShapeEnvelopeList Shape = "envelope_list" // [{"passages": [...]}, ...]
	ShapeMalformed    Shape = "malformed"
)

var (
	textFields   = []string{"text", "passage", "content"}
	sourceFields = []string{"source", "topic", "chapter"}
	scoreFields  = []struct {
		name string
		set  func(*Passage, float64)
	}{
		{"distance", func(p *Passage, f float64) { p.Distance = Float(f) }},
		{"relevance_score", func(p *Passage, f float64) { p.RelevanceScore = Float(f) }},
		{"relevance", func(p *Passage, f float64) { p.Relevance = Float(f) }},
		{"similarity_score", func(p *Passage, f float64) { p.SimilarityScore = Float(f) }},
	}
)

// Decode normalizes a retrieval collaborator response into a List. It
// accepts a bare list, a {"passages": [...]} envelope, or a list of such
// envelopes. Anything else is ShapeMalformed with no passages; Decode never
// fails. queries fills Query from a passage's query_index when the
// passage does not name its query.
func Decode(raw []byte, queries []string) (List, Shape) {
	if !gjson.ValidBytes(raw) {
		return nil, ShapeMalformed
	}
	root := gjson.ParseBytes(raw)

	switch {
	case root.IsObject():
		env := root.Get("passages")
		if !env.IsArray() {
			return nil, ShapeMalformed
		}
		return decodeItems(env.Array(), queries, 0), ShapeEnvelope

	case root.IsArray():
		items := root.Array()
		shape := ShapeList
		var out List
		for i, item := range items {
			if env := item.Get("passages"); item.IsObject() && env.IsArray() {
				shape = ShapeEnvelopeList
				idx := i
				if qi := item.Get("query_index"); qi.Type == gjson.Number {
					idx = int(qi.Int())
				}
				out = append(out, decodeItems(env.Array(), queries, idx)...)
				continue
			}
			if p, ok := decodeOne(item, queries, 0); ok {
				out = append(out, p)
			}
		}
		return out, shape
	}
	return nil, ShapeMalformed
}

func decodeItems(items []gjson.Result, queries []string, queryIndex int) List {
	out := make(List, 0, len(items))
	for _, item := range items {
		if p, ok := decodeOne(item, queries, queryIndex); ok {
			out = append(out, p)
		}
	}
	return out
}

func decodeOne(item gjson.Result, queries []string, queryIndex int) (Passage, bool) {
	if item.Type == gjson.String {
		text := strings.TrimSpace(item.String())
		return Passage{Text: text, Query: queryAt(queries, queryIndex)}, text != ""
	}
	if !item.IsObject() {
		return Passage{}, false
	}

	p := Passage{
		Text:   strings.TrimSpace(firstString(item, textFields)),
		ID:     item.Get("id").String(),
		Source: firstString(item, sourceFields),
		Query:  item.Get("query").String(),
		Factor: item.Get("factor").String(),
	}
	if p.Text == "" {
		return Passage{}, false
	}
	for _, f := range scoreFields {
		if v := item.Get(f.name); v.Type == gjson.Number {
			f.set(&p, v.Float())
		}
	}
	if tags := item.Get("tags"); tags.IsArray() {
		for _, t := range tags.Array() {
			if s := t.String(); s != "" {
				p.Tags = append(p.Tags, s)
			}
		}
	}
	if p.Query == "" {
		idx := queryIndex
		if qi := item.Get("query_index"); qi.Type == gjson.Number {
			idx = int(qi.Int())
		}
		p.Query = queryAt(queries, idx)
	}
	return p, true
}

func firstString(item gjson.Result, fields []string) string {
	for _, f := range fields {
		if v := item.Get(f); v.Exists() && v.Type != gjson.Null {
			if s := v.String(); strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func queryAt(queries []string, idx int) string {
	if len(queries) == 0 {
		return ""
	}
	if idx < 0 || idx >= len(queries) {
		return queries[0]
	}
	return queries[idx]
}
