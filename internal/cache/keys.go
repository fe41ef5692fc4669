package cache

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Key namespaces. The literal formats are shared with previously persisted caches.
const (
	RAGNamespace       = "astro:rag"
	Level1Namespace    = "astro:l1"
	Level2Namespace    = "astro:l2"
	EmbeddingNamespace = "astro:emb"
)

var nicheReplacer = strings.NewReplacer(" ", "_", "&", "and")

// NormalizeNiche lowercases and maps spaces to underscores and "&" to "and",
// so "Love & Relationships" becomes "love_and_relationships".
func NormalizeNiche(niche string) string {
	return nicheReplacer.Replace(strings.ToLower(niche))
}

// NormalizeFactor lowercases and maps spaces to underscores.
func NormalizeFactor(factor string) string {
	return strings.ReplaceAll(strings.ToLower(factor), " ", "_")
}

// BuildKey derives the per-factor cache key
// "<namespace>:<session>:<niche_normalized>:<factor_normalized>".
func BuildKey(namespace, sessionID, niche, factor string) string {
	return fmt.Sprintf("%s:%s:%s:%s", namespace, sessionID, NormalizeNiche(niche), NormalizeFactor(factor))
}

// FactorKey addresses one factor's passage list for a session and niche.
type FactorKey struct {
	SessionID string
	Niche     string
	Factor    string
}

func (k FactorKey) String() string {
	return BuildKey(RAGNamespace, k.SessionID, k.Niche, k.Factor)
}

// SessionPrefix is the prefix shared by every factor key of a session.
func SessionPrefix(sessionID string) string {
	return RAGNamespace + ":" + sessionID + ":"
}

// Level1Key addresses the intent+chart bucket layer.
type Level1Key struct {
	IntentBucket string
	ChartBucket  string
}

func (k Level1Key) String() string {
	return fmt.Sprintf("%s:%s:%s", Level1Namespace, k.IntentBucket, k.ChartBucket)
}

// Level2Key addresses the exact full-response layer.
type Level2Key struct {
	PromptHash string
}

func (k Level2Key) String() string {
	return Level2Namespace + ":" + k.PromptHash
}

// Canonicalize rewrites v into plain JSON-shaped values: maps keyed by
// strings (encoding sorts them), slices of canonical elements, and primitive
// scalars. Anything else is coerced to its string form. It never fails.
func Canonicalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, json.Number:
		return x
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Canonicalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Canonicalize(e)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case fmt.Stringer:
		if reflect.ValueOf(v).Kind() != reflect.Struct {
			return x.String()
		}
	}
	return canonicalizeReflect(reflect.ValueOf(v))
}

func canonicalizeReflect(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Canonicalize(rv.Elem().Interface())
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Canonicalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Canonicalize(rv.Index(i).Interface())
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return canonicalFloat(rv.Float())
	case reflect.Struct:
		if raw, err := json.Marshal(rv.Interface()); err == nil {
			var decoded any
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&decoded); err == nil {
				return Canonicalize(decoded)
			}
		}
	}
	return fmt.Sprint(rv.Interface())
}

// JSON cannot carry NaN or infinities; their string form keeps hashing total.
func canonicalFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	return f
}

// CanonicalJSON is the compact, key-sorted JSON encoding of Canonicalize(v).
func CanonicalJSON(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Canonicalize(v)); err != nil {
		return []byte(fmt.Sprint(v))
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// Fingerprint is the SHA-1 hex digest of the canonical encoding of v.
// Structurally equal inputs produce equal fingerprints regardless of map order.
func Fingerprint(v any) string {
	sum := sha1.Sum(CanonicalJSON(v))
	return hex.EncodeToString(sum[:])
}

// PromptHash hashes a prompt payload for the Level-2 key.
func PromptHash(payload any) string {
	return Fingerprint(payload)
}
