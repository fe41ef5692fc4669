package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	chartBucketLen      = 12
	chartBucketMaxParts = 5
)

var (
	timingWords      = []string{"when", "timing", "date", "period"}
	appearanceWords  = []string{"look", "appear", "beautiful", "handsome"}
	personalityWords = []string{"personality", "nature", "like", "character"}
	locationWords    = []string{"where", "meet"}
)

// IntentBucket groups questions by detected intent, suffixed with the niche
// (lowercased, spaces to underscores), e.g. "timing_marriage_love".
func IntentBucket(question, niche string) string {
	q := strings.ToLower(question)
	suffix := strings.ReplaceAll(strings.ToLower(niche), " ", "_")

	switch {
	case containsAny(q, timingWords):
		switch {
		case strings.Contains(q, "marriage") || strings.Contains(q, "spouse"):
			return "timing_marriage_" + suffix
		case strings.Contains(q, "job") || strings.Contains(q, "career"):
			return "timing_career_" + suffix
		default:
			return "timing_general_" + suffix
		}
	case containsAny(q, appearanceWords):
		return "appearance_spouse_" + suffix
	case containsAny(q, personalityWords):
		return "personality_spouse_" + suffix
	case containsAny(q, locationWords):
		return "location_meeting_" + suffix
	default:
		return "general_" + suffix
	}
}

// ChartBucket hashes the salient chart factors (7th lord, Venus sign, Saturn
// sign, current mahadasha) into a 12-character bucket. Charts that agree on
// those factors share a bucket even when everything else differs.
//
// A non-empty generation is mixed into the hash so buckets written by an
// older retrieval corpus or pipeline are not served after a bump.
func ChartBucket(chart map[string]any, generation string) string {
	salient := []struct{ label, key string }{
		{"7lord", "7th_lord"},
		{"venus", "venus_sign"},
		{"saturn", "saturn_sign"},
		{"dasha", "current_mahadasha"},
	}
	parts := make([]string, 0, chartBucketMaxParts)
	for _, s := range salient {
		if v, ok := chart[s.key]; ok && truthy(v) {
			parts = append(parts, fmt.Sprintf("%s_%v", s.label, v))
		}
	}
	if len(parts) > chartBucketMaxParts {
		parts = parts[:chartBucketMaxParts]
	}

	input := strings.Join(parts, "_")
	if generation != "" {
		input = "gen" + generation + "|" + input
	}
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:chartBucketLen]
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}
