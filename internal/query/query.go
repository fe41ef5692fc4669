// Package query turns chart factors and user questions into retrieval
// queries. Every function is pure and deterministic.
package query

import (
	"fmt"
	"strings"
)

func clean(factor string) string {
	return strings.ReplaceAll(factor, "_", " ")
}

// ForFactor returns the single retrieval query for a factor, chosen by the
// first matching substring rule on its name.
func ForFactor(factor string) string {
	f := strings.ToLower(factor)
	c := clean(factor)
	switch {
	case strings.Contains(f, "dasha") || strings.Contains(f, "timing"):
		return c + " period timing predictions"
	case strings.Contains(f, "house"):
		return c + " placement significance"
	case strings.Contains(f, "yoga"):
		return c + " combination effects"
	case strings.Contains(f, "transit"):
		return c + " current influence"
	default:
		return c + " vedic astrology interpretation"
	}
}

// ForFactors returns two or three queries per factor, used when a whole
// batch is loaded at once.
func ForFactors(factors []string) []string {
	out := make([]string, 0, 3*len(factors))
	for _, factor := range factors {
		f := strings.ToLower(factor)
		c := clean(factor)
		switch {
		case strings.Contains(f, "dasha") || strings.Contains(f, "timing"):
			out = append(out,
				c+" marriage timing prediction",
				c+" spouse meeting period",
				c+" relationship timing effects")
		case strings.Contains(f, "transit"):
			out = append(out, c+" marriage timing effects", c+" relationship activation")
		case strings.Contains(f, "venus"):
			out = append(out, c+" spouse characteristics traits", c+" marriage relationship")
		case strings.Contains(f, "7th"):
			out = append(out, c+" partnership marriage", c+" spouse nature")
		case strings.Contains(f, "10th"):
			out = append(out, c+" career profession", c+" work occupation")
		default:
			out = append(out, c+" significations meaning")
			if len(strings.Fields(c)) <= 3 {
				out = append(out, c+" astrological effects")
			}
		}
	}
	return out
}

// Deep blends a factor with the literal question for the deep-dive stage.
func Deep(factor, question string) string {
	c := clean(factor)
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "when"):
		return fmt.Sprintf("%s timing predictions for %s", c, question)
	case strings.Contains(q, "how") && (strings.Contains(q, "look") || strings.Contains(q, "appear")):
		return fmt.Sprintf("%s physical appearance traits characteristics %s", c, question)
	case strings.Contains(q, "how"):
		return fmt.Sprintf("%s detailed analysis %s", c, question)
	case strings.Contains(q, "where"):
		return fmt.Sprintf("%s location meeting place %s", c, question)
	case strings.Contains(q, "what"):
		return fmt.Sprintf("%s specific details %s", c, question)
	case strings.Contains(q, "why"):
		return fmt.Sprintf("%s reasons causes explanation %s", c, question)
	default:
		return fmt.Sprintf("%s comprehensive analysis %s", c, question)
	}
}
