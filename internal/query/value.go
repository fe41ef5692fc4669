package query

import (
	"fmt"
	"strings"
)

// Chart labels a factor's source chart. Timing marks dasha pseudo-factors.
const (
	ChartD1     = "D1"
	ChartD9     = "D9"
	ChartD10    = "D10"
	ChartTiming = "Timing"
)

// TimingPlaceholder is the value of timing pseudo-factors.
const TimingPlaceholder = "timing_query"

// CurrentDashas is the value of the synthesized current_dashas factor.
type CurrentDashas struct {
	Mahadasha  string `json:"mahadasha"`
	Antardasha string `json:"antardasha"`
}

// Factor is a chart factor with its value, as seen by the preloader.
type Factor struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Chart string `json:"chart"`
}

const maxValueQueries = 3

// ForValue builds up to three queries that mention the factor's value.
func ForValue(f Factor) []string {
	name := strings.ToLower(f.Name)
	v := fmt.Sprint(f.Value)
	var qs []string

	switch {
	case f.Name == "current_dashas":
		if cd, ok := f.Value.(CurrentDashas); ok && cd.Mahadasha != "" && cd.Antardasha != "" {
			qs = []string{
				fmt.Sprintf("%s-%s dasha period effects timing events", cd.Mahadasha, cd.Antardasha),
				fmt.Sprintf("%s mahadasha %s antardasha marriage timing", cd.Mahadasha, cd.Antardasha),
			}
		}
	case f.Chart == ChartTiming || strings.Contains(name, "dasha") || strings.Contains(name, "timing"):
		c := clean(f.Name)
		qs = []string{
			c + " marriage timing prediction when",
			c + " spouse meeting period relationship",
			c + " effects on partnership timing",
		}
	case strings.Contains(name, "venus"):
		qs = []string{
			"Venus in " + v + " significations traits spouse",
			v + " Venus relationship marriage partner",
		}
	case strings.Contains(name, "7th"):
		qs = []string{
			"7th house " + v + " marriage spouse characteristics",
			v + " in 7th partnership relationships",
		}
	case strings.Contains(name, "darakaraka"):
		qs = []string{
			"Darakaraka " + v + " spouse appearance nature",
			v + " as darakaraka marriage timing",
		}
	case strings.Contains(name, "10th"):
		qs = []string{
			"10th house " + v + " career profession",
			v + " in 10th work occupation",
		}
	default:
		qs = []string{clean(f.Name) + " " + v + " significations"}
	}

	if len(qs) > maxValueQueries {
		qs = qs[:maxValueQueries]
	}
	return qs
}
