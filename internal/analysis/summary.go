package analysis

import "fmt"

const (
	// dominantPowerRate is the Power category rate above which its influence is
	// reported as dominant.
	dominantPowerRate = 30.0
	// weakBrotherDoubleRate is the combined Brother+Double rate below which
	// those patterns are reported as weak.
	weakBrotherDoubleRate = 10.0
)

// Summarize renders the executive summary. It never refers to a specific top
// candidate, so it is safe for an empty selection.
func Summarize(candidateCount int, s Scored) string {
	influence := "moderate"
	if s.CategoryHitRates.Power > dominantPowerRate {
		influence = "dominant"
	}
	consistency := "some"
	if s.CategoryHitRates.Brother+s.CategoryHitRates.Double < weakBrotherDoubleRate {
		consistency = "weak"
	}

	remaining := fmt.Sprintf("%d numbers remain", len(s.Top))
	if len(s.Top) == 0 {
		remaining = "no numbers remain"
	}

	return fmt.Sprintf("Current analysis generated %d candidate numbers through rule-based filtering. "+
		"After statistical evaluation and confidence scoring, %s in the high-interest zone. "+
		"Power digit influence appears %s in recent sessions, while Brother and Double patterns show %s consistency. "+
		"Focus on numbers with multiple rule overlaps and stable historical frequency.",
		candidateCount, remaining, influence, consistency)
}
