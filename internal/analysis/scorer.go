package analysis

import (
	"math"
	"sort"

	"github.com/rewired-gh/twodoracle/internal/models"
)

// Momentum is a coarse recency class of a candidate.
type Momentum string

const (
	MomentumRising Momentum = "Rising"
	MomentumStable Momentum = "Stable"
	MomentumLow    Momentum = "Low"
)

const (
	// risingLookback is the number of recent filtering-window draws (about one
	// week of sessions) that qualify a candidate as Rising.
	risingLookback = 28

	hitRateWeight    = 15
	overlapWeight    = 20
	risingBonus      = 15
	stableBonus      = 5
	maxConfidence    = 99
	topCandidateSize = 10
)

// Tier boundaries over the ranked top candidates: [0,3) main, [3,6) strong
// support, [6,10) watch rotation.
const (
	mainTierEnd   = 3
	strongTierEnd = 6
)

// Scored is the statistical scorer output.
type Scored struct {
	CategoryHitRates CategoryHitRates
	// Candidates holds every final candidate in ascending number order.
	Candidates []CandidateStats
	// Top is the ranked selection of at most ten candidates.
	Top       []CandidateStats
	Selection FinalSelection
}

// Confidence is the heuristic composite score of a candidate. The weights are
// fixed for output compatibility.
func Confidence(hitRate float64, overlap int, momentum Momentum) int {
	score := hitRate*hitRateWeight + float64(overlap*overlapWeight)
	switch momentum {
	case MomentumRising:
		score += risingBonus
	case MomentumStable:
		score += stableBonus
	}
	c := int(math.Round(score))
	if c > maxConfidence {
		c = maxConfidence
	}
	if c < 0 {
		c = 0
	}
	return c
}

// HitRate returns 100 × hits / total, or 0 for an empty window.
func HitRate(hits, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// CategoryHitRate counts the evaluation sessions whose number is in set. Each
// session counts at most once.
func CategoryHitRate(set *NumberSet, evaluation []models.TwoD) float64 {
	hits := 0
	for _, n := range evaluation {
		if set.Has(n) {
			hits++
		}
	}
	return HitRate(hits, len(evaluation))
}

// ClassifyMomentum returns Rising when n is among the first 28 filtering draws,
// Stable when it appears anywhere else in the window, Low otherwise.
func ClassifyMomentum(n models.TwoD, filtering []models.TwoD) Momentum {
	for i, x := range filtering {
		if x != n {
			continue
		}
		if i < risingLookback {
			return MomentumRising
		}
		return MomentumStable
	}
	return MomentumLow
}

// Score evaluates the generated candidates against the evaluation window and
// ranks them. Category rates use the pre-exclusion rule sets. Malformed window
// entries are dropped first.
func Score(g *Generation, filtering, evaluation []models.TwoD) Scored {
	filtering = cleanWindow(filtering)
	evaluation = cleanWindow(evaluation)
	var counts [100]int
	for _, n := range evaluation {
		counts[index(n)]++
	}
	total := len(evaluation)

	rates := CategoryHitRates{}
	for _, r := range Rules {
		set := g.ByRule[r]
		rate := CategoryHitRate(&set, evaluation)
		switch r {
		case RulePower:
			rates.Power = rate
		case RuleBrother:
			rates.Brother = rate
		case RuleOneChange:
			rates.OneChange = rate
		case RuleDouble:
			rates.Double = rate
		}
	}

	candidates := make([]CandidateStats, 0, len(g.Final))
	for _, n := range g.Final {
		count := counts[index(n)]
		hitRate := HitRate(count, total)
		origins := g.Origins(n)
		momentum := ClassifyMomentum(n, filtering)
		candidates = append(candidates, CandidateStats{
			Number:      n,
			Count:       count,
			HitRate:     hitRate,
			RuleOverlap: overlapLabel(origins),
			Momentum:    momentum,
			Confidence:  Confidence(hitRate, len(origins), momentum),
		})
	}

	top := rank(candidates)
	return Scored{
		CategoryHitRates: rates,
		Candidates:       candidates,
		Top:              top,
		Selection:        selectTiers(top),
	}
}

// rank sorts by confidence descending and keeps the top ten. Ties keep
// ascending number order.
func rank(candidates []CandidateStats) []CandidateStats {
	ranked := make([]CandidateStats, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	if len(ranked) > topCandidateSize {
		ranked = ranked[:topCandidateSize]
	}
	return ranked
}

func selectTiers(top []CandidateStats) FinalSelection {
	return FinalSelection{
		Main:          numbersIn(top, 0, mainTierEnd),
		StrongSupport: numbersIn(top, mainTierEnd, strongTierEnd),
		WatchRotation: numbersIn(top, strongTierEnd, topCandidateSize),
	}
}

func numbersIn(top []CandidateStats, from, to int) []models.TwoD {
	out := []models.TwoD{}
	for i := from; i < to && i < len(top); i++ {
		out = append(out, top[i].Number)
	}
	return out
}
