// Package analysis implements the rule-based candidate generator and the
// statistical scorer behind the 2D pattern report.
//
// Analysis runs in two phases over two draw histories (most recent first):
//
//	filtering window  (~30 sessions)  -> candidate generation (four rules + exclusion)
//	evaluation window (~90 sessions)  -> hit rates, momentum, confidence, tiers
//
// Candidates come from four independent rules (Power, Brother, 1-Change, Double).
// A number produced by several rules keeps every rule label; the overlap count is
// a scoring signal. The two most recent draws are then excluded from the union.
//
// Each surviving candidate is scored with
//
//	confidence = min(round(hitRate×15 + overlap×20 + momentumBonus), 99)
//
// This is an arbitrary weighted sum kept for output compatibility. Draws are
// uniformly random, so confidence carries no information about the next draw
// beyond what hitRate already shows.
//
// Analyze is a pure function: the same Input always yields the same Output, which
// is what makes caching by Fingerprint correct.
package analysis

import "github.com/rewired-gh/twodoracle/internal/models"

// Input is the analysis request.
type Input struct {
	// LiveIndex is the live SET index string, e.g. "1,346.23". Only its last
	// character is used.
	LiveIndex string `json:"liveIndex"`
	// PreviousAndRecent is the filtering window, most recent first.
	PreviousAndRecent []models.TwoD `json:"previousAndRecent"`
	// EvaluationWindow is the scoring window, most recent first.
	EvaluationWindow []models.TwoD `json:"evaluationWindow"`
}

// Output is the complete analysis record.
type Output struct {
	MarketContext    MarketContext    `json:"marketContext"`
	ExecutiveSummary string           `json:"executiveSummary"`
	CategoryHitRates CategoryHitRates `json:"categoryHitRates"`
	TopCandidates    []CandidateStats `json:"topCandidates"`
	FinalSelection   FinalSelection   `json:"finalSelection"`
}

// MarketContext echoes the inputs the rules were derived from.
type MarketContext struct {
	PreviousResult models.TwoD `json:"previousResult"`
	SetOpenIndex   string      `json:"setOpenIndex"`
	PowerDigits    []string    `json:"powerDigits"`
}

// CategoryHitRates holds the percentage of evaluation sessions whose number
// falls in each rule's pre-exclusion candidate set.
type CategoryHitRates struct {
	Power     float64 `json:"powerDigitHitRate"`
	Brother   float64 `json:"brotherPairHitRate"`
	OneChange float64 `json:"oneChangeHitRate"`
	Double    float64 `json:"doubleNumberHitRate"`
}

// Rate returns the hit rate of the given rule.
func (c CategoryHitRates) Rate(r Rule) float64 {
	switch r {
	case RulePower:
		return c.Power
	case RuleBrother:
		return c.Brother
	case RuleOneChange:
		return c.OneChange
	case RuleDouble:
		return c.Double
	}
	return 0
}

// CandidateStats is the scored view of one final candidate.
type CandidateStats struct {
	Number      models.TwoD `json:"number"`
	Count       int         `json:"count"`
	HitRate     float64     `json:"hitRate"`
	RuleOverlap string      `json:"ruleOverlap"`
	Momentum    Momentum    `json:"momentum"`
	Confidence  int         `json:"confidence"`
}

// FinalSelection partitions the ranked top candidates into tiers.
type FinalSelection struct {
	Main          []models.TwoD `json:"main"`
	StrongSupport []models.TwoD `json:"strongSupport"`
	WatchRotation []models.TwoD `json:"watchRotation"`
}

// Analyze runs candidate generation and scoring. Malformed history entries
// are ignored; empty inputs produce a well-defined zero result.
func Analyze(in Input) Output {
	filtering := cleanWindow(in.PreviousAndRecent)
	evaluation := cleanWindow(in.EvaluationWindow)

	gen := Generate(in.LiveIndex, filtering)
	scored := Score(gen, filtering, evaluation)

	powerDigits := make([]string, len(gen.PowerDigits))
	for i, d := range gen.PowerDigits {
		powerDigits[i] = string(d)
	}

	return Output{
		MarketContext: MarketContext{
			PreviousResult: gen.PreviousResult,
			SetOpenIndex:   in.LiveIndex,
			PowerDigits:    powerDigits,
		},
		ExecutiveSummary: Summarize(len(gen.Final), scored),
		CategoryHitRates: scored.CategoryHitRates,
		TopCandidates:    scored.Top,
		FinalSelection:   scored.Selection,
	}
}

// cleanWindow drops entries that are not valid 2D numbers.
func cleanWindow(window []models.TwoD) []models.TwoD {
	out := make([]models.TwoD, 0, len(window))
	for _, n := range window {
		if n.Valid() {
			out = append(out, n)
		}
	}
	return out
}
