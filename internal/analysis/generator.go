package analysis

import "github.com/rewired-gh/twodoracle/internal/models"

// Generation is the candidate generator output. ByRule keeps the pre-exclusion
// set of every rule; Final is the exclusion-filtered union.
type Generation struct {
	PreviousResult models.TwoD
	PowerDigits    []byte
	ByRule         map[Rule]NumberSet
	Final          []models.TwoD
	Excluded       []models.TwoD

	origins [100][]Rule
}

// Origins returns the rules that produced n, in rule order.
func (g *Generation) Origins(n models.TwoD) []Rule {
	if !n.Valid() {
		return nil
	}
	return g.origins[index(n)]
}

// Overlap returns how many rules produced n.
func (g *Generation) Overlap(n models.TwoD) int {
	return len(g.Origins(n))
}

// Generate derives the per-rule candidate sets from the live index and the
// filtering window (most recent first), then removes the two most recent draws
// from the union. Malformed entries are dropped first.
func Generate(liveIndex string, filtering []models.TwoD) *Generation {
	filtering = cleanWindow(filtering)
	ctx := &ruleContext{recent: filtering}
	if len(filtering) > 0 {
		ctx.previous = filtering[0]
	}
	ctx.powerDigits = selectPowerDigits(liveIndex, ctx.previous)

	g := &Generation{
		PreviousResult: ctx.previous,
		PowerDigits:    ctx.powerDigits,
		ByRule:         make(map[Rule]NumberSet, len(candidateRules)),
	}

	var union NumberSet
	for _, r := range candidateRules {
		set := r.Candidates(ctx)
		g.ByRule[r.Name()] = set
		for i, ok := range set {
			if !ok {
				continue
			}
			union[i] = true
			g.origins[i] = append(g.origins[i], r.Name())
		}
	}

	depth := exclusionDepth
	if len(filtering) < depth {
		depth = len(filtering)
	}
	for _, n := range filtering[:depth] {
		if union.Has(n) {
			g.Excluded = append(g.Excluded, n)
		}
		union.Remove(n)
		g.origins[index(n)] = nil
	}

	g.Final = union.Sorted()
	return g
}
