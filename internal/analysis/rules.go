package analysis

import (
	"strings"

	"github.com/rewired-gh/twodoracle/internal/models"
)

// Rule names a candidate generation rule.
type Rule string

const (
	RulePower     Rule = "Power"
	RuleBrother   Rule = "Brother"
	RuleOneChange Rule = "1-Change"
	RuleDouble    Rule = "Double"
)

// Rules lists every rule in application order. Overlap labels follow this order.
var Rules = []Rule{RulePower, RuleBrother, RuleOneChange, RuleDouble}

const (
	// maxPowerDigits caps the distinct power digits. The index digit wins over the
	// previous-result digits when more than two distinct digits exist.
	maxPowerDigits = 2
	// doubleLookback is how many recent draws are checked for a double.
	doubleLookback = 5
	// exclusionDepth is how many recent draws are removed from the final pool.
	exclusionDepth = 2
	// fallbackIndexDigit is used when the live index has no usable last digit.
	fallbackIndexDigit = '0'
)

// mirror is the fixed Brother digit pairing 0-5, 1-6, 2-7, 3-8, 4-9.
var mirror = [10]byte{'5', '6', '7', '8', '9', '0', '1', '2', '3', '4'}

// Mirror returns the brother digit of d. Non-digits are returned unchanged.
func Mirror(d byte) byte {
	if d < '0' || d > '9' {
		return d
	}
	return mirror[d-'0']
}

// ruleContext carries the rule inputs derived once per run.
type ruleContext struct {
	previous    models.TwoD // empty when the filtering window has no entry
	powerDigits []byte
	recent      []models.TwoD
}

func (c *ruleContext) hasPrevious() bool {
	return c.previous != ""
}

// candidateRule produces the candidate set of one rule.
type candidateRule interface {
	Name() Rule
	Candidates(ctx *ruleContext) NumberSet
}

var candidateRules = []candidateRule{powerRule{}, brotherRule{}, oneChangeRule{}, doubleRule{}}

type powerRule struct{}

func (powerRule) Name() Rule { return RulePower }

func (powerRule) Candidates(ctx *ruleContext) NumberSet {
	var s NumberSet
	for _, p := range ctx.powerDigits {
		for i := byte('0'); i <= '9'; i++ {
			s.Add(models.FromDigits(p, i))
			s.Add(models.FromDigits(i, p))
		}
	}
	return s
}

type brotherRule struct{}

func (brotherRule) Name() Rule { return RuleBrother }

func (brotherRule) Candidates(ctx *ruleContext) NumberSet {
	var s NumberSet
	if !ctx.hasPrevious() {
		return s
	}
	d1, d2 := ctx.previous.Tens(), ctx.previous.Ones()
	m1, m2 := Mirror(d1), Mirror(d2)
	s.Add(models.FromDigits(m1, m2))
	s.Add(models.FromDigits(d1, m2))
	s.Add(models.FromDigits(m1, d2))
	return s
}

type oneChangeRule struct{}

func (oneChangeRule) Name() Rule { return RuleOneChange }

func (oneChangeRule) Candidates(ctx *ruleContext) NumberSet {
	var s NumberSet
	if !ctx.hasPrevious() {
		return s
	}
	d1, d2 := ctx.previous.Tens(), ctx.previous.Ones()
	for i := byte('0'); i <= '9'; i++ {
		if i != d2 {
			s.Add(models.FromDigits(d1, i))
		}
		if i != d1 {
			s.Add(models.FromDigits(i, d2))
		}
	}
	return s
}

type doubleRule struct{}

func (doubleRule) Name() Rule { return RuleDouble }

// Candidates yields all ten doubles unless a double was drawn in the lookback.
// Fewer than five recent draws count as "no double seen".
func (doubleRule) Candidates(ctx *ruleContext) NumberSet {
	var s NumberSet
	recent := ctx.recent
	if len(recent) > doubleLookback {
		recent = recent[:doubleLookback]
	}
	for _, n := range recent {
		if n.IsDouble() {
			return s
		}
	}
	for i := byte('0'); i <= '9'; i++ {
		s.Add(models.FromDigits(i, i))
	}
	return s
}

// indexDigit returns the last character of the live index, or the fallback
// digit when the index is empty or does not end in a digit.
func indexDigit(liveIndex string) byte {
	liveIndex = strings.TrimSpace(liveIndex)
	if liveIndex == "" {
		return fallbackIndexDigit
	}
	c := liveIndex[len(liveIndex)-1]
	if c < '0' || c > '9' {
		return fallbackIndexDigit
	}
	return c
}

// selectPowerDigits keeps the first distinct digits in encounter order:
// index digit, then previous tens, then previous ones.
func selectPowerDigits(liveIndex string, previous models.TwoD) []byte {
	pool := []byte{indexDigit(liveIndex)}
	if previous != "" {
		pool = append(pool, previous.Tens(), previous.Ones())
	}

	var out []byte
	for _, d := range pool {
		if len(out) == maxPowerDigits {
			break
		}
		seen := false
		for _, o := range out {
			if o == d {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, d)
		}
	}
	return out
}

// overlapLabel joins rule labels in rule order.
func overlapLabel(rules []Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = string(r)
	}
	return strings.Join(parts, " + ")
}
