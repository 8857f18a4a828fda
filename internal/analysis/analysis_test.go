package analysis

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/rewired-gh/twodoracle/internal/models"
)

func nums(ss ...string) []models.TwoD {
	out := make([]models.TwoD, len(ss))
	for i, s := range ss {
		out[i] = models.TwoD(s)
	}
	return out
}

func TestMirror(t *testing.T) {
	pairs := map[byte]byte{'0': '5', '1': '6', '2': '7', '3': '8', '4': '9'}
	for a, b := range pairs {
		if Mirror(a) != b || Mirror(b) != a {
			t.Errorf("Mirror(%c) = %c, Mirror(%c) = %c", a, Mirror(a), b, Mirror(b))
		}
	}
}

func TestSelectPowerDigits(t *testing.T) {
	tests := []struct {
		name     string
		index    string
		previous models.TwoD
		want     string
	}{
		{"index digit first", "1,346.23", "25", "32"},
		{"index equals tens", "1,346.22", "25", "25"},
		{"all equal", "1,346.44", "44", "4"},
		{"empty index falls back to zero", "", "25", "02"},
		{"non digit index falls back to zero", "1,346.", "25", "02"},
		{"unknown previous", "1,346.27", "", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(selectPowerDigits(tt.index, tt.previous))
			if got != tt.want {
				t.Errorf("selectPowerDigits(%q, %q) = %q, want %q", tt.index, tt.previous, got, tt.want)
			}
		})
	}
}

func TestGenerate_ReferenceScenario(t *testing.T) {
	g := Generate("1,346.23", nums("25", "13", "47", "09", "88"))

	if g.PreviousResult != "25" {
		t.Errorf("PreviousResult = %s, want 25", g.PreviousResult)
	}
	if string(g.PowerDigits) != "32" {
		t.Errorf("PowerDigits = %q, want \"32\"", g.PowerDigits)
	}

	brother := g.ByRule[RuleBrother]
	if got := brother.Sorted(); !reflect.DeepEqual(got, nums("20", "70", "75")) {
		t.Errorf("Brother = %v, want [20 70 75]", got)
	}

	power := g.ByRule[RulePower]
	if power.Len() != 36 {
		t.Errorf("Power set size = %d, want 36", power.Len())
	}

	oneChange := g.ByRule[RuleOneChange]
	if oneChange.Len() != 18 {
		t.Errorf("1-Change set size = %d, want 18", oneChange.Len())
	}

	// 88 is a double inside the last five draws.
	double := g.ByRule[RuleDouble]
	if double.Len() != 0 {
		t.Errorf("Double set size = %d, want 0", double.Len())
	}

	if len(g.Final) != 43 {
		t.Errorf("final candidates = %d, want 43", len(g.Final))
	}
	for _, n := range g.Final {
		if n == "25" || n == "13" {
			t.Errorf("excluded number %s present in final candidates", n)
		}
	}
	if !reflect.DeepEqual(g.Excluded, nums("25", "13")) {
		t.Errorf("Excluded = %v, want [25 13]", g.Excluded)
	}

	// Pre-exclusion rule sets still hold the excluded numbers.
	if !power.Has("25") || !power.Has("13") {
		t.Error("Power set must keep excluded numbers for category scoring")
	}

	if got := overlapLabel(g.Origins("20")); got != "Power + Brother + 1-Change" {
		t.Errorf("overlap(20) = %q", got)
	}
	if got := overlapLabel(g.Origins("75")); got != "Brother + 1-Change" {
		t.Errorf("overlap(75) = %q", got)
	}
	if g.Overlap("25") != 0 {
		t.Error("excluded numbers must have no origins")
	}
}

func TestGenerate_DoubleRuleActive(t *testing.T) {
	g := Generate("1,346.23", nums("25", "13", "47", "09", "61", "77"))

	double := g.ByRule[RuleDouble]
	if double.Len() != 10 {
		t.Fatalf("Double set size = %d, want 10", double.Len())
	}
	if got := overlapLabel(g.Origins("22")); got != "Power + 1-Change + Double" {
		t.Errorf("overlap(22) = %q", got)
	}
	if g.Overlap("55") != 2 {
		t.Errorf("overlap(55) = %d, want 2", g.Overlap("55"))
	}
}

func TestGenerate_SparseHistoryFailsOpen(t *testing.T) {
	g := Generate("1,346.23", nums("25"))
	double := g.ByRule[RuleDouble]
	if double.Len() != 10 {
		t.Errorf("Double set size = %d, want 10 with fewer than five draws", double.Len())
	}
	for _, n := range g.Final {
		if n == "25" {
			t.Error("single previous draw must still be excluded")
		}
	}

	empty := Generate("", nil)
	if empty.PreviousResult != "" {
		t.Errorf("PreviousResult = %q, want empty", empty.PreviousResult)
	}
	if string(empty.PowerDigits) != "0" {
		t.Errorf("PowerDigits = %q, want \"0\"", empty.PowerDigits)
	}
	// 19 power numbers (0x, x0) plus nine doubles not already counted.
	if len(empty.Final) != 28 {
		t.Errorf("final candidates = %d, want 28", len(empty.Final))
	}
	b := empty.ByRule[RuleBrother]
	o := empty.ByRule[RuleOneChange]
	if b.Len() != 0 || o.Len() != 0 {
		t.Error("Brother and 1-Change need a previous result")
	}
}

func TestGenerate_PreviousDouble(t *testing.T) {
	g := Generate("1,346.20", nums("44", "13"))
	oneChange := g.ByRule[RuleOneChange]
	if oneChange.Len() != 18 {
		t.Errorf("1-Change set size = %d, want 18", oneChange.Len())
	}
	brother := g.ByRule[RuleBrother]
	if got := brother.Sorted(); !reflect.DeepEqual(got, nums("49", "94", "99")) {
		t.Errorf("Brother = %v, want [49 94 99]", got)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name     string
		hitRate  float64
		overlap  int
		momentum Momentum
		want     int
	}{
		{"all rules, full hit, rising clamps", 100, 4, MomentumRising, 99},
		{"overlap only", 0, 3, MomentumLow, 60},
		{"stable bonus", 0, 1, MomentumStable, 25},
		{"rising bonus", 0, 1, MomentumRising, 35},
		{"rounds half up", 2.5, 1, MomentumLow, 58},
		{"rounds down", 1.02, 1, MomentumLow, 35},
		{"zero", 0, 0, MomentumLow, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Confidence(tt.hitRate, tt.overlap, tt.momentum); got != tt.want {
				t.Errorf("Confidence(%v, %d, %s) = %d, want %d", tt.hitRate, tt.overlap, tt.momentum, got, tt.want)
			}
		})
	}
}

func TestClassifyMomentum(t *testing.T) {
	window := make([]models.TwoD, 30)
	for i := range window {
		window[i] = "00"
	}
	window[27] = "27"
	window[28] = "28"

	if got := ClassifyMomentum("27", window); got != MomentumRising {
		t.Errorf("momentum at index 27 = %s, want Rising", got)
	}
	if got := ClassifyMomentum("28", window); got != MomentumStable {
		t.Errorf("momentum at index 28 = %s, want Stable", got)
	}
	if got := ClassifyMomentum("99", window); got != MomentumLow {
		t.Errorf("momentum of absent number = %s, want Low", got)
	}
}

func TestHitRate(t *testing.T) {
	if HitRate(3, 0) != 0 {
		t.Error("empty window must yield 0")
	}
	if HitRate(1, 4) != 25 {
		t.Errorf("HitRate(1, 4) = %v, want 25", HitRate(1, 4))
	}
}

func TestAnalyze_EmptyEvaluationWindow(t *testing.T) {
	out := Analyze(Input{
		LiveIndex:         "1,346.23",
		PreviousAndRecent: nums("25", "13", "47", "09", "88"),
	})

	if out.CategoryHitRates != (CategoryHitRates{}) {
		t.Errorf("category hit rates = %+v, want all zero", out.CategoryHitRates)
	}
	for _, c := range out.TopCandidates {
		if c.HitRate != 0 || c.Count != 0 {
			t.Errorf("candidate %s hit rate = %v, want 0", c.Number, c.HitRate)
		}
		want := Confidence(0, strings.Count(c.RuleOverlap, "+")+1, c.Momentum)
		if c.Confidence != want {
			t.Errorf("candidate %s confidence = %d, want %d", c.Number, c.Confidence, want)
		}
	}

	if got := out.FinalSelection.Main; !reflect.DeepEqual(got, nums("20", "21", "22")) {
		t.Errorf("main = %v, want [20 21 22]", got)
	}
	if got := out.FinalSelection.StrongSupport; !reflect.DeepEqual(got, nums("23", "24", "26")) {
		t.Errorf("strong support = %v, want [23 24 26]", got)
	}
	if got := out.FinalSelection.WatchRotation; !reflect.DeepEqual(got, nums("27", "28", "29", "35")) {
		t.Errorf("watch rotation = %v, want [27 28 29 35]", got)
	}
	if out.TopCandidates[0].Confidence != 60 {
		t.Errorf("top confidence = %d, want 60", out.TopCandidates[0].Confidence)
	}
	if out.MarketContext.PreviousResult != "25" || !reflect.DeepEqual(out.MarketContext.PowerDigits, []string{"3", "2"}) {
		t.Errorf("market context = %+v", out.MarketContext)
	}
}

func TestAnalyze_CategoryRatesDoNotReconcile(t *testing.T) {
	in := Input{
		LiveIndex:         "1,346.23",
		PreviousAndRecent: nums("25", "13", "47", "09", "88"),
		EvaluationWindow:  nums("25", "25", "13", "20"),
	}
	g := Generate(in.LiveIndex, in.PreviousAndRecent)
	s := Score(g, in.PreviousAndRecent, in.EvaluationWindow)

	if s.CategoryHitRates.Power != 100 {
		t.Fatalf("Power category rate = %v, want 100", s.CategoryHitRates.Power)
	}

	var sum float64
	for _, c := range s.Candidates {
		if strings.Contains(c.RuleOverlap, string(RulePower)) {
			sum += c.HitRate
		}
	}
	// The category rate is computed over the pre-exclusion set, the candidate
	// rates over the post-exclusion pool; they are not expected to agree.
	if sum == s.CategoryHitRates.Power {
		t.Errorf("sum of Power candidate rates = %v, expected it to differ from category rate", sum)
	}
	if sum != 25 {
		t.Errorf("sum of Power candidate rates = %v, want 25", sum)
	}
}

func TestAnalyze_IgnoresMalformedEntries(t *testing.T) {
	clean := Analyze(Input{
		LiveIndex:         "1,346.23",
		PreviousAndRecent: nums("25", "13", "47"),
		EvaluationWindow:  nums("20", "31"),
	})
	dirty := Analyze(Input{
		LiveIndex:         "1,346.23",
		PreviousAndRecent: nums("2", "25", "xx", "13", "47"),
		EvaluationWindow:  nums("20", "", "31", "311"),
	})
	if !reflect.DeepEqual(clean, dirty) {
		t.Error("malformed entries must be ignored")
	}
}

func TestGenerateAndScore_DropMalformedEntries(t *testing.T) {
	clean := Generate("1,346.23", nums("25", "13"))
	dirty := Generate("1,346.23", nums("ab", "25", "1", "13"))
	if !reflect.DeepEqual(clean.Final, dirty.Final) || dirty.PreviousResult != "25" {
		t.Errorf("Generate() final = %v (previous %q), want %v", dirty.Final, dirty.PreviousResult, clean.Final)
	}

	want := Score(clean, nums("25", "13"), nums("20", "31"))
	got := Score(dirty, nums("ab", "25", "13"), nums("20", "9", "31", "x1"))
	if !reflect.DeepEqual(want, got) {
		t.Error("Score() must ignore malformed window entries")
	}
}

func TestMirror_NonDigit(t *testing.T) {
	for _, d := range []byte{'a', ' ', '.'} {
		if got := Mirror(d); got != d {
			t.Errorf("Mirror(%q) = %q, want %q", d, got, d)
		}
	}
}

func TestSummarize_EmptySelection(t *testing.T) {
	s := Scored{Top: []CandidateStats{}, Selection: selectTiers(nil)}
	summary := Summarize(0, s)
	if !strings.Contains(summary, "no numbers remain") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "moderate") || !strings.Contains(summary, "weak") {
		t.Errorf("summary thresholds wrong: %q", summary)
	}
	if s.Selection.Main == nil || len(s.Selection.Main) != 0 || len(s.Selection.WatchRotation) != 0 {
		t.Errorf("selection = %+v, want empty lists", s.Selection)
	}
}

func TestSummarize_Thresholds(t *testing.T) {
	s := Scored{CategoryHitRates: CategoryHitRates{Power: 30.5, Brother: 6, Double: 4}}
	summary := Summarize(12, s)
	if !strings.Contains(summary, "appears dominant") {
		t.Errorf("expected dominant power influence: %q", summary)
	}
	if !strings.Contains(summary, "show some consistency") {
		t.Errorf("expected some consistency at exactly 10%%: %q", summary)
	}
	if !strings.Contains(summary, "generated 12 candidate numbers") {
		t.Errorf("expected candidate count: %q", summary)
	}
}

func TestAnalyze_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randomWindow := func(n int) []models.TwoD {
		w := make([]models.TwoD, n)
		for i := range w {
			w[i] = number(rng.Intn(100))
		}
		return w
	}
	indexes := []string{"1,346.23", "", "1,402.10", "abc", "1,290.07"}

	for i := 0; i < 200; i++ {
		in := Input{
			LiveIndex:         indexes[i%len(indexes)],
			PreviousAndRecent: randomWindow(rng.Intn(35)),
			EvaluationWindow:  randomWindow(rng.Intn(95)),
		}
		out := Analyze(in)

		g := Generate(in.LiveIndex, in.PreviousAndRecent)
		for j := 0; j < len(in.PreviousAndRecent) && j < 2; j++ {
			for _, n := range g.Final {
				if n == in.PreviousAndRecent[j] {
					t.Fatalf("case %d: final candidates contain excluded %s", i, n)
				}
			}
		}
		if len(in.PreviousAndRecent) > 0 {
			oneChange := g.ByRule[RuleOneChange]
			if oneChange.Len() != 18 {
				t.Fatalf("case %d: 1-Change size = %d", i, oneChange.Len())
			}
		}
		double := g.ByRule[RuleDouble]
		if l := double.Len(); l != 0 && l != 10 {
			t.Fatalf("case %d: Double size = %d", i, l)
		}

		if len(out.TopCandidates) > 10 {
			t.Fatalf("case %d: %d top candidates", i, len(out.TopCandidates))
		}
		for k, c := range out.TopCandidates {
			if c.HitRate < 0 || c.HitRate > 100 {
				t.Fatalf("case %d: hit rate %v out of range", i, c.HitRate)
			}
			if c.Confidence < 0 || c.Confidence > 99 {
				t.Fatalf("case %d: confidence %d out of range", i, c.Confidence)
			}
			if k > 0 && c.Confidence > out.TopCandidates[k-1].Confidence {
				t.Fatalf("case %d: ranking not descending", i)
			}
		}

		a, _ := json.Marshal(out)
		b, _ := json.Marshal(Analyze(in))
		if !bytes.Equal(a, b) {
			t.Fatalf("case %d: repeated analysis is not byte-identical", i)
		}
	}
}

func TestAnalyze_JSONShape(t *testing.T) {
	out := Analyze(Input{LiveIndex: "1,346.23", PreviousAndRecent: nums("25", "13")})
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{
		`"marketContext"`, `"executiveSummary"`, `"powerDigitHitRate"`, `"brotherPairHitRate"`,
		`"oneChangeHitRate"`, `"doubleNumberHitRate"`, `"topCandidates"`, `"ruleOverlap"`,
		`"finalSelection"`, `"strongSupport"`, `"watchRotation"`, `"setOpenIndex"`,
	} {
		if !bytes.Contains(data, []byte(key)) {
			t.Errorf("JSON output missing %s", key)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := Input{LiveIndex: "1,346.23", PreviousAndRecent: nums("25", "13"), EvaluationWindow: nums("25")}
	b := Input{LiveIndex: "1,346.23", PreviousAndRecent: nums("25", "13"), EvaluationWindow: nums("25")}
	c := Input{LiveIndex: "1,346.24", PreviousAndRecent: nums("25", "13"), EvaluationWindow: nums("25")}

	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	fb, _ := Fingerprint(b)
	fc, _ := Fingerprint(c)
	if fa != fb {
		t.Error("equal inputs must share a fingerprint")
	}
	if fa == fc {
		t.Error("different inputs must not share a fingerprint")
	}
	if len(fa) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(fa))
	}
}

func TestFormatReport(t *testing.T) {
	out := Analyze(Input{
		LiveIndex:         "1,346.23",
		PreviousAndRecent: nums("25", "13", "47", "09", "88"),
		EvaluationWindow:  nums("20", "21", "99"),
	})
	report := FormatReport(out)
	for _, want := range []string{"Previous result: 25", "Power digits:    3, 2", "Main:", "1-Change", "not a probability"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}

	empty := FormatReport(Output{})
	if !strings.Contains(empty, "(none)") || !strings.Contains(empty, "Previous result: --") {
		t.Errorf("empty report = %q", empty)
	}
}
