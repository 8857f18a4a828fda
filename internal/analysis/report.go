package analysis

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rewired-gh/twodoracle/internal/models"
)

// FormatReport renders the analysis as a plain-text report suitable for
// download or terminal output.
func FormatReport(out Output) string {
	var b strings.Builder

	b.WriteString("2D PATTERN ANALYSIS REPORT\n")
	b.WriteString("==========================\n\n")

	b.WriteString("Market context\n")
	prev := string(out.MarketContext.PreviousResult)
	if prev == "" {
		prev = "--"
	}
	fmt.Fprintf(&b, "  Previous result: %s\n", prev)
	fmt.Fprintf(&b, "  SET index:       %s\n", out.MarketContext.SetOpenIndex)
	fmt.Fprintf(&b, "  Power digits:    %s\n\n", strings.Join(out.MarketContext.PowerDigits, ", "))

	b.WriteString("Executive summary\n")
	fmt.Fprintf(&b, "  %s\n\n", out.ExecutiveSummary)

	b.WriteString("Category hit rates\n")
	for _, r := range Rules {
		fmt.Fprintf(&b, "  %-9s %6.2f%%\n", r, out.CategoryHitRates.Rate(r))
	}
	b.WriteString("\n")

	b.WriteString("Top candidates\n")
	if len(out.TopCandidates) == 0 {
		b.WriteString("  (none)\n")
	} else {
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tNumber\tCount\tHit rate\tMomentum\tConfidence\tRules")
		for i, c := range out.TopCandidates {
			fmt.Fprintf(tw, "  %d\t%s\t%d\t%.2f%%\t%s\t%d\t%s\n",
				i+1, c.Number, c.Count, c.HitRate, c.Momentum, c.Confidence, c.RuleOverlap)
		}
		_ = tw.Flush()
	}
	b.WriteString("\n")

	b.WriteString("Final selection\n")
	fmt.Fprintf(&b, "  Main:           %s\n", joinNumbers(out.FinalSelection.Main))
	fmt.Fprintf(&b, "  Strong support: %s\n", joinNumbers(out.FinalSelection.StrongSupport))
	fmt.Fprintf(&b, "  Watch rotation: %s\n\n", joinNumbers(out.FinalSelection.WatchRotation))

	b.WriteString("Confidence is a heuristic weighted score, not a probability. Draws are random.\n")
	return b.String()
}

func joinNumbers(nums []models.TwoD) string {
	if len(nums) == 0 {
		return "--"
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = string(n)
	}
	return strings.Join(parts, " ")
}
