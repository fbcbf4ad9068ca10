package runner

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/shibukawa/aggcheck/rules"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	headerFmt  = color.New(color.FgBlue, color.Bold).SprintfFunc()
	passedFmt  = color.New(color.FgGreen).SprintfFunc()
	failedFmt  = color.New(color.FgRed, color.Bold).SprintfFunc()
	warnedFmt  = color.New(color.FgYellow).SprintfFunc()
	erroredFmt = color.New(color.FgMagenta, color.Bold).SprintfFunc()
	skippedFmt = color.New(color.Faint).SprintfFunc()
	detailFmt  = color.New(color.Faint).SprintFunc()
)

// statusLabel returns the colored, fixed width status column.
func statusLabel(status rules.Status) string {
	label := fmt.Sprintf("%-7s", strings.ToUpper(string(status)))

	switch status {
	case rules.StatusPassed:
		return passedFmt("%s", label)
	case rules.StatusFailed:
		return failedFmt("%s", label)
	case rules.StatusWarned:
		return warnedFmt("%s", label)
	case rules.StatusErrored:
		return erroredFmt("%s", label)
	default:
		return skippedFmt("%s", label)
	}
}

// PrintSummary writes one line per rule followed by the totals. Messages of rules that did not
// pass are indented below their line.
func (s *Summary) PrintSummary(w io.Writer) {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "\n%s\n", headerFmt("=== Data Quality Summary ==="))

	for _, result := range s.Results {
		fmt.Fprintf(w, "%s %3d %s\n", statusLabel(result.Status), result.Rule.ID, result.Rule.Name)

		if result.Status == rules.StatusPassed || result.Status == rules.StatusSkipped {
			continue
		}

		for _, line := range strings.Split(result.Message, "\n") {
			fmt.Fprintf(w, "        %s\n", detailFmt(line))
		}
	}

	fmt.Fprintln(w)
	p.Fprintf(w, "Rules: %d total, %s, %s, %s, %s, %s\n",
		s.Total,
		passedFmt("%s", p.Sprintf("%d passed", s.Passed)),
		failedFmt("%s", p.Sprintf("%d failed", s.Failed)),
		warnedFmt("%s", p.Sprintf("%d warned", s.Warned)),
		erroredFmt("%s", p.Sprintf("%d errored", s.Errored)),
		skippedFmt("%s", p.Sprintf("%d skipped", s.Skipped)),
	)

	var violations int64
	for _, result := range s.Results {
		if result.Status == rules.StatusFailed || result.Status == rules.StatusWarned {
			violations += result.Violations
		}
	}

	p.Fprintf(w, "Violations: %d\n", violations)
	fmt.Fprintf(w, "Duration: %.3fs\n", s.Duration.Seconds())

	if s.OK() {
		fmt.Fprintf(w, "\n%s\n", passedFmt("All rules passed! ✅"))
	} else {
		fmt.Fprintf(w, "\n%s\n", failedFmt("Some rules failed! ❌"))
	}
}
