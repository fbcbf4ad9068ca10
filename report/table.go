package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shibukawa/aggcheck/runner"
)

// WriteTable renders one row per rule.
func WriteTable(w io.Writer, s *runner.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"#", "Rule", "Story", "Severity", "Status", "Violations", "Duration"})

	for _, r := range s.Results {
		table.Append([]string{
			strconv.Itoa(r.Rule.ID),
			r.Rule.Name,
			string(r.Rule.Story),
			string(r.Rule.Severity),
			string(r.Status),
			strconv.FormatInt(r.Violations, 10),
			fmt.Sprintf("%.3fs", r.Duration.Seconds()),
		})
	}

	table.SetFooter([]string{"", "", "", "", fmt.Sprintf("%d/%d passed", s.Passed, s.Total), "", fmt.Sprintf("%.3fs", s.Duration.Seconds())})
	table.Render()
}
