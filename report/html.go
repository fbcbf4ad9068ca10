package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/shibukawa/aggcheck/rules"
	"github.com/shibukawa/aggcheck/runner"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; }
pre { background: #f6f8fa; padding: 8px; overflow-x: auto; }
</style>
</head>
<body>
`

const htmlTail = `</body>
</html>
`

// Markdown renders the summary as GitHub flavored markdown.
func Markdown(s *runner.Summary) string {
	var sb strings.Builder

	status := "PASSED"
	if !s.OK() {
		status = "FAILED"
	}

	fmt.Fprintf(&sb, "# Data Quality Report: %s\n\n", status)
	fmt.Fprintf(&sb, "Started at %s, took %.3fs.\n\n", s.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"), s.Duration.Seconds())
	fmt.Fprintf(&sb, "%d rules: %d passed, %d failed, %d warned, %d errored, %d skipped.\n\n",
		s.Total, s.Passed, s.Failed, s.Warned, s.Errored, s.Skipped)

	sb.WriteString("| # | Rule | Story | Severity | Status | Violations |\n")
	sb.WriteString("|---:|---|---|---|---|---:|\n")

	for _, r := range s.Results {
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %d |\n",
			r.Rule.ID, cell(r.Rule.Name), cell(string(r.Rule.Story)), r.Rule.Severity, statusBadge(r.Status), r.Violations)
	}

	for _, r := range s.Results {
		if r.Status == rules.StatusPassed || r.Status == rules.StatusSkipped {
			continue
		}

		fmt.Fprintf(&sb, "\n## %d %s\n\n", r.Rule.ID, r.Rule.Name)

		if r.Rule.Description != "" {
			sb.WriteString(r.Rule.Description)
			sb.WriteString("\n\n")
		}

		sb.WriteString("```text\n")
		sb.WriteString(r.Message)
		sb.WriteString("\n```\n")

		if r.SQL != "" {
			sb.WriteString("\n```sql\n")
			sb.WriteString(r.SQL)
			sb.WriteString("\n```\n")
		}
	}

	return sb.String()
}

// WriteHTML renders the markdown report as a standalone HTML page.
func WriteHTML(w io.Writer, s *runner.Summary) error {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(s)), &body); err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	if _, err := fmt.Fprintf(w, htmlHead, html.EscapeString("aggcheck report")); err != nil {
		return err
	}

	if _, err := body.WriteTo(w); err != nil {
		return err
	}

	_, err := io.WriteString(w, htmlTail)

	return err
}

func statusBadge(status rules.Status) string {
	switch status {
	case rules.StatusPassed:
		return "✅ passed"
	case rules.StatusFailed:
		return "❌ failed"
	case rules.StatusWarned:
		return "⚠️ warned"
	case rules.StatusErrored:
		return "💥 errored"
	default:
		return "⏭ skipped"
	}
}

// cell escapes pipes inside a table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
