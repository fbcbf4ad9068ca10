// Package report renders run summaries and the rule catalog for people and machines.
package report

import (
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shibukawa/aggcheck/runner"
)

// Document is the machine readable form of a run summary.
type Document struct {
	StartedAt       time.Time     `json:"started_at"`
	DurationSeconds float64       `json:"duration_seconds"`
	OK              bool          `json:"ok"`
	Totals          Totals        `json:"totals"`
	Results         []RuleOutcome `json:"results"`
}

// Totals are the status counts of a run.
type Totals struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Warned  int `json:"warned"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// RuleOutcome is one rule of a Document.
type RuleOutcome struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Story           string   `json:"story"`
	Severity        string   `json:"severity"`
	Status          string   `json:"status"`
	Informational   bool     `json:"informational,omitempty"`
	Violations      int64    `json:"violations"`
	Headline        string   `json:"headline"`
	Lines           []string `json:"lines,omitempty"`
	Truncated       int      `json:"truncated,omitempty"`
	SQL             string   `json:"sql,omitempty"`
	Error           string   `json:"error,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// NewDocument converts a summary.
func NewDocument(s *runner.Summary) Document {
	doc := Document{
		StartedAt:       s.StartedAt.UTC(),
		DurationSeconds: s.Duration.Seconds(),
		OK:              s.OK(),
		Totals: Totals{
			Total:   s.Total,
			Passed:  s.Passed,
			Failed:  s.Failed,
			Warned:  s.Warned,
			Errored: s.Errored,
			Skipped: s.Skipped,
		},
		Results: make([]RuleOutcome, 0, len(s.Results)),
	}

	for _, r := range s.Results {
		outcome := RuleOutcome{
			ID:              r.Rule.ID,
			Name:            r.Rule.Name,
			Story:           string(r.Rule.Story),
			Severity:        string(r.Rule.Severity),
			Status:          string(r.Status),
			Informational:   r.Rule.Informational,
			Violations:      r.Violations,
			Headline:        headline(r.Message),
			Lines:           r.Lines,
			Truncated:       r.Truncated,
			SQL:             r.SQL,
			DurationSeconds: r.Duration.Seconds(),
		}

		if r.Err != nil {
			outcome.Error = r.Err.Error()
		}

		doc.Results = append(doc.Results, outcome)
	}

	return doc
}

// WriteJSON writes the summary as an indented JSON document.
func WriteJSON(w io.Writer, s *runner.Summary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(NewDocument(s))
}

// headline returns the first line of a rule message.
func headline(message string) string {
	first, _, _ := strings.Cut(message, "\n")
	return first
}
