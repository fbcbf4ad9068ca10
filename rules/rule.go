// Package rules holds the integrity rule catalog. Every rule is a query whose result rows are
// the violations, a CEL pass expression over those rows and a typed formatter that explains
// the violations.
package rules

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/executor"
	"github.com/shibukawa/aggcheck/sqlgen"
	"github.com/shibukawa/aggcheck/warehouse"
)

// Story groups rules for reports.
type Story string

const (
	StoryTables Story = "Data_Tables_Creation"
	StoryView   Story = "View_Creation"
)

// Severity of a failed rule.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityNormal   Severity = "normal"
)

// Status is the outcome of one rule.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusWarned  Status = "warned"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// Params are the values substituted into rule queries.
type Params struct {
	DateFloor      civil.Date
	ViewDateFloor  civil.Date
	InstallCeiling int64
	DeviceUATeam   string
	GeoUATeam      string
	View           string
	Fallback       string
}

// ParamsFromConfig reads the thresholds of a validated configuration.
func ParamsFromConfig(cfg *aggcheck.Config) Params {
	return Params{
		DateFloor:      cfg.Thresholds.DateFloorValue(),
		ViewDateFloor:  cfg.Thresholds.ViewDateFloorValue(),
		InstallCeiling: cfg.Thresholds.InstallCeiling,
		DeviceUATeam:   cfg.Thresholds.DeviceUATeam,
		GeoUATeam:      cfg.Thresholds.GeoUATeam,
		View:           cfg.ViewName(),
		Fallback:       aggcheck.FallbackSegment,
	}
}

// report is what a formatter extracts from the violation rows.
type report struct {
	headline   string
	lines      []string
	violations int64
}

type formatter func(rs *warehouse.ResultSet, p Params) (report, error)

// Rule is one integrity check.
type Rule struct {
	ID          int      `yaml:"id"`
	Name        string   `yaml:"name"`
	Story       Story    `yaml:"story"`
	Severity    Severity `yaml:"severity"`
	Description string   `yaml:"description"`
	Targets     []string `yaml:"targets"`
	Query       string   `yaml:"-"`
	Pass        string   `yaml:"pass"`
	// Informational rules have their violation rows logged even when they are downgraded.
	Informational bool `yaml:"informational,omitempty"`
	// WarnOnly rules report failures as warnings.
	WarnOnly bool `yaml:"warn_only,omitempty"`
	// Step is the audit step description.
	Step string `yaml:"-"`

	predicate *Predicate
	format    formatter
}

// Render builds the violation query for a dialect.
func (r *Rule) Render(b *sqlgen.Builder, p Params) (sqlgen.Query, error) {
	return b.Render(r.Name, r.Query, p)
}

// Result is the outcome of evaluating one rule.
type Result struct {
	Rule       *Rule
	Status     Status
	Violations int64
	Message    string
	Lines      []string
	Truncated  int
	SQL        string
	Err        error
}

// Evaluate runs the rule through the executor and judges the rows. Errors never escape:
// they become an errored result.
func (r *Rule) Evaluate(ctx context.Context, exec *executor.Executor, p Params, maxLines int) Result {
	res := Result{Rule: r}

	errored := func(err error) Result {
		res.Status = StatusErrored
		res.Err = err
		res.Message = err.Error()

		return res
	}

	q, err := r.Render(exec.Builder(), p)
	if err != nil {
		return errored(err)
	}

	res.SQL = q.SQL

	rs, err := exec.Run(ctx, q, r.Step)
	if err != nil {
		return errored(err)
	}

	passed, err := r.predicate.Eval(rs.Plain())
	if err != nil {
		return errored(err)
	}

	rep, err := r.format(rs, p)
	if err != nil {
		return errored(fmt.Errorf("schema mismatch in %s: %w", r.Name, err))
	}

	res.Violations = rep.violations

	if passed {
		res.Status = StatusPassed
		res.Message = "OK"

		return res
	}

	res.Status = StatusFailed
	if r.WarnOnly {
		res.Status = StatusWarned
	}

	res.Lines = rep.lines
	if maxLines > 0 && len(res.Lines) > maxLines {
		res.Truncated = len(res.Lines) - maxLines
		res.Lines = res.Lines[:maxLines]
	}

	res.Message = composeMessage(rep.headline, res.Lines, res.Truncated)

	return res
}

func composeMessage(headline string, lines []string, truncated int) string {
	var sb strings.Builder
	sb.WriteString(headline)

	for _, line := range lines {
		sb.WriteString("\n")
		sb.WriteString(line)
	}

	if truncated > 0 {
		fmt.Fprintf(&sb, "\n... (%d more rows truncated)", truncated)
	}

	return sb.String()
}
