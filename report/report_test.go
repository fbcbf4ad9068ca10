package report_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alecthomas/assert/v2"
	"github.com/beevik/etree"
	"github.com/goccy/go-json"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/report"
	"github.com/shibukawa/aggcheck/rules"
	"github.com/shibukawa/aggcheck/runner"
	"github.com/shibukawa/aggcheck/sqlgen"
	"github.com/shibukawa/aggcheck/warehouse"
	"gopkg.in/yaml.v3"
)

func sampleSummary() *runner.Summary {
	matchRule := &rules.Rule{ID: 1, Name: "device_models_match", Story: rules.StoryTables, Severity: rules.SeverityCritical, Description: "models match"}
	rangeRule := &rules.Rule{ID: 5, Name: "agg_data_date_range", Story: rules.StoryTables, Severity: rules.SeverityCritical}
	viewRule := &rules.Rule{ID: 12, Name: "view_non_target_segments_absent", Story: rules.StoryView, Severity: rules.SeverityNormal}
	floorRule := &rules.Rule{ID: 21, Name: "view_date_floor_discrepancy", Story: rules.StoryTables, Severity: rules.SeverityNormal, WarnOnly: true}
	skipRule := &rules.Rule{ID: 16, Name: "view_date_range", Story: rules.StoryView, Severity: rules.SeverityCritical}

	return &runner.Summary{
		Total:     5,
		Passed:    1,
		Failed:    1,
		Warned:    1,
		Errored:   1,
		Skipped:   1,
		Duration:  1500 * time.Millisecond,
		StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Results: []runner.RuleResult{
			{Result: rules.Result{Rule: matchRule, Status: rules.StatusPassed, Message: "OK", SQL: "SELECT 1"}, Duration: 100 * time.Millisecond},
			{Result: rules.Result{
				Rule: rangeRule, Status: rules.StatusFailed, Violations: 2,
				Message: "Found installations before '2020-01-01': 2", SQL: "SELECT COUNT(*) AS cnt",
			}, Duration: 200 * time.Millisecond},
			{Result: rules.Result{
				Rule: viewRule, Status: rules.StatusErrored,
				Message: "Check for the absence of non-target device segments (warehouse): no such table",
				Err:     errors.New("no such table"),
			}},
			{Result: rules.Result{Rule: skipRule, Status: rules.StatusSkipped, Message: "skipped by configuration"}},
			{Result: rules.Result{
				Rule: floorRule, Status: rules.StatusWarned, Violations: 1,
				Message: "Found 1 agg_data rows from 2020-01-01 before 2020-02-01 that the view drops",
			}},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, report.WriteJSON(&buf, sampleSummary()))

	var doc report.Document
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.False(t, doc.OK)
	assert.Equal(t, report.Totals{Total: 5, Passed: 1, Failed: 1, Warned: 1, Errored: 1, Skipped: 1}, doc.Totals)
	assert.Equal(t, 1.5, doc.DurationSeconds)
	assert.Equal(t, 5, len(doc.Results))
	assert.Equal(t, "failed", doc.Results[1].Status)
	assert.Equal(t, int64(2), doc.Results[1].Violations)
	assert.Equal(t, "no such table", doc.Results[2].Error)
}

func TestWriteJUnit(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, report.WriteJUnit(&buf, sampleSummary()))

	doc := etree.NewDocument()
	assert.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	root := doc.SelectElement("testsuites")
	assert.NotZero(t, root)
	assert.Equal(t, "1", root.SelectAttrValue("failures", ""))

	suites := root.SelectElements("testsuite")
	assert.Equal(t, 2, len(suites))
	assert.Equal(t, "Data_Tables_Creation", suites[0].SelectAttrValue("name", ""))
	assert.Equal(t, "3", suites[0].SelectAttrValue("tests", ""))
	assert.Equal(t, "1", suites[0].SelectAttrValue("failures", ""))
	assert.Equal(t, "1", suites[0].SelectAttrValue("skipped", ""))
	assert.Equal(t, "View_Creation", suites[1].SelectAttrValue("name", ""))
	assert.Equal(t, "1", suites[1].SelectAttrValue("errors", ""))

	failure := suites[0].FindElement("testcase[@name='05 agg_data_date_range']/failure")
	assert.NotZero(t, failure)
	assert.Equal(t, "critical", failure.SelectAttrValue("type", ""))
	assert.Equal(t, "Found installations before '2020-01-01': 2", failure.Text())

	severity := suites[1].FindElement("testcase/properties/property[@name='severity']")
	assert.NotZero(t, severity)
	assert.Equal(t, "normal", severity.SelectAttrValue("value", ""))

	warned := suites[0].FindElement("testcase[@name='21 view_date_floor_discrepancy']/skipped")
	assert.NotZero(t, warned)
	assert.True(t, strings.HasPrefix(warned.SelectAttrValue("message", ""), "warned: "))
}

func TestMarkdownAndHTML(t *testing.T) {
	s := sampleSummary()

	md := report.Markdown(s)
	assert.Contains(t, md, "# Data Quality Report: FAILED")
	assert.Contains(t, md, "| 5 | agg_data_date_range | Data_Tables_Creation | critical | ❌ failed | 2 |")
	assert.Contains(t, md, "## 5 agg_data_date_range")
	assert.NotContains(t, md, "## 1 device_models_match")

	var buf bytes.Buffer
	assert.NoError(t, report.WriteHTML(&buf, s))

	html := buf.String()
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>agg_data_date_range</td>")
	assert.Contains(t, html, `<code class="language-sql">`)
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggcheck.prom")
	assert.NoError(t, report.WriteMetrics(path, sampleSummary()))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `aggcheck_rule_passed{rule="device_models_match",severity="critical",story="Data_Tables_Creation"} 1`)
	assert.Contains(t, text, `aggcheck_rule_passed{rule="agg_data_date_range",severity="critical",story="Data_Tables_Creation"} 0`)
	assert.Contains(t, text, `aggcheck_rule_violations{rule="agg_data_date_range"} 2`)
	assert.Contains(t, text, `aggcheck_rule_duration_seconds{rule="agg_data_date_range"} 0.2`)
	assert.Contains(t, text, "aggcheck_run_timestamp_seconds 1.7145576e+09")
	assert.NotContains(t, text, `rule="view_date_range"`)
}

func TestExportCatalog(t *testing.T) {
	catalog, err := rules.NewCatalog(aggcheck.DefaultConfig())
	assert.NoError(t, err)

	builder, err := sqlgen.New(aggcheck.DialectPostgres, "", "analytics")
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, report.ExportCatalog(&buf, catalog, builder))

	var exported struct {
		Dialect string                `yaml:"dialect"`
		Rules   []report.CatalogEntry `yaml:"rules"`
	}
	assert.NoError(t, yaml.Unmarshal(buf.Bytes(), &exported))

	assert.Equal(t, "postgres", exported.Dialect)
	assert.Equal(t, 22, len(exported.Rules))

	dateRange := exported.Rules[4]
	assert.Equal(t, "agg_data_date_range", dateRange.Name)
	assert.Contains(t, dateRange.SQL, `FROM "analytics"."agg_data"`)
	assert.Contains(t, dateRange.SQL, "install_date < CAST($1 AS DATE)")
	assert.Equal(t, []string{"2020-01-01"}, dateRange.Args)
	assert.Equal(t, "rows[0].cnt == 0", dateRange.Pass)
}

func TestWriteRows(t *testing.T) {
	rs := warehouse.NewResultSet([]string{"app_id", "install_date", "device_model"}, []warehouse.Row{
		{"app_id": int64(1), "install_date": civil.Date{Year: 2020, Month: 3, Day: 1}, "device_model": "PIXEL 7"},
		{"app_id": int64(2), "install_date": civil.Date{Year: 2021, Month: 5, Day: 10}, "device_model": nil},
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		assert.NoError(t, report.WriteRows(&buf, rs, report.FormatCSV))
		assert.Equal(t, "app_id,install_date,device_model\n1,2020-03-01,PIXEL 7\n2,2021-05-10,NULL\n", buf.String())
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		assert.NoError(t, report.WriteRows(&buf, rs, report.FormatTable))
		assert.Contains(t, buf.String(), "PIXEL 7")
		assert.Contains(t, buf.String(), "2 rows")
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		assert.NoError(t, report.WriteRows(&buf, warehouse.NewResultSet([]string{"x"}, nil), report.FormatTable))
		assert.Equal(t, "No results\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		assert.NoError(t, report.WriteRows(&buf, rs, report.FormatJSON))

		var out struct {
			Count int              `json:"count"`
			Data  []map[string]any `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, 2, out.Count)
		assert.Equal[any](t, "2020-03-01", out.Data[0]["install_date"])
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := report.ParseOutputFormat("xml")
		assert.IsError(t, err, report.ErrInvalidOutputFormat)
	})
}
