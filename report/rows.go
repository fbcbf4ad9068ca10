package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"
	"github.com/shibukawa/aggcheck/warehouse"
)

// ErrInvalidOutputFormat is returned for an unknown row output format.
var ErrInvalidOutputFormat = errors.New("invalid output format")

// OutputFormat represents the supported row output formats
type OutputFormat string

const (
	FormatTable    OutputFormat = "table"
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatYAML     OutputFormat = "yaml"
	FormatMarkdown OutputFormat = "markdown"
)

// ParseOutputFormat validates a format name.
func ParseOutputFormat(format string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(format))
	switch f {
	case FormatTable, FormatJSON, FormatCSV, FormatYAML, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidOutputFormat, format)
	}
}

// WriteRows formats an ad-hoc query result.
func WriteRows(w io.Writer, rs *warehouse.ResultSet, format OutputFormat) error {
	switch format {
	case FormatTable:
		return rowsAsTable(w, rs, false)
	case FormatMarkdown:
		return rowsAsTable(w, rs, true)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(map[string]any{"data": rs.Plain(), "count": rs.Len()})
	case FormatCSV:
		return rowsAsCSV(w, rs)
	case FormatYAML:
		data, err := yaml.MarshalWithOptions(map[string]any{"data": rs.Plain(), "count": rs.Len()}, yaml.UseLiteralStyleIfMultiline(true))
		if err != nil {
			return fmt.Errorf("failed to marshal results to YAML: %w", err)
		}

		_, err = w.Write(data)

		return err
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOutputFormat, format)
	}
}

func rowsAsTable(w io.Writer, rs *warehouse.ResultSet, markdown bool) error {
	if rs.Len() == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(rs.Columns())

	if markdown {
		table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		table.SetCenterSeparator("|")
	}

	for row := range rs.All() {
		table.Append(formatRow(rs.Columns(), row))
	}

	table.Render()

	_, err := fmt.Fprintf(w, "%d rows\n", rs.Len())

	return err
}

func rowsAsCSV(w io.Writer, rs *warehouse.ResultSet) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(rs.Columns()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for row := range rs.All() {
		if err := writer.Write(formatRow(rs.Columns(), row)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func formatRow(columns []string, row warehouse.Row) []string {
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = formatValue(row[col])
	}

	return values
}

// formatValue formats a value as a string
func formatValue(val any) string {
	switch v := warehouse.PlainValue(val).(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
