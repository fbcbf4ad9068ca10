package fixture

import (
	"bytes"
	"fmt"
	"math"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-json"
	"github.com/shibukawa/aggcheck"
)

// ParseRows decodes a strict JSON fixture document and validates every row against the table schema.
// Every column is nullable. The returned rows hold int64, string, civil.Date or nil.
func ParseRows(data []byte, schema aggcheck.TableSchema) ([]map[string]any, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to parse fixture: %w", aggcheck.ErrFixtureSyntax)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w: %w", aggcheck.ErrFixtureSyntax, err)
	}

	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", aggcheck.ErrFixtureNotArray, kindOf(doc))
	}

	rows := make([]map[string]any, len(items))

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is %s, not an object", aggcheck.ErrFixtureNotArray, i, kindOf(item))
		}

		row, err := validateRow(obj, schema)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		rows[i] = row
	}

	return rows, nil
}

func validateRow(obj map[string]any, schema aggcheck.TableSchema) (map[string]any, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if _, ok := schema.Column(k); !ok {
			return nil, fmt.Errorf("%w: '%s' is not a column of %s", aggcheck.ErrUnknownFixtureColumn, k, schema.Name)
		}
	}

	row := make(map[string]any, len(schema.Columns))

	for _, col := range schema.Columns {
		raw, ok := obj[col.Name]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", aggcheck.ErrMissingFixtureColumn, col.Name)
		}

		value, err := convertValue(raw, col)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", col.Name, err)
		}

		row[col.Name] = value
	}

	return row, nil
}

func convertValue(raw any, col aggcheck.ColumnInfo) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch col.Type {
	case aggcheck.TypeInteger:
		if n, ok := toInt64(raw); ok {
			return n, nil
		}
	case aggcheck.TypeDate:
		if s, ok := raw.(string); ok {
			d, err := civil.ParseDate(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", aggcheck.ErrFixtureValueType, s)
			}
			return d, nil
		}
	case aggcheck.TypeString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	}

	return nil, fmt.Errorf("%w: %s value %v for a %s column", aggcheck.ErrFixtureValueType, kindOf(raw), raw, col.Type)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return toInt64(f)
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return "a number"
	}
}
