package warehouse

import (
	"iter"
	"math"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// ResultSet is a fully materialized query result. It can be iterated any number of times.
type ResultSet struct {
	columns []string
	rows    []Row
}

// NewResultSet creates a result set from already normalized rows.
func NewResultSet(columns []string, rows []Row) *ResultSet {
	return &ResultSet{columns: columns, rows: rows}
}

// Columns returns the column names in select order.
func (r *ResultSet) Columns() []string { return r.columns }

// Len returns the number of rows.
func (r *ResultSet) Len() int { return len(r.rows) }

// Rows returns the rows. Callers must not modify them.
func (r *ResultSet) Rows() []Row { return r.rows }

// All returns a restartable iterator over the rows.
func (r *ResultSet) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, row := range r.rows {
			if !yield(row) {
				return
			}
		}
	}
}

// First returns the first row.
func (r *ResultSet) First() (Row, bool) {
	if len(r.rows) == 0 {
		return nil, false
	}

	return r.rows[0], true
}

// Plain returns the rows with every value converted to a JSON and CEL friendly type:
// dates and timestamps become ISO-8601 strings and decimals become int64 or float64.
func (r *ResultSet) Plain() []map[string]any {
	out := make([]map[string]any, len(r.rows))
	for i, row := range r.rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = PlainValue(v)
		}
		out[i] = m
	}

	return out
}

// PlainValue converts one normalized value for serialization.
func PlainValue(v any) any {
	switch val := v.(type) {
	case civil.Date:
		return val.String()
	case civil.DateTime:
		return val.String()
	case civil.Time:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		if val.IsInteger() && val.Abs().LessThanOrEqual(decimal.NewFromInt(math.MaxInt64)) {
			return val.IntPart()
		}
		f, _ := val.Float64()
		return f
	case []any:
		res := make([]any, len(val))
		for i, it := range val {
			res[i] = PlainValue(it)
		}
		return res
	case map[string]any:
		res := make(map[string]any, len(val))
		for k, it := range val {
			res[k] = PlainValue(it)
		}
		return res
	default:
		return v
	}
}
