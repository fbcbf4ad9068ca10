package sqlgen

import (
	"fmt"
	"strings"

	"github.com/shibukawa/aggcheck"
)

// ColumnType maps a neutral column type to the dialect's SQL type.
func (b *Builder) ColumnType(t aggcheck.ColumnType) string {
	switch t {
	case aggcheck.TypeInteger:
		switch b.dialect {
		case aggcheck.DialectBigQuery:
			return "INT64"
		case aggcheck.DialectSQLite:
			return "INTEGER"
		default:
			return "BIGINT"
		}
	case aggcheck.TypeDate:
		return "DATE"
	default:
		switch b.dialect {
		case aggcheck.DialectBigQuery:
			return "STRING"
		case aggcheck.DialectDuckDB:
			return "VARCHAR"
		case aggcheck.DialectMySQL:
			return "VARCHAR(255)"
		default:
			return "TEXT"
		}
	}
}

// CreateSchema returns CREATE SCHEMA IF NOT EXISTS for the dataset. SQLite has no schemas and
// returns ok=false.
func (b *Builder) CreateSchema() (Query, bool) {
	if !b.dialect.Supports(aggcheck.FeatureSchemas) || b.dialect == aggcheck.DialectBigQuery {
		return Query{}, false
	}

	return Query{SQL: "CREATE SCHEMA IF NOT EXISTS " + QuoteIdentifier(b.dialect, b.dataset)}, true
}

// CreateTable returns CREATE TABLE IF NOT EXISTS for an explicit schema. Every column is
// nullable, matching the warehouse load which never enforces REQUIRED.
func (b *Builder) CreateTable(schema aggcheck.TableSchema) (Query, error) {
	ref, err := b.Table(schema.Name)
	if err != nil {
		return Query{}, err
	}

	if len(schema.Columns) == 0 {
		return Query{}, fmt.Errorf("table %s: at least one column is required", schema.Name)
	}

	defs := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		if err := ValidateIdentifier(c.Name); err != nil {
			return Query{}, fmt.Errorf("invalid column name: %w", err)
		}
		defs[i] = QuoteIdentifier(b.dialect, c.Name) + " " + b.ColumnType(c.Type)
	}

	return Query{SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ref, strings.Join(defs, ", "))}, nil
}

// DeleteAll returns an unconditional DELETE used for truncate-and-replace inside a transaction.
func (b *Builder) DeleteAll(table string) (Query, error) {
	ref, err := b.Table(table)
	if err != nil {
		return Query{}, err
	}

	return Query{SQL: "DELETE FROM " + ref}, nil
}

// Insert returns a single row INSERT with one placeholder per column. Args are left empty so
// the statement can be prepared once and executed per row.
func (b *Builder) Insert(table string, columns []string) (Query, error) {
	ref, err := b.Table(table)
	if err != nil {
		return Query{}, err
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		if err := ValidateIdentifier(col); err != nil {
			return Query{}, fmt.Errorf("invalid column name: %w", err)
		}
		quoted[i] = QuoteIdentifier(b.dialect, col)
		placeholders[i] = b.Placeholder(i + 1)
	}

	return Query{SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ref, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))}, nil
}

// CreateView returns the statements that (re)create a view from a rendered body.
// SQLite lacks CREATE OR REPLACE VIEW and gets DROP + CREATE.
func (b *Builder) CreateView(name string, body Query) ([]Query, error) {
	ref, err := b.Table(name)
	if err != nil {
		return nil, err
	}

	if len(body.Args) > 0 {
		return nil, fmt.Errorf("view %s: DDL cannot bind parameters", name)
	}

	if !b.dialect.Supports(aggcheck.FeatureCreateOrReplaceView) {
		return []Query{
			{SQL: "DROP VIEW IF EXISTS " + ref},
			{SQL: "CREATE VIEW " + ref + " AS\n" + body.SQL},
		}, nil
	}

	return []Query{{SQL: "CREATE OR REPLACE VIEW " + ref + " AS\n" + body.SQL}}, nil
}
