// Package sqlgen renders dialect aware SQL from templates. Identifiers are validated and quoted,
// values are bound as parameters, and the few non portable functions the rules need are
// spelled per dialect.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"cloud.google.com/go/civil"
	"github.com/shibukawa/aggcheck"
)

// Query is a rendered statement with its bound arguments in placeholder order.
type Query struct {
	SQL  string
	Args []any
}

// String returns the SQL text followed by its arguments, as recorded in audit artifacts.
func (q Query) String() string {
	if len(q.Args) == 0 {
		return q.SQL
	}

	var sb strings.Builder
	sb.WriteString(q.SQL)
	sb.WriteString("\n-- args:")
	for i, a := range q.Args {
		fmt.Fprintf(&sb, " $%d=%v", i+1, a)
	}

	return sb.String()
}

// Builder renders statements for one dialect and one dataset.
type Builder struct {
	dialect aggcheck.Dialect
	project string
	dataset string
}

// New creates a builder. The project is only used by BigQuery, the dataset becomes the schema
// (or database) qualifier everywhere except SQLite.
func New(dialect aggcheck.Dialect, project, dataset string) (*Builder, error) {
	if _, err := aggcheck.ParseDialect(string(dialect)); err != nil {
		return nil, err
	}

	if dialect == aggcheck.DialectBigQuery {
		if err := ValidateProject(project); err != nil {
			return nil, err
		}
	}

	if dialect != aggcheck.DialectSQLite {
		if err := ValidateIdentifier(dataset); err != nil {
			return nil, fmt.Errorf("invalid dataset name: %w", err)
		}
	}

	return &Builder{dialect: dialect, project: project, dataset: dataset}, nil
}

// Dialect returns the target dialect.
func (b *Builder) Dialect() aggcheck.Dialect { return b.dialect }

// Dataset returns the dataset qualifier.
func (b *Builder) Dataset() string { return b.dataset }

// Table returns the quoted, fully qualified reference to a table or view.
func (b *Builder) Table(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}

	switch b.dialect {
	case aggcheck.DialectBigQuery:
		return "`" + b.project + "." + b.dataset + "." + name + "`", nil
	case aggcheck.DialectSQLite:
		return QuoteIdentifier(b.dialect, name), nil
	default:
		return QuoteIdentifier(b.dialect, b.dataset) + "." + QuoteIdentifier(b.dialect, name), nil
	}
}

// Literal quotes a string literal. Only DDL uses it; everything else binds parameters.
func (b *Builder) Literal(value string) string {
	return QuoteLiteral(b.dialect, value)
}

// Placeholder returns the placeholder for the 1-based argument position.
func (b *Builder) Placeholder(position int) string {
	switch b.dialect {
	case aggcheck.DialectBigQuery:
		return "@p" + strconv.Itoa(position)
	case aggcheck.DialectPostgres:
		return "$" + strconv.Itoa(position)
	default:
		return "?"
	}
}

// SafeCastInt64 returns an expression that yields NULL when expr is not a 64-bit integer.
func (b *Builder) SafeCastInt64(expr string) string {
	if b.dialect.Supports(aggcheck.FeatureSafeCast) {
		if b.dialect == aggcheck.DialectBigQuery {
			return "SAFE_CAST(" + expr + " AS INT64)"
		}
		return "TRY_CAST(" + expr + " AS BIGINT)"
	}

	switch b.dialect {
	case aggcheck.DialectPostgres:
		return "CASE WHEN CAST(" + expr + " AS TEXT) ~ '^-?[0-9]{1,18}$' THEN CAST(" + expr + " AS BIGINT) END"
	case aggcheck.DialectMySQL:
		return "CASE WHEN CAST(" + expr + " AS CHAR) REGEXP '^-?[0-9]{1,18}$' THEN CAST(" + expr + " AS SIGNED) END"
	default:
		return "CASE WHEN typeof(" + expr + ") = 'integer' THEN " + expr + " END"
	}
}

// StringAgg returns a comma separated string aggregate of expr.
func (b *Builder) StringAgg(expr string) string {
	if b.dialect.Supports(aggcheck.FeatureStringAgg) {
		return "STRING_AGG(" + expr + ", ',')"
	}

	return "GROUP_CONCAT(" + expr + ")"
}

// CurrentDate returns the dialect's current date expression.
func (b *Builder) CurrentDate() string {
	switch b.dialect {
	case aggcheck.DialectBigQuery:
		return "CURRENT_DATE()"
	case aggcheck.DialectSQLite:
		return "DATE('now')"
	default:
		return "CURRENT_DATE"
	}
}

// Parse checks that a template is syntactically valid without rendering it.
func Parse(name, text string) error {
	_, err := template.New(name).Funcs(parseFuncs).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse query template %s: %w", name, err)
	}

	return nil
}

// parseFuncs declares the template functions so templates can be parsed without a builder.
var parseFuncs = template.FuncMap{
	"table":       func(string) (string, error) { return "", nil },
	"param":       func(any) string { return "" },
	"date":        func(any) (string, error) { return "", nil },
	"lit":         func(string) string { return "" },
	"safeInt64":   func(string) string { return "" },
	"stringAgg":   func(string) string { return "" },
	"currentDate": func() string { return "" },
}

// Render executes a query template. Template functions:
//
//	table "name"     quoted table reference
//	param value      bound parameter
//	date value       bound DATE parameter (civil.Date or YYYY-MM-DD string)
//	lit "text"       inline string literal (DDL only)
//	safeInt64 "expr" NULL unless expr is a 64-bit integer
//	stringAgg "expr" comma separated aggregate
//	currentDate      today's date
func (b *Builder) Render(name, text string, data any) (Query, error) {
	var args []any

	bind := func(v any) string {
		args = append(args, v)
		return b.Placeholder(len(args))
	}

	funcs := template.FuncMap{
		"table": b.Table,
		"param": bind,
		"date": func(v any) (string, error) {
			d, err := toDate(v)
			if err != nil {
				return "", err
			}
			return b.dateParam(d, bind), nil
		},
		"lit":         b.Literal,
		"safeInt64":   b.SafeCastInt64,
		"stringAgg":   b.StringAgg,
		"currentDate": b.CurrentDate,
	}

	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return Query{}, fmt.Errorf("failed to parse query template %s: %w", name, err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return Query{}, fmt.Errorf("failed to render query %s: %w", name, err)
	}

	return Query{SQL: strings.TrimSpace(sb.String()), Args: args}, nil
}

// dateParam binds a DATE value. BigQuery takes civil.Date natively and SQLite stores ISO text;
// the others bind text and cast.
func (b *Builder) dateParam(d civil.Date, bind func(any) string) string {
	if b.dialect.Supports(aggcheck.FeatureTypedDateParams) {
		return bind(d)
	}

	if b.dialect == aggcheck.DialectSQLite {
		return bind(d.String())
	}

	return "CAST(" + bind(d.String()) + " AS DATE)"
}

func toDate(v any) (civil.Date, error) {
	switch d := v.(type) {
	case civil.Date:
		return d, nil
	case string:
		parsed, err := civil.ParseDate(d)
		if err != nil {
			return civil.Date{}, fmt.Errorf("invalid date %q: %w", d, err)
		}
		return parsed, nil
	default:
		return civil.Date{}, fmt.Errorf("unsupported date value %T", v)
	}
}
