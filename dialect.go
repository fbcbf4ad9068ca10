package aggcheck

import "fmt"

// Dialect represents supported warehouse dialects
// This type is shared across all packages
type Dialect string

const (
	DialectBigQuery Dialect = "bigquery"
	DialectDuckDB   Dialect = "duckdb"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// Dialects lists every supported dialect in display order.
var Dialects = []Dialect{DialectBigQuery, DialectDuckDB, DialectPostgres, DialectMySQL, DialectSQLite}

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	for _, d := range Dialects {
		if string(d) == s {
			return d, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
}

// DriverName returns the database/sql driver registered for the dialect.
// BigQuery has no database/sql driver and returns an empty string.
func (d Dialect) DriverName() string {
	switch d {
	case DialectDuckDB:
		return "duckdb"
	case DialectPostgres:
		return "pgx"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite3"
	default:
		return ""
	}
}

// Feature represents dialect specific SQL feature flags
type Feature int

const (
	FeatureCreateOrReplaceView Feature = iota + 1
	FeatureSafeCast                    // SAFE_CAST / TRY_CAST
	FeatureStringAgg                   // STRING_AGG (vs GROUP_CONCAT)
	FeatureSchemas                     // dataset maps to a schema/database qualifier
	FeatureTypedDateParams             // DATE parameters bind natively
)

// Capabilities defines which SQL features are supported by each dialect
var Capabilities = map[Dialect]map[Feature]bool{
	DialectBigQuery: {
		FeatureCreateOrReplaceView: true,
		FeatureSafeCast:            true,
		FeatureStringAgg:           true,
		FeatureSchemas:             true,
		FeatureTypedDateParams:     true,
	},
	DialectDuckDB: {
		FeatureCreateOrReplaceView: true,
		FeatureSafeCast:            true,
		FeatureStringAgg:           true,
		FeatureSchemas:             true,
	},
	DialectPostgres: {
		FeatureCreateOrReplaceView: true,
		FeatureStringAgg:           true,
		FeatureSchemas:             true,
	},
	DialectMySQL: {
		FeatureCreateOrReplaceView: true,
		FeatureSchemas:             true,
	},
	DialectSQLite: {},
}

// Supports reports whether the dialect supports the feature.
func (d Dialect) Supports(f Feature) bool {
	return Capabilities[d][f]
}
