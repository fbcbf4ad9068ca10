// Package warehouse hides the difference between BigQuery and database/sql backed warehouses
// behind one client that returns fully materialized result sets.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/sqlgen"
)

// ErrWarehouse wraps every failure reported by a warehouse or its driver.
var ErrWarehouse = errors.New("warehouse error")

// Client is a query-execution handle for one dataset.
type Client interface {
	// Dialect returns the SQL dialect spoken by the warehouse.
	Dialect() aggcheck.Dialect
	// Builder returns the statement builder bound to this warehouse's dataset.
	Builder() *sqlgen.Builder
	// Query runs a statement and pulls the whole result into memory.
	Query(ctx context.Context, q sqlgen.Query) (*ResultSet, error)
	// Exec runs a statement that returns no rows (DDL).
	Exec(ctx context.Context, q sqlgen.Query) error
	// EnsureDataset creates the dataset (schema) when it does not exist.
	EnsureDataset(ctx context.Context) error
	// Load replaces the whole content of a staging table. Rows hold validated values
	// (int64, string, civil.Date or nil) keyed by column name.
	Load(ctx context.Context, table aggcheck.TableSchema, rows []map[string]any) error
	Close() error
}

// Open builds an authenticated client for the configured dialect.
func Open(ctx context.Context, cfg *aggcheck.Config, env *aggcheck.Environment, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialect := cfg.DialectValue()

	builder, err := sqlgen.New(dialect, env.ProjectID, env.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement builder: %w", err)
	}

	switch dialect {
	case aggcheck.DialectBigQuery:
		return OpenBigQuery(ctx, env, builder, logger)
	case aggcheck.DialectDuckDB, aggcheck.DialectPostgres, aggcheck.DialectMySQL, aggcheck.DialectSQLite:
		return OpenSQL(ctx, env.DSN, builder, logger)
	default:
		return nil, fmt.Errorf("%w: %s", aggcheck.ErrUnknownDialect, dialect)
	}
}

func wrapWarehouse(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %s: %w", ErrWarehouse, op, err)
}
