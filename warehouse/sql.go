package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/sqlgen"

	// Drivers for every database/sql dialect
	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const pingAttempts = 5

// SQLClient is a Client over database/sql.
type SQLClient struct {
	db      *sql.DB
	builder *sqlgen.Builder
	logger  *slog.Logger
}

var _ Client = (*SQLClient)(nil)

// OpenSQL opens a database/sql warehouse and waits for it to accept connections.
func OpenSQL(ctx context.Context, dsn string, builder *sqlgen.Builder, logger *slog.Logger) (*SQLClient, error) {
	dialect := builder.Dialect()

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, wrapWarehouse("open", err)
	}

	// Each connection to an in-memory SQLite database is a separate database.
	if dialect == aggcheck.DialectSQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if logger == nil {
		logger = slog.Default()
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(pingAttempts),
		backoff.WithNotify(func(err error, delay time.Duration) {
			logger.Warn("warehouse not ready, retrying", "dialect", dialect, "delay", delay, "error", err)
		}),
	)
	if err != nil {
		db.Close()
		return nil, wrapWarehouse("ping", err)
	}

	logger.Debug("connected to warehouse", "dialect", dialect, "dataset", builder.Dataset())

	return NewSQLClient(db, builder, logger), nil
}

// NewSQLClient wraps an existing connection pool.
func NewSQLClient(db *sql.DB, builder *sqlgen.Builder, logger *slog.Logger) *SQLClient {
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLClient{db: db, builder: builder, logger: logger}
}

func (c *SQLClient) Dialect() aggcheck.Dialect { return c.builder.Dialect() }

func (c *SQLClient) Builder() *sqlgen.Builder { return c.builder }

// DB exposes the underlying pool.
func (c *SQLClient) DB() *sql.DB { return c.db }

func (c *SQLClient) Query(ctx context.Context, q sqlgen.Query) (*ResultSet, error) {
	rows, err := c.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, wrapWarehouse("query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, wrapWarehouse("columns", err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, wrapWarehouse("column types", err)
	}

	dbTypes := make([]string, len(types))
	for i, ct := range types {
		dbTypes[i] = ct.DatabaseTypeName()
	}

	var result []Row

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapWarehouse("scan", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i], dbTypes[i])
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapWarehouse("rows", err)
	}

	return NewResultSet(columns, result), nil
}

func (c *SQLClient) Exec(ctx context.Context, q sqlgen.Query) error {
	_, err := c.db.ExecContext(ctx, q.SQL, q.Args...)
	return wrapWarehouse("exec", err)
}

func (c *SQLClient) EnsureDataset(ctx context.Context) error {
	q, ok := c.builder.CreateSchema()
	if !ok {
		return nil
	}

	return c.Exec(ctx, q)
}

// Load truncates and refills a table inside one transaction, so a failed load leaves the
// previous content in place.
func (c *SQLClient) Load(ctx context.Context, table aggcheck.TableSchema, rows []map[string]any) (err error) {
	create, err := c.builder.CreateTable(table)
	if err != nil {
		return err
	}

	// DDL outside the transaction; MySQL would commit it implicitly anyway
	if err := c.Exec(ctx, create); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapWarehouse("begin", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.logger.Warn("rollback failed", "table", table.Name, "error", rbErr)
			}
		}
	}()

	if err = c.executeClearInsert(ctx, tx, table, rows); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return wrapWarehouse("commit", err)
	}

	c.logger.Debug("table replaced", "table", table.Name, "rows", len(rows))

	return nil
}

// executeClearInsert deletes every row and inserts the new data with one prepared statement
func (c *SQLClient) executeClearInsert(ctx context.Context, tx *sql.Tx, table aggcheck.TableSchema, rows []map[string]any) error {
	del, err := c.builder.DeleteAll(table.Name)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, del.SQL); err != nil {
		return wrapWarehouse("clear table "+table.Name, err)
	}

	if len(rows) == 0 {
		return nil
	}

	columns := table.ColumnNames()

	insert, err := c.builder.Insert(table.Name, columns)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insert.SQL)
	if err != nil {
		return wrapWarehouse("prepare insert", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		values := make([]any, len(columns))
		for j, col := range columns {
			values[j] = normalizeInsertValue(row[col])
		}

		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return wrapWarehouse(fmt.Sprintf("insert row %d into %s", i, table.Name), err)
		}
	}

	return nil
}

func (c *SQLClient) Close() error {
	return c.db.Close()
}
