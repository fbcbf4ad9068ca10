package warehouse_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/sqlgen"
	"github.com/shibukawa/aggcheck/testhelper"
	"github.com/shibukawa/aggcheck/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgreSQLWarehouse(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}

	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	exerciseWarehouse(t, aggcheck.DialectPostgres, connStr)
}

func TestMySQLWarehouse(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MySQL integration test in short mode")
	}

	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx,
		"mysql:8.4",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}

	defer func() {
		if err := mysqlContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	}()

	connStr, err := mysqlContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	exerciseWarehouse(t, aggcheck.DialectMySQL, connStr)
}

// exerciseWarehouse runs the load and query contract against a server backed dialect.
func exerciseWarehouse(t *testing.T, dialect aggcheck.Dialect, dsn string) {
	t.Helper()

	ctx := context.Background()

	builder, err := sqlgen.New(dialect, testhelper.ProjectID, testhelper.DatasetID)
	require.NoError(t, err)

	client, err := warehouse.OpenSQL(ctx, dsn, builder, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.EnsureDataset(ctx))
	testhelper.Seed(t, client, testhelper.CleanDataset())

	q, err := builder.Render("sum", `
		SELECT an.app_name, SUM(agg.installs) AS total_installs, MIN(agg.install_date) AS first_date
		FROM {{ table "agg_data" }} AS agg
		JOIN {{ table "app_names" }} AS an ON agg.app_id = an.app_id
		WHERE agg.install_date >= {{ date .Floor }}
		GROUP BY an.app_name
		ORDER BY an.app_name`, map[string]any{"Floor": "2020-02-01"})
	require.NoError(t, err)

	rs, err := client.Query(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, []warehouse.Row{
		{"app_name": "Chess", "total_installs": int64(75), "first_date": civil.Date{Year: 2021, Month: 5, Day: 10}},
		{"app_name": "Solitaire", "total_installs": int64(150), "first_date": civil.Date{Year: 2020, Month: 3, Day: 1}},
	}, rs.Rows())
}
