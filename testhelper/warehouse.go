package testhelper

import (
	"context"
	"database/sql"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-json"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/sqlgen"
	"github.com/shibukawa/aggcheck/warehouse"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
)

// Test identifiers shared by every package
const (
	ProjectID = "test-project"
	DatasetID = "test_dataset"
)

// Environment returns an environment pointing at the test dataset.
func Environment() *aggcheck.Environment {
	return &aggcheck.Environment{ProjectID: ProjectID, DatasetID: DatasetID, DSN: ":memory:"}
}

// NewSQLite opens a private in-memory SQLite warehouse closed at test cleanup.
func NewSQLite(t testing.TB) *warehouse.SQLClient {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)

	return newClient(t, db, aggcheck.DialectSQLite)
}

// NewDuckDB opens a private in-memory DuckDB warehouse with the test dataset created.
func NewDuckDB(t testing.TB) *warehouse.SQLClient {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("failed to open duckdb: %v", err)
	}

	return newClient(t, db, aggcheck.DialectDuckDB)
}

// NewClient wraps an already opened pool, creating the test dataset.
func NewClient(t testing.TB, db *sql.DB, dialect aggcheck.Dialect) *warehouse.SQLClient {
	t.Helper()
	return newClient(t, db, dialect)
}

func newClient(t testing.TB, db *sql.DB, dialect aggcheck.Dialect) *warehouse.SQLClient {
	t.Helper()

	builder, err := sqlgen.New(dialect, ProjectID, DatasetID)
	if err != nil {
		t.Fatalf("failed to create builder: %v", err)
	}

	client := warehouse.NewSQLClient(db, builder, nil)
	t.Cleanup(func() { client.Close() })

	if err := client.EnsureDataset(context.Background()); err != nil {
		t.Fatalf("failed to create dataset: %v", err)
	}

	return client
}

// Dataset holds typed rows for every staging table.
type Dataset map[string][]map[string]any

// AggRow builds an agg_data row. model may be nil.
func AggRow(appID int64, date string, model any, installs int64) map[string]any {
	return map[string]any{"app_id": appID, "install_date": MustDate(date), "device_model": model, "installs": installs}
}

// MustDate parses a YYYY-MM-DD literal and panics on malformed input.
func MustDate(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}

	return d
}

// AppRow builds an app_names row.
func AppRow(appID int64, name, platform string) map[string]any {
	return map[string]any{"app_id": appID, "app_name": name, "platform": platform}
}

// SegmentRow builds a device_segments row.
func SegmentRow(model, segment, appShort, platform, uaTeam string) map[string]any {
	return map[string]any{"device_model": model, "segment": segment, "app_short": appShort, "platform": platform, "ua_team": uaTeam}
}

// GeoRow builds a geo_segments row.
func GeoRow(geo, segment, platform, uaTeam string) map[string]any {
	return map[string]any{"geo": geo, "segment": segment, "platform": platform, "ua_team": uaTeam}
}

// CleanDataset returns data on which every catalog rule passes.
func CleanDataset() Dataset {
	return Dataset{
		aggcheck.TableAggData: {
			AggRow(1, "2020-03-01", "PIXEL 7", 100),
			AggRow(1, "2020-03-02", "GALAXY A10", 50),
			AggRow(2, "2021-05-10", "IPHONE 14", 75),
		},
		aggcheck.TableAppNames: {
			AppRow(1, "Solitaire", "android"),
			AppRow(2, "Chess", "ios"),
		},
		aggcheck.TableDeviceSegments: {
			SegmentRow("PIXEL 7", "premium", "Solitaire", "android", "network"),
			SegmentRow("GALAXY A10", "budget", "Solitaire", "android", "network"),
			SegmentRow("IPHONE 14", "premium", "Chess", "ios", "network"),
		},
		aggcheck.TableGeoSegments: {
			GeoRow("US", "tier1", "android", "Network"),
			GeoRow("US", "tier1", "ios", "Network"),
		},
	}
}

// With returns a copy with extra rows appended to a table.
func (d Dataset) With(table string, rows ...map[string]any) Dataset {
	out := maps.Clone(d)
	out[table] = append(slices.Clone(d[table]), rows...)
	return out
}

// Replace returns a copy with a table's rows replaced.
func (d Dataset) Replace(table string, rows ...map[string]any) Dataset {
	out := maps.Clone(d)
	out[table] = rows
	return out
}

// Seed loads every table of the dataset through the client.
func Seed(t testing.TB, client warehouse.Client, d Dataset) {
	t.Helper()

	for _, name := range aggcheck.StagingTables {
		if err := client.Load(context.Background(), aggcheck.Schemas[name], d[name]); err != nil {
			t.Fatalf("failed to seed %s: %v", name, err)
		}
	}
}

// WriteFixtures writes the dataset as JSON fixture files (<table>.json) into dir.
func WriteFixtures(t testing.TB, dir string, d Dataset) {
	t.Helper()

	for _, name := range aggcheck.StagingTables {
		rows := d[name]
		if rows == nil {
			rows = []map[string]any{}
		}

		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			t.Fatalf("failed to marshal %s: %v", name, err)
		}

		if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}
