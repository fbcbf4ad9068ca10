package viewbuild_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/audit"
	"github.com/shibukawa/aggcheck/executor"
	"github.com/shibukawa/aggcheck/testhelper"
	"github.com/shibukawa/aggcheck/viewbuild"
	"github.com/shibukawa/aggcheck/warehouse"
)

const selectView = `
	SELECT install_date, device_model, app_name, device_segment, installs
	FROM {{ table "v_agg_data" }}
	ORDER BY install_date, app_name`

func viewRows(t *testing.T, exec *executor.Executor) []warehouse.Row {
	t.Helper()

	q, err := exec.Builder().Render("view rows", selectView, nil)
	assert.NoError(t, err)

	rs, err := exec.Run(context.Background(), q, "view rows")
	assert.NoError(t, err)

	return rs.Rows()
}

func TestBuilder_Build(t *testing.T) {
	factories := map[string]func(testing.TB) *warehouse.SQLClient{
		"sqlite": testhelper.NewSQLite,
		"duckdb": testhelper.NewDuckDB,
	}

	for name, open := range factories {
		t.Run(name, func(t *testing.T) {
			client := open(t)

			data := testhelper.CleanDataset().
				With(aggcheck.TableAggData,
					// before the view floor: filtered out
					testhelper.AggRow(1, "2020-01-15", "PIXEL 7", 5),
					// mixed case model still resolves its segment
					testhelper.AggRow(1, "2020-04-01", "Pixel 7", 7),
					// unknown model falls back
					testhelper.AggRow(2, "2020-04-02", "IPHONE 3G", 9),
				).
				With(aggcheck.TableDeviceSegments,
					// other ua_team is ignored
					testhelper.SegmentRow("IPHONE 3G", "legacy", "Chess", "ios", "brand"),
				)
			testhelper.Seed(t, client, data)

			exec := executor.New(client, executor.Options{})
			builder := viewbuild.New(exec, aggcheck.DefaultConfig(), nil)

			outcome, err := builder.Build(context.Background())
			assert.NoError(t, err)
			assert.True(t, outcome.Created)
			assert.NoError(t, outcome.Err)

			date := testhelper.MustDate

			assert.Equal(t, []warehouse.Row{
				{"install_date": date("2020-03-01"), "device_model": "PIXEL 7", "app_name": "Solitaire", "device_segment": "premium", "installs": int64(100)},
				{"install_date": date("2020-03-02"), "device_model": "GALAXY A10", "app_name": "Solitaire", "device_segment": "budget", "installs": int64(50)},
				{"install_date": date("2020-04-01"), "device_model": "Pixel 7", "app_name": "Solitaire", "device_segment": "premium", "installs": int64(7)},
				{"install_date": date("2020-04-02"), "device_model": "IPHONE 3G", "app_name": "Chess", "device_segment": "non_target_device", "installs": int64(9)},
				{"install_date": date("2021-05-10"), "device_model": "IPHONE 14", "app_name": "Chess", "device_segment": "premium", "installs": int64(75)},
			}, viewRows(t, exec))
		})
	}
}

func TestBuilder_NullDeviceModelFallsBack(t *testing.T) {
	client := testhelper.NewSQLite(t)
	testhelper.Seed(t, client, testhelper.CleanDataset().
		Replace(aggcheck.TableAggData, testhelper.AggRow(1, "2020-05-01", nil, 3)))

	exec := executor.New(client, executor.Options{})
	_, err := viewbuild.New(exec, aggcheck.DefaultConfig(), nil).Build(context.Background())
	assert.NoError(t, err)

	rows := viewRows(t, exec)
	assert.Equal(t, 1, len(rows))
	assert.Zero(t, rows[0]["device_model"])
	assert.Equal[any](t, aggcheck.FallbackSegment, rows[0]["device_segment"])
}

func TestBuilder_Idempotent(t *testing.T) {
	client := testhelper.NewSQLite(t)
	testhelper.Seed(t, client, testhelper.CleanDataset())

	exec := executor.New(client, executor.Options{})
	builder := viewbuild.New(exec, aggcheck.DefaultConfig(), nil)

	_, err := builder.Build(context.Background())
	assert.NoError(t, err)
	first := viewRows(t, exec)

	_, err = builder.Build(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, first, viewRows(t, exec))
}

func TestBuilder_FailurePolicy(t *testing.T) {
	t.Run("warn swallows", func(t *testing.T) {
		// no staging tables: the view cannot be created
		client := testhelper.NewDuckDB(t)
		sink := audit.NewMemory()
		exec := executor.New(client, executor.Options{Sink: sink})

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		outcome, err := viewbuild.New(exec, aggcheck.DefaultConfig(), logger).Build(context.Background())
		assert.NoError(t, err)
		assert.False(t, outcome.Created)
		assert.IsError(t, outcome.Err, aggcheck.ErrViewBuild)
		assert.Contains(t, buf.String(), "View creation failed")

		// the failed DDL is still audited
		assert.NotZero(t, sink.Steps())
	})

	t.Run("fail returns", func(t *testing.T) {
		client := testhelper.NewDuckDB(t)
		exec := executor.New(client, executor.Options{})

		cfg := aggcheck.DefaultConfig()
		cfg.View.OnError = aggcheck.ViewOnErrorFail

		_, err := viewbuild.New(exec, cfg, nil).Build(context.Background())

		var viewErr *aggcheck.ViewBuildError
		assert.True(t, errors.As(err, &viewErr))
		assert.Equal(t, aggcheck.DefaultViewName, viewErr.View)
		assert.IsError(t, err, aggcheck.ErrQueryExecution)
	})
}

func TestBuilder_StatementsInlineLiterals(t *testing.T) {
	client := testhelper.NewSQLite(t)
	exec := executor.New(client, executor.Options{})

	cfg := aggcheck.DefaultConfig()
	cfg.Thresholds.DeviceUATeam = "net'work"

	statements, err := viewbuild.New(exec, cfg, nil).Statements()
	assert.NoError(t, err)
	assert.Equal(t, 2, len(statements))

	assert.Equal(t, `DROP VIEW IF EXISTS "v_agg_data"`, statements[0].SQL)
	assert.True(t, strings.HasPrefix(statements[1].SQL, `CREATE VIEW "v_agg_data" AS`))
	assert.Contains(t, statements[1].SQL, `WHERE ua_team = 'net''work'`)
	assert.Contains(t, statements[1].SQL, `WHERE install_date >= '2020-02-01'`)
	assert.Contains(t, statements[1].SQL, `COALESCE(ds.segment, 'non_target_device') AS device_segment`)
	assert.Zero(t, statements[1].Args)
}
