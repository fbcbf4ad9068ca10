package runner_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/executor"
	"github.com/shibukawa/aggcheck/fixture"
	"github.com/shibukawa/aggcheck/rules"
	"github.com/shibukawa/aggcheck/runner"
	"github.com/shibukawa/aggcheck/testhelper"
	"github.com/shibukawa/aggcheck/viewbuild"
	"github.com/shibukawa/aggcheck/warehouse"
)

type fixtureSetup struct {
	client  *warehouse.SQLClient
	exec    *executor.Executor
	cfg     *aggcheck.Config
	dir     string
	envFile string
	clock   *clockwork.FakeClock
}

func newSetup(t *testing.T, data testhelper.Dataset) *fixtureSetup {
	t.Helper()

	dir := t.TempDir()
	testhelper.WriteFixtures(t, dir, data)

	clock := clockwork.NewFakeClock()
	client := testhelper.NewSQLite(t)

	return &fixtureSetup{
		client:  client,
		exec:    executor.New(client, executor.Options{Clock: clock}),
		cfg:     aggcheck.DefaultConfig(),
		dir:     dir,
		envFile: filepath.Join(dir, ".env"),
		clock:   clock,
	}
}

func (s *fixtureSetup) bootstrap() *runner.Bootstrap {
	return &runner.Bootstrap{
		Loader:  fixture.NewLoader(s.client, testhelper.Environment(), s.dir, nil),
		Tables:  s.cfg.Fixtures.Tables,
		EnvFile: s.envFile,
		View:    viewbuild.New(s.exec, s.cfg, nil),
	}
}

func (s *fixtureSetup) run(t *testing.T, opts runner.Options, withBootstrap bool) (*runner.Summary, error) {
	t.Helper()

	catalog, err := rules.NewCatalog(s.cfg)
	assert.NoError(t, err)

	if opts.Clock == nil {
		opts.Clock = s.clock
	}

	r := runner.New(s.exec, opts)
	if withBootstrap {
		r.SetBootstrap(s.bootstrap())
	}

	return r.Run(context.Background(), catalog)
}

func TestRunner_CleanRun(t *testing.T) {
	s := newSetup(t, testhelper.CleanDataset())

	summary, err := s.run(t, runner.Options{Parallel: 4}, true)
	assert.NoError(t, err)

	assert.True(t, summary.OK())
	assert.Equal(t, 22, summary.Total)
	assert.Equal(t, 22, summary.Passed)
	assert.NotZero(t, summary.Bootstrap)
	assert.True(t, summary.Bootstrap.View.Created)
	assert.Equal(t, 4, len(summary.Bootstrap.TableIDs))

	for i, result := range summary.Results {
		assert.Equal(t, i+1, result.Rule.ID)
	}

	env, err := godotenv.Read(s.envFile)
	assert.NoError(t, err)
	assert.Equal(t, "test-project.test_dataset.agg_data", env["BIGQUERY_TABLE_AGG_DATA_ID"])
	assert.Equal(t, "test-project.test_dataset.geo_segments", env["BIGQUERY_TABLE_GEO_SEGMENTS_ID"])
}

func TestRunner_Counts(t *testing.T) {
	data := testhelper.CleanDataset().
		// rule 5 fails, rule 1 fails
		With(aggcheck.TableAggData, testhelper.AggRow(1, "2019-12-31", "X", 5)).
		// rule 21 warns
		With(aggcheck.TableAggData, testhelper.AggRow(1, "2020-01-10", "PIXEL 7", 5))

	s := newSetup(t, data)
	s.cfg.Rules.Skip = []string{"agg_data_positive_installs"}

	summary, err := s.run(t, runner.Options{Parallel: 2}, true)
	assert.NoError(t, err)

	assert.False(t, summary.OK())
	assert.Equal(t, 22, summary.Total)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Warned)
	assert.Equal(t, 0, summary.Errored)
	assert.Equal(t, summary.Total, summary.Passed+summary.Failed+summary.Warned+summary.Errored+summary.Skipped)

	byName := make(map[string]runner.RuleResult)
	for _, result := range summary.Results {
		byName[result.Rule.Name] = result
	}

	assert.Equal(t, rules.StatusFailed, byName["agg_data_date_range"].Status)
	assert.Equal(t, rules.StatusFailed, byName["device_models_match"].Status)
	assert.Equal(t, rules.StatusWarned, byName["view_date_floor_discrepancy"].Status)
	assert.Equal(t, rules.StatusSkipped, byName["agg_data_positive_installs"].Status)
}

func TestRunner_Pattern(t *testing.T) {
	s := newSetup(t, testhelper.CleanDataset())

	summary, err := s.run(t, runner.Options{Pattern: regexp.MustCompile(`^app_names_`)}, true)
	assert.NoError(t, err)

	assert.Equal(t, 3, summary.Total)

	var names []string
	for _, result := range summary.Results {
		names = append(names, result.Rule.Name)
	}

	assert.Equal(t, []string{"app_names_consistency", "app_names_no_duplicate_ids", "app_names_platform_consistency"}, names)
}

func TestRunner_ErrorsDoNotAbort(t *testing.T) {
	s := newSetup(t, testhelper.CleanDataset())
	testhelper.Seed(t, s.client, testhelper.CleanDataset())

	// no bootstrap: the view does not exist
	summary, err := s.run(t, runner.Options{}, false)
	assert.NoError(t, err)

	assert.False(t, summary.OK())
	assert.Equal(t, 11, summary.Errored)
	assert.Equal(t, 11, summary.Passed)

	for _, result := range summary.Results {
		if result.Rule.Story == rules.StoryView {
			assert.IsError(t, result.Err, aggcheck.ErrQueryExecution, result.Rule.Name)
		}
	}
}

func TestRunner_BootstrapFailureStopsRun(t *testing.T) {
	s := newSetup(t, testhelper.CleanDataset())
	assert.NoError(t, os.Remove(filepath.Join(s.dir, "app_names.json")))

	summary, err := s.run(t, runner.Options{}, true)
	assert.Error(t, err)
	assert.IsError(t, err, aggcheck.ErrFixtureLoad)

	assert.Zero(t, summary.Results)
	assert.NotZero(t, summary.Bootstrap)
	assert.Equal(t, 3, len(summary.Bootstrap.TableIDs))
	assert.False(t, summary.Bootstrap.View.Created)

	// loaded tables are still recorded
	env, err := godotenv.Read(s.envFile)
	assert.NoError(t, err)
	_, ok := env["BIGQUERY_TABLE_AGG_DATA_ID"]
	assert.True(t, ok)
	_, ok = env["BIGQUERY_TABLE_APP_NAMES_ID"]
	assert.False(t, ok)
}

func TestRunner_ViewFailPolicy(t *testing.T) {
	cfg := aggcheck.DefaultConfig()
	cfg.View.OnError = aggcheck.ViewOnErrorFail

	// duckdb rejects a view over missing tables
	exec := executor.New(testhelper.NewDuckDB(t), executor.Options{})

	catalog, err := rules.NewCatalog(cfg)
	assert.NoError(t, err)

	r := runner.New(exec, runner.Options{})
	r.SetBootstrap(&runner.Bootstrap{View: viewbuild.New(exec, cfg, nil)})

	summary, err := r.Run(context.Background(), catalog)
	assert.IsError(t, err, aggcheck.ErrViewBuild)
	assert.Zero(t, summary.Results)
	assert.False(t, summary.Bootstrap.View.Created)
}

func TestRunner_CanceledContext(t *testing.T) {
	s := newSetup(t, testhelper.CleanDataset())
	testhelper.Seed(t, s.client, testhelper.CleanDataset())

	catalog, err := rules.NewCatalog(s.cfg)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := runner.New(s.exec, runner.Options{Clock: s.clock}).Run(ctx, catalog)
	assert.NoError(t, err)

	assert.Equal(t, 22, summary.Errored)
}

func TestSummary_PrintSummary(t *testing.T) {
	data := testhelper.CleanDataset().With(aggcheck.TableAggData, testhelper.AggRow(42, "2020-04-01", "PIXEL 7", 1))
	s := newSetup(t, data)

	summary, err := s.run(t, runner.Options{Pattern: regexp.MustCompile(`^(app_names_consistency|agg_data_date_range)$`)}, true)
	assert.NoError(t, err)

	var buf bytes.Buffer
	summary.PrintSummary(&buf)

	assert.Equal(t, "\n"+testhelper.TrimIndent(t, `
		=== Data Quality Summary ===
		PASSED    5 agg_data_date_range
		FAILED    7 app_names_consistency
		        Found app_ids from agg_data missing in app_names:
		        App ID: 42

		Rules: 2 total, 1 passed, 1 failed, 0 warned, 0 errored, 0 skipped
		Violations: 1
		Duration: 0.000s

		Some rules failed! ❌
		`)+"\n", buf.String())
}
