// Package viewbuild (re)creates the derived reporting view over the staging tables.
package viewbuild

import (
	"context"
	"log/slog"

	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/executor"
	"github.com/shibukawa/aggcheck/sqlgen"
)

// viewBody is the SELECT behind the view. Literals are inlined because DDL takes no parameters.
const viewBody = `
WITH agg AS (
    SELECT app_id, install_date, device_model, installs
    FROM {{ table "agg_data" }}
    WHERE install_date >= {{ lit .ViewDateFloor }}
),
dev_seg AS (
    SELECT segment, app_short, platform, UPPER(device_model) AS device_model
    FROM {{ table "device_segments" }}
    WHERE ua_team = {{ lit .DeviceUATeam }}
)
SELECT
    agg.install_date,
    agg.device_model,
    an.app_name,
    COALESCE(ds.segment, {{ lit .Fallback }}) AS device_segment,
    agg.installs
FROM agg
INNER JOIN {{ table "app_names" }} AS an
    ON agg.app_id = an.app_id
LEFT JOIN dev_seg AS ds
    ON agg.device_model IS NOT NULL
    AND an.platform = ds.platform
    AND an.app_name = ds.app_short
    AND ds.device_model = UPPER(agg.device_model)
LEFT JOIN {{ table "geo_segments" }} AS geo
    ON an.platform = geo.platform
    AND geo.ua_team = {{ lit .GeoUATeam }}`

// Outcome describes a view build. Err holds an error swallowed under the warn policy.
type Outcome struct {
	View    string
	Created bool
	Err     error
}

// Builder issues the view DDL through the executor.
type Builder struct {
	exec       *executor.Executor
	name       string
	thresholds aggcheck.Thresholds
	onError    string
	logger     *slog.Logger
}

// New creates a builder for the configured view.
func New(exec *executor.Executor, cfg *aggcheck.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		exec:       exec,
		name:       cfg.ViewName(),
		thresholds: cfg.Thresholds,
		onError:    cfg.View.OnError,
		logger:     logger,
	}
}

// Statements renders the DDL that Build issues.
func (b *Builder) Statements() ([]sqlgen.Query, error) {
	builder := b.exec.Builder()

	body, err := builder.Render("view "+b.name, viewBody, map[string]any{
		"ViewDateFloor": b.thresholds.ViewDateFloor,
		"DeviceUATeam":  b.thresholds.DeviceUATeam,
		"GeoUATeam":     b.thresholds.GeoUATeam,
		"Fallback":      aggcheck.FallbackSegment,
	})
	if err != nil {
		return nil, err
	}

	return builder.CreateView(b.name, body)
}

// Build replaces the view. Under the warn policy a failure is logged and reported in the
// outcome only; under the fail policy it is also returned as a *ViewBuildError.
func (b *Builder) Build(ctx context.Context) (Outcome, error) {
	outcome := Outcome{View: b.name}

	err := b.build(ctx)
	if err == nil {
		outcome.Created = true
		b.logger.Info("View created", "view", b.name)

		return outcome, nil
	}

	viewErr := &aggcheck.ViewBuildError{View: b.name, Err: err}
	outcome.Err = viewErr

	if b.onError == aggcheck.ViewOnErrorFail {
		return outcome, viewErr
	}

	b.logger.Error("View creation failed, continuing", "view", b.name, "error", viewErr)

	return outcome, nil
}

func (b *Builder) build(ctx context.Context) error {
	statements, err := b.Statements()
	if err != nil {
		return err
	}

	for _, q := range statements {
		if err := b.exec.Exec(ctx, q, "Create view "+b.name); err != nil {
			return err
		}
	}

	return nil
}
