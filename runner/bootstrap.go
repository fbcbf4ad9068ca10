package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/envfile"
	"github.com/shibukawa/aggcheck/fixture"
	"github.com/shibukawa/aggcheck/viewbuild"
)

// BootstrapResult records what the bootstrap barrier produced.
type BootstrapResult struct {
	// TableIDs maps every loaded staging table to its full id.
	TableIDs map[string]string
	View     viewbuild.Outcome
}

// Bootstrap loads the fixtures, records the table ids in the env file and rebuilds the view.
// Any stage may be left nil to skip it.
type Bootstrap struct {
	Loader  *fixture.Loader
	Tables  []aggcheck.FixtureTable
	EnvFile string
	View    *viewbuild.Builder
	Logger  *slog.Logger
}

// Load loads every fixture and writes the ids of the tables that did load to the env file.
// A failed table is still an error; the tables that loaded are not rolled back.
func (b *Bootstrap) Load(ctx context.Context) (map[string]string, error) {
	tableIDs, loadErr := b.Loader.LoadAll(ctx, b.Tables)

	if b.EnvFile != "" && len(tableIDs) > 0 {
		if err := envfile.Update(b.EnvFile, envfile.TableUpdates(tableIDs)); err != nil {
			return tableIDs, fmt.Errorf("failed to update env file: %w", err)
		}

		b.logger().Info("Updated env file", "path", b.EnvFile, "tables", len(tableIDs))
	}

	return tableIDs, loadErr
}

// Run executes the stages in order and stops at the first fatal error. A view failure is fatal
// only under the fail policy.
func (b *Bootstrap) Run(ctx context.Context) (*BootstrapResult, error) {
	result := &BootstrapResult{}

	if b.Loader != nil {
		tableIDs, err := b.Load(ctx)
		result.TableIDs = tableIDs

		if err != nil {
			return result, err
		}
	}

	if b.View != nil {
		outcome, err := b.View.Build(ctx)
		result.View = outcome

		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (b *Bootstrap) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}

	return b.Logger
}
