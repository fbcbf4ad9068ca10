// Package fixture loads the JSON fixture files into the staging tables with explicit schemas.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/warehouse"
	"golang.org/x/sync/errgroup"
)

const defaultLimit = 4

// Loader replaces staging tables with the content of fixture files.
type Loader struct {
	client  warehouse.Client
	env     *aggcheck.Environment
	baseDir string
	limit   int
	logger  *slog.Logger
}

// NewLoader creates a loader resolving relative fixture paths against baseDir.
func NewLoader(client warehouse.Client, env *aggcheck.Environment, baseDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{client: client, env: env, baseDir: baseDir, limit: defaultLimit, logger: logger}
}

// SetLimit bounds the number of tables loaded at once by LoadAll.
func (l *Loader) SetLimit(n int) {
	if n > 0 {
		l.limit = n
	}
}

func (l *Loader) path(file string) string {
	if filepath.IsAbs(file) || l.baseDir == "" {
		return file
	}

	return filepath.Clean(filepath.Join(l.baseDir, file))
}

// Read parses and validates a fixture without touching the warehouse.
func (l *Loader) Read(spec aggcheck.FixtureTable) ([]map[string]any, error) {
	path := l.path(spec.File)

	fail := func(err error) ([]map[string]any, error) {
		return nil, &aggcheck.LoadError{Table: spec.Name, File: path, Err: err}
	}

	schema, ok := aggcheck.Schemas[spec.Name]
	if !ok {
		return fail(fmt.Errorf("unknown staging table '%s'", spec.Name))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}

	rows, err := ParseRows(data, schema)
	if err != nil {
		return fail(err)
	}

	return rows, nil
}

// Load replaces the table named by spec with the fixture rows and returns the full table id.
// It blocks until the warehouse finished the load.
func (l *Loader) Load(ctx context.Context, spec aggcheck.FixtureTable) (string, error) {
	rows, err := l.Read(spec)
	if err != nil {
		return "", err
	}

	start := time.Now()

	if err := l.client.Load(ctx, aggcheck.Schemas[spec.Name], rows); err != nil {
		return "", &aggcheck.LoadError{Table: spec.Name, File: l.path(spec.File), Err: err}
	}

	tableID := l.env.FullTableID(spec.Name)
	l.logger.Info("Loaded fixture", "table", tableID, "rows", len(rows), "duration", time.Since(start))

	return tableID, nil
}

// LoadAll loads the tables concurrently. Tables are independent, a failure leaves the tables
// already loaded in place. The returned map holds the ids of every table that did load, the
// error joins every failure in spec order.
func (l *Loader) LoadAll(ctx context.Context, specs []aggcheck.FixtureTable) (map[string]string, error) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make(map[string]string, len(specs))
		errs    = make([]error, len(specs))
	)

	g.SetLimit(l.limit)

	for i, spec := range specs {
		g.Go(func() error {
			tableID, err := l.Load(ctx, spec)
			if err != nil {
				errs[i] = err
				return err
			}

			mu.Lock()
			results[spec.Name] = tableID
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Validate reads every fixture and reports all failures without loading anything.
func (l *Loader) Validate(specs []aggcheck.FixtureTable) (map[string]int, error) {
	counts := make(map[string]int, len(specs))

	var errs []error

	for _, spec := range specs {
		rows, err := l.Read(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		counts[spec.Name] = len(rows)
	}

	return counts, errors.Join(errs...)
}
