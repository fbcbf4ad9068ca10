// Package executor runs queries with a deadline, records them to the audit sink and wraps
// every failure into a QueryExecutionError.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/audit"
	"github.com/shibukawa/aggcheck/sqlgen"
	"github.com/shibukawa/aggcheck/warehouse"
)

// Options configures an Executor.
type Options struct {
	Timeout time.Duration
	Verbose bool
	Sink    audit.Sink
	Logger  *slog.Logger
	Clock   clockwork.Clock
}

// Executor is the single path every rule and the view builder use to reach the warehouse.
type Executor struct {
	client  warehouse.Client
	timeout time.Duration
	verbose bool
	sink    audit.Sink
	logger  *slog.Logger
	clock   clockwork.Clock
}

// New creates an executor. Zero options fall back to a 60s timeout, a Nop sink, the default
// logger and the real clock.
func New(client warehouse.Client, opts Options) *Executor {
	e := &Executor{
		client:  client,
		timeout: opts.Timeout,
		verbose: opts.Verbose,
		sink:    opts.Sink,
		logger:  opts.Logger,
		clock:   opts.Clock,
	}

	if e.timeout <= 0 {
		e.timeout = 60 * time.Second
	}

	if e.sink == nil {
		e.sink = audit.Nop{}
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}

	return e
}

// Client returns the warehouse the executor talks to.
func (e *Executor) Client() warehouse.Client { return e.client }

// Builder returns the statement builder of the warehouse.
func (e *Executor) Builder() *sqlgen.Builder { return e.client.Builder() }

// Run executes a query under the per-query deadline and records it, rows included, whether
// it succeeded or not.
func (e *Executor) Run(ctx context.Context, q sqlgen.Query, description string) (*warehouse.ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := e.clock.Now()
	rs, err := e.client.Query(ctx, q)
	elapsed := e.clock.Since(started)

	step := e.newStep(q, description, started, elapsed)

	if err != nil {
		kind := classify(ctx, err)
		step.Error = err.Error()
		e.record(ctx, step)

		return nil, &aggcheck.QueryExecutionError{Description: description, SQL: q.SQL, Kind: kind, Err: err}
	}

	step.Columns = rs.Columns()
	step.Rows = rs.Plain()
	step.RowCount = rs.Len()

	if err := e.record(ctx, step); err != nil {
		return nil, &aggcheck.QueryExecutionError{Description: description, SQL: q.SQL, Kind: aggcheck.QueryErrorInternal, Err: err}
	}

	e.logger.Debug("query finished", "step", description, "rows", rs.Len(), "duration", elapsed)

	return rs, nil
}

// Exec executes a statement without result rows under the same deadline and audit rules.
func (e *Executor) Exec(ctx context.Context, q sqlgen.Query, description string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := e.clock.Now()
	err := e.client.Exec(ctx, q)
	step := e.newStep(q, description, started, e.clock.Since(started))

	if err != nil {
		kind := classify(ctx, err)
		step.Error = err.Error()
		e.record(ctx, step)

		return &aggcheck.QueryExecutionError{Description: description, SQL: q.SQL, Kind: kind, Err: err}
	}

	if err := e.record(ctx, step); err != nil {
		return &aggcheck.QueryExecutionError{Description: description, SQL: q.SQL, Kind: aggcheck.QueryErrorInternal, Err: err}
	}

	return nil
}

func (e *Executor) newStep(q sqlgen.Query, description string, started time.Time, elapsed time.Duration) audit.Step {
	if e.verbose {
		description += "\n" + q.SQL
	}

	return audit.Step{
		Description: description,
		SQL:         q.String(),
		Args:        q.Args,
		StartedAt:   started,
		Duration:    elapsed,
	}
}

// record stores the step with a context that outlives the query deadline.
func (e *Executor) record(ctx context.Context, step audit.Step) error {
	err := e.sink.Record(context.WithoutCancel(ctx), step)
	if err != nil {
		e.logger.Warn("failed to record audit step", "step", step.Description, "error", err)
	}

	return err
}

func classify(ctx context.Context, err error) aggcheck.QueryErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return aggcheck.QueryErrorTimeout
	case errors.Is(err, warehouse.ErrWarehouse):
		return aggcheck.QueryErrorWarehouse
	default:
		return aggcheck.QueryErrorInternal
	}
}
