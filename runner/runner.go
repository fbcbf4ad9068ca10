// Package runner executes the rule catalog in parallel and summarizes the outcome.
package runner

import (
	"context"
	"log/slog"
	"regexp"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shibukawa/aggcheck/executor"
	"github.com/shibukawa/aggcheck/rules"
)

// Options configures a Runner.
type Options struct {
	// Parallel bounds the number of rules in flight. Zero means NumCPU.
	Parallel int
	// Timeout bounds one rule including all of its queries. Zero leaves only the per-query deadline.
	Timeout time.Duration
	// Pattern selects rules by name. Nil runs every rule.
	Pattern          *regexp.Regexp
	MaxViolationRows int
	Logger           *slog.Logger
	Clock            clockwork.Clock
}

// RuleResult is a rule outcome with its wall time.
type RuleResult struct {
	rules.Result
	Duration time.Duration
}

// Summary is the outcome of one run.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Warned   int
	Errored  int
	Skipped  int
	Duration time.Duration
	// StartedAt is when the run began, taken from the runner clock.
	StartedAt time.Time
	Results   []RuleResult
	Bootstrap *BootstrapResult
}

// OK reports whether no rule failed or errored.
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

// Runner evaluates rules through a shared executor.
type Runner struct {
	exec       *executor.Executor
	bootstrap  *Bootstrap
	workerPool chan struct{} // semaphore
	options    Options
	logger     *slog.Logger
	clock      clockwork.Clock
}

// New creates a runner.
func New(exec *executor.Executor, options Options) *Runner {
	if options.Parallel <= 0 {
		options.Parallel = runtime.NumCPU()
	}

	if options.MaxViolationRows <= 0 {
		options.MaxViolationRows = 50
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}

	return &Runner{
		exec:       exec,
		workerPool: make(chan struct{}, options.Parallel),
		options:    options,
		logger:     options.Logger,
		clock:      options.Clock,
	}
}

// SetBootstrap makes Run load fixtures and build the view before any rule runs.
func (r *Runner) SetBootstrap(b *Bootstrap) {
	r.bootstrap = b
}

// Run executes the selected rules. Rule failures never abort the run; only a failed bootstrap
// does, in which case no rule is executed.
func (r *Runner) Run(ctx context.Context, catalog *rules.Catalog) (*Summary, error) {
	startTime := r.clock.Now()
	summary := &Summary{StartedAt: startTime}

	if r.bootstrap != nil {
		result, err := r.bootstrap.Run(ctx)
		summary.Bootstrap = result

		if err != nil {
			summary.Duration = r.clock.Since(startTime)
			return summary, err
		}
	}

	sel := catalog.Select(r.options.Pattern)
	params := catalog.Params()

	results := make(chan RuleResult, len(sel.Run))

	var wg sync.WaitGroup

	for _, rule := range sel.Run {
		wg.Add(1)

		go func(rule *rules.Rule) {
			defer wg.Done()

			results <- r.executeRuleWithTimeout(ctx, rule, params)
		}(rule)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		summary.Results = append(summary.Results, result)
	}

	for _, rule := range sel.Skipped {
		summary.Results = append(summary.Results, RuleResult{
			Result: rules.Result{Rule: rule, Status: rules.StatusSkipped, Message: "skipped by configuration"},
		})
	}

	slices.SortFunc(summary.Results, func(a, b RuleResult) int { return a.Rule.ID - b.Rule.ID })

	for _, result := range summary.Results {
		summary.Total++

		switch result.Status {
		case rules.StatusPassed:
			summary.Passed++
		case rules.StatusFailed:
			summary.Failed++
		case rules.StatusWarned:
			summary.Warned++
		case rules.StatusErrored:
			summary.Errored++
		case rules.StatusSkipped:
			summary.Skipped++
		}
	}

	summary.Duration = r.clock.Since(startTime)

	return summary, nil
}

// executeRuleWithTimeout evaluates one rule under the semaphore and the rule deadline.
func (r *Runner) executeRuleWithTimeout(ctx context.Context, rule *rules.Rule, params rules.Params) RuleResult {
	select {
	case r.workerPool <- struct{}{}:
		defer func() { <-r.workerPool }()
	case <-ctx.Done():
		return RuleResult{Result: rules.Result{
			Rule:    rule,
			Status:  rules.StatusErrored,
			Message: ctx.Err().Error(),
			Err:     ctx.Err(),
		}}
	}

	ruleCtx := ctx

	if r.options.Timeout > 0 {
		var cancel context.CancelFunc

		ruleCtx, cancel = context.WithTimeout(ctx, r.options.Timeout)
		defer cancel()
	}

	startTime := r.clock.Now()
	result := rule.Evaluate(ruleCtx, r.exec, params, r.options.MaxViolationRows)
	elapsed := r.clock.Since(startTime)

	r.logResult(rule, result)

	return RuleResult{Result: result, Duration: elapsed}
}

func (r *Runner) logResult(rule *rules.Rule, result rules.Result) {
	attrs := []any{"id", rule.ID, "rule", rule.Name, "status", result.Status}

	switch result.Status {
	case rules.StatusPassed:
		r.logger.Debug("Rule passed", attrs...)
	case rules.StatusErrored:
		r.logger.Error("Rule errored", append(attrs, "error", result.Err)...)
	default:
		if rule.Informational {
			r.logger.Warn("Informational rule reported rows", append(attrs, "rows", result.Lines)...)
			return
		}

		r.logger.Info("Rule did not pass", append(attrs, "violations", result.Violations)...)
	}
}
