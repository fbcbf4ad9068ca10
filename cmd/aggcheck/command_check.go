package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/shibukawa/aggcheck/report"
	"github.com/shibukawa/aggcheck/rules"
	"github.com/shibukawa/aggcheck/runner"
)

// CheckCmd represents the check command
type CheckCmd struct {
	RunPattern  string        `help:"Run only rules whose name matches the regular expression" short:"r" name:"run"`
	Parallel    int           `help:"Number of rules evaluated at once (0 uses the configuration)" default:"0"`
	Timeout     time.Duration `help:"Per query timeout (0 uses the configuration)" default:"0s"`
	Bootstrap   bool          `help:"Load fixtures and rebuild the view before running the rules"`
	AuditDir    string        `help:"Write every query with its rows into this directory" type:"path"`
	JUnit       string        `help:"Write a JUnit XML report to this file" type:"path" name:"junit"`
	HTML        string        `help:"Write an HTML report to this file" type:"path" name:"html"`
	JSON        string        `help:"Write a JSON report to this file" type:"path" name:"json"`
	MetricsFile string        `help:"Write Prometheus textfile metrics to this file" type:"path"`
	Format      string        `help:"Console output format" enum:"table,json" default:"table"`
}

// Run executes the check command
func (cmd *CheckCmd) Run(ctx *Context) error {
	var pattern *regexp.Regexp

	if cmd.RunPattern != "" {
		var err error

		pattern, err = regexp.Compile(cmd.RunPattern)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRunPattern, err)
		}
	}

	bg := context.Background()

	s, err := openSession(bg, ctx, sessionOptions{Timeout: cmd.Timeout, AuditDir: cmd.AuditDir})
	if err != nil {
		return err
	}
	defer s.Close()

	catalog, err := rules.NewCatalog(s.cfg)
	if err != nil {
		return err
	}

	parallel := s.cfg.Execution.Parallel
	if cmd.Parallel > 0 {
		parallel = cmd.Parallel
	}

	r := runner.New(s.exec, runner.Options{
		Parallel:         parallel,
		Pattern:          pattern,
		MaxViolationRows: s.cfg.Execution.MaxViolationRows,
		Logger:           s.logger,
	})

	if cmd.Bootstrap {
		r.SetBootstrap(s.bootstrap(true, true))
	}

	summary, err := r.Run(bg, catalog)
	if err != nil {
		return err
	}

	if err := cmd.writeReports(summary); err != nil {
		return err
	}

	if err := cmd.printSummary(ctx, summary); err != nil {
		return err
	}

	if !summary.OK() {
		return fmt.Errorf("%w: %d failed, %d errored", ErrChecksFailed, summary.Failed, summary.Errored)
	}

	return nil
}

func (cmd *CheckCmd) printSummary(ctx *Context, summary *runner.Summary) error {
	switch cmd.Format {
	case "json":
		return report.WriteJSON(ctx.Stdout, summary)
	case "table", "":
		if ctx.Quiet {
			return nil
		}

		report.WriteTable(ctx.Stdout, summary)
		summary.PrintSummary(ctx.Stdout)

		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCheckFormat, cmd.Format)
	}
}

func (cmd *CheckCmd) writeReports(summary *runner.Summary) error {
	writers := []struct {
		path  string
		write func(io.Writer, *runner.Summary) error
	}{
		{cmd.JUnit, report.WriteJUnit},
		{cmd.HTML, report.WriteHTML},
		{cmd.JSON, report.WriteJSON},
	}

	for _, w := range writers {
		if w.path == "" {
			continue
		}

		if err := writeFile(w.path, func(f io.Writer) error { return w.write(f, summary) }); err != nil {
			return err
		}
	}

	if cmd.MetricsFile != "" {
		return report.WriteMetrics(cmd.MetricsFile, summary)
	}

	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return f.Close()
}
