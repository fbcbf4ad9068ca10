package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool
	Stdout  io.Writer
	Logger  *slog.Logger
}

// CLI represents the command-line interface
var CLI struct {
	Config    string       `help:"Configuration file path" default:"aggcheck.yaml" type:"path"`
	Verbose   bool         `help:"Enable verbose output" short:"v"`
	Quiet     bool         `help:"Suppress output" short:"q"`
	Load      LoadCmd      `cmd:"" help:"Load fixtures into the staging tables and update the env file"`
	View      ViewCmd      `cmd:"" help:"Create or replace the reporting view"`
	Bootstrap BootstrapCmd `cmd:"" help:"Load fixtures, then build the view"`
	Check     CheckCmd     `cmd:"" help:"Run the integrity rules"`
	Rules     RulesCmd     `cmd:"" help:"List or export the rule catalog"`
	Query     QueryCmd     `cmd:"" help:"Run an ad-hoc query through the audited executor"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintf(ctx.Stdout, "aggcheck %s\n", version)
	return err
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("aggcheck"),
		kong.Description("Data quality checks for the app install warehouse tables."),
		kong.UsageOnError(),
	)

	logger := newLogger(CLI.Verbose, CLI.Quiet)
	slog.SetDefault(logger)

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
		Quiet:   CLI.Quiet,
		Stdout:  os.Stdout,
		Logger:  logger,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose, quiet bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	} else if quiet {
		logLevel = slog.LevelWarn
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}

			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}

			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000

	return fmt.Sprintf("%s.%03dZ", base, ms)
}
