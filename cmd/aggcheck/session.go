package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/audit"
	"github.com/shibukawa/aggcheck/executor"
	"github.com/shibukawa/aggcheck/fixture"
	"github.com/shibukawa/aggcheck/runner"
	"github.com/shibukawa/aggcheck/viewbuild"
	"github.com/shibukawa/aggcheck/warehouse"
)

// sessionOptions are command flags that override the configuration.
type sessionOptions struct {
	Timeout  time.Duration
	AuditDir string
}

// session is one authenticated warehouse client with its executor.
type session struct {
	cfg     *aggcheck.Config
	env     *aggcheck.Environment
	baseDir string
	client  warehouse.Client
	exec    *executor.Executor
	audit   *audit.Dir
	logger  *slog.Logger
}

// loadConfig reads the configuration and resolves relative paths against its directory.
func loadConfig(appCtx *Context) (*aggcheck.Config, string, error) {
	cfg, err := aggcheck.LoadConfig(appCtx.Config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, filepath.Dir(appCtx.Config), nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(baseDir, path)
}

// openSession loads the configuration and environment and connects to the warehouse.
// Missing environment variables fail here, before any table is touched.
func openSession(ctx context.Context, appCtx *Context, opts sessionOptions) (*session, error) {
	cfg, baseDir, err := loadConfig(appCtx)
	if err != nil {
		return nil, err
	}

	env, err := aggcheck.LoadEnvironment(cfg.DialectValue(), os.LookupEnv)
	if err != nil {
		return nil, err
	}

	logger := appCtx.logger()

	client, err := warehouse.Open(ctx, cfg, env, logger)
	if err != nil {
		return nil, err
	}

	if err := client.EnsureDataset(ctx); err != nil {
		client.Close()
		return nil, err
	}

	timeout := cfg.Execution.QueryTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	sinks := audit.Multi{audit.NewLog(logger)}

	s := &session{cfg: cfg, env: env, baseDir: baseDir, client: client, logger: logger}

	auditDir := cfg.Audit.Dir
	if opts.AuditDir != "" {
		auditDir = opts.AuditDir
	} else {
		auditDir = resolve(baseDir, auditDir)
	}

	if auditDir != "" {
		dir, err := audit.NewDir(auditDir)
		if err != nil {
			client.Close()
			return nil, err
		}

		s.audit = dir
		sinks = append(sinks, dir)

		logger.Info("Recording query audit", "run_id", dir.RunID(), "path", dir.Path())
	}

	s.exec = executor.New(client, executor.Options{
		Timeout: timeout,
		Verbose: appCtx.Verbose || cfg.Execution.Verbose,
		Sink:    sinks,
		Logger:  logger,
	})

	return s, nil
}

func (s *session) Close() error {
	return s.client.Close()
}

// bootstrap returns the load and view stages for this session.
func (s *session) bootstrap(load, view bool) *runner.Bootstrap {
	b := &runner.Bootstrap{
		Tables:  s.cfg.Fixtures.Tables,
		EnvFile: resolve(s.baseDir, s.cfg.EnvFile),
		Logger:  s.logger,
	}

	if load {
		loader := fixture.NewLoader(s.client, s.env, resolve(s.baseDir, s.cfg.Fixtures.Dir), s.logger)
		loader.SetLimit(s.cfg.Execution.Parallel)
		b.Loader = loader
	}

	if view {
		b.View = viewbuild.New(s.exec, s.cfg, s.logger)
	}

	return b
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}

	return c.Logger
}
