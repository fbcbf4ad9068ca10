package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/fatih/color"
	"github.com/shibukawa/aggcheck/fixture"
)

// LoadCmd represents the load command
type LoadCmd struct {
	Validate bool `help:"Only parse and validate the fixture files, without connecting to the warehouse"`
}

// Run executes the load command
func (cmd *LoadCmd) Run(ctx *Context) error {
	if cmd.Validate {
		return cmd.validate(ctx)
	}

	bg := context.Background()

	s, err := openSession(bg, ctx, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	tableIDs, err := s.bootstrap(true, false).Load(bg)
	if !ctx.Quiet {
		for _, table := range slices.Sorted(maps.Keys(tableIDs)) {
			fmt.Fprintf(ctx.Stdout, "%s %s\n", color.GreenString("loaded"), tableIDs[table])
		}
	}

	return err
}

func (cmd *LoadCmd) validate(ctx *Context) error {
	cfg, baseDir, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	loader := fixture.NewLoader(nil, nil, resolve(baseDir, cfg.Fixtures.Dir), ctx.logger())

	counts, err := loader.Validate(cfg.Fixtures.Tables)
	if !ctx.Quiet {
		for _, table := range slices.Sorted(maps.Keys(counts)) {
			fmt.Fprintf(ctx.Stdout, "%s %s (%d rows)\n", color.GreenString("valid"), table, counts[table])
		}
	}

	return err
}
