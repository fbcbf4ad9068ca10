package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
)

// ViewCmd represents the view command
type ViewCmd struct {
	Print bool `help:"Print the view DDL instead of executing it"`
}

// Run executes the view command
func (cmd *ViewCmd) Run(ctx *Context) error {
	bg := context.Background()

	s, err := openSession(bg, ctx, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	view := s.bootstrap(false, true).View

	if cmd.Print {
		statements, err := view.Statements()
		if err != nil {
			return err
		}

		for _, q := range statements {
			fmt.Fprintf(ctx.Stdout, "%s;\n\n", q.SQL)
		}

		return nil
	}

	outcome, err := view.Build(bg)
	if err != nil {
		return err
	}

	if !ctx.Quiet {
		if outcome.Created {
			fmt.Fprintf(ctx.Stdout, "%s %s\n", color.GreenString("created"), outcome.View)
		} else {
			fmt.Fprintf(ctx.Stdout, "%s %s: %v\n", color.YellowString("not created"), outcome.View, outcome.Err)
		}
	}

	return nil
}

// BootstrapCmd represents the bootstrap command
type BootstrapCmd struct{}

// Run executes the bootstrap command
func (cmd *BootstrapCmd) Run(ctx *Context) error {
	bg := context.Background()

	s, err := openSession(bg, ctx, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.bootstrap(true, true).Run(bg)
	if err != nil {
		return err
	}

	if !ctx.Quiet {
		fmt.Fprintf(ctx.Stdout, "%s %d tables, view %s created: %t\n",
			color.GreenString("bootstrapped"), len(result.TableIDs), result.View.View, result.View.Created)
	}

	return nil
}
