package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shibukawa/aggcheck/report"
	"github.com/shibukawa/aggcheck/rules"
)

// QueryCmd represents the query command
type QueryCmd struct {
	SQL    string `arg:"" optional:"" help:"SQL to execute. {{ table \"name\" }} expands to the qualified table"`
	File   string `help:"Read the SQL from this file" short:"f" type:"existingfile"`
	Format string `help:"Output format" enum:"table,json,csv,yaml,markdown" default:"table"`
}

// Run executes the query command
func (cmd *QueryCmd) Run(ctx *Context) error {
	text, err := cmd.text()
	if err != nil {
		return err
	}

	format, err := report.ParseOutputFormat(cmd.Format)
	if err != nil {
		return err
	}

	bg := context.Background()

	s, err := openSession(bg, ctx, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	q, err := s.exec.Builder().Render("query", text, rules.ParamsFromConfig(s.cfg))
	if err != nil {
		return err
	}

	rs, err := s.exec.Run(bg, q, "Ad-hoc query")
	if err != nil {
		return err
	}

	return report.WriteRows(ctx.Stdout, rs, format)
}

func (cmd *QueryCmd) text() (string, error) {
	switch {
	case cmd.SQL != "" && cmd.File != "":
		return "", ErrQueryAndFileBoth
	case cmd.File != "":
		data, err := os.ReadFile(cmd.File)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", cmd.File, err)
		}

		return string(data), nil
	case cmd.SQL != "":
		return cmd.SQL, nil
	default:
		return "", ErrNoQuery
	}
}
