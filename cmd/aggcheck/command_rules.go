package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/report"
	"github.com/shibukawa/aggcheck/rules"
	"github.com/shibukawa/aggcheck/sqlgen"
)

// RulesCmd represents the rules command
type RulesCmd struct {
	Export string `help:"Export the catalog with rendered SQL as YAML to this file ('-' for stdout)"`
}

// Run executes the rules command
func (cmd *RulesCmd) Run(ctx *Context) error {
	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	catalog, err := rules.NewCatalog(cfg)
	if err != nil {
		return err
	}

	if cmd.Export == "" {
		listRules(ctx.Stdout, catalog)
		return nil
	}

	// Rendering needs no connection; fall back to placeholders when the environment is not set.
	builder, err := sqlgen.New(cfg.DialectValue(),
		cmp.Or(os.Getenv(aggcheck.EnvProjectID), "project"),
		cmp.Or(os.Getenv(aggcheck.EnvDatasetID), "dataset"))
	if err != nil {
		return err
	}

	if cmd.Export == "-" {
		return report.ExportCatalog(ctx.Stdout, catalog, builder)
	}

	return writeFile(cmd.Export, func(w io.Writer) error {
		return report.ExportCatalog(w, catalog, builder)
	})
}

func listRules(w io.Writer, catalog *rules.Catalog) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"#", "Rule", "Story", "Severity", "Pass", "Mode"})

	for _, r := range catalog.Rules() {
		mode := ""

		switch {
		case r.WarnOnly:
			mode = "warn-only"
		case r.Informational:
			mode = "informational"
		}

		table.Append([]string{strconv.Itoa(r.ID), r.Name, string(r.Story), string(r.Severity), r.Pass, mode})
	}

	table.Render()
	fmt.Fprintf(w, "%d rules\n", len(catalog.Rules()))
}
