package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
)

type reportOptions struct {
	from     string
	to       string
	showZero bool
	csv      bool
	format   string
}

func newReportCommand(deps Deps) *cobra.Command {
	var opts reportOptions
	cmd := &cobra.Command{
		Use:       "report <kind>",
		Short:     "Aggregate an income or payout report",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, deps, reports.Kind(args[0]), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.from, "from", "", "first day of the window (YYYY-MM-DD)")
	flags.StringVar(&opts.to, "to", "", "last day of the window (YYYY-MM-DD)")
	flags.BoolVar(&opts.showZero, "show-zero", false, "include payout rows with a zero balance")
	flags.BoolVar(&opts.csv, "csv", false, "write CSV instead of a table")
	flags.StringVar(&opts.format, "format", "raw", `amount format, "raw" or "formatted"`)
	return cmd
}

func kindNames() []string {
	kinds := reports.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func runReport(cmd *cobra.Command, deps Deps, kind reports.Kind, opts reportOptions) error {
	format, err := deps.format(opts.format)
	if err != nil {
		return err
	}
	result, err := deps.Reports.Run(cmd.Context(), reports.Request{
		Kind:            kind,
		From:            opts.from,
		To:              opts.to,
		ShowZeroBalance: opts.showZero,
	})
	if err != nil {
		return err
	}
	def, _ := reports.Lookup(kind)
	out := cmd.OutOrStdout()
	for _, s := range result.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", s.MemberID, s.Reason)
	}
	if opts.csv {
		return export.WriteReport(out, def, result.Rows, format)
	}

	tw := newTable(out)
	header := make([]string, len(def.Columns))
	for i, col := range def.Columns {
		header[i] = col.Label
	}
	writeCells(tw, header)
	cells := make([]string, len(def.Columns))
	for _, row := range result.Rows {
		for i, col := range def.Columns {
			if col.Numeric {
				cells[i] = format.Amount(col.Amount(row))
			} else {
				cells[i] = col.Text(row)
			}
		}
		writeCells(tw, cells)
	}
	for i, col := range def.Columns {
		switch {
		case col.Numeric:
			cells[i] = format.Amount(col.Amount(result.Totals))
		case i == 0:
			cells[i] = "TOTAL"
		default:
			cells[i] = ""
		}
	}
	writeCells(tw, cells)
	return tw.Flush()
}
