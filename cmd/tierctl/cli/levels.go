package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tierline/tierline/internal/hierarchy"
	"github.com/tierline/tierline/internal/reports/export"
)

type levelsOptions struct {
	root   string
	level  string
	depth  int
	csv    bool
	format string
}

func newLevelsCommand(deps Deps) *cobra.Command {
	var opts levelsOptions
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the downline of a member level by level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLevels(cmd, deps, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.root, "root", "", "public member id of the root")
	flags.StringVar(&opts.level, "level", "all", `level to print, "all" or a depth`)
	flags.IntVar(&opts.depth, "depth", 0, "maximum depth to expand (0 uses the configured default)")
	flags.BoolVar(&opts.csv, "csv", false, "write CSV instead of a table")
	flags.StringVar(&opts.format, "format", "raw", `amount format, "raw" or "formatted"`)
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

func runLevels(cmd *cobra.Command, deps Deps, opts levelsOptions) error {
	sel, err := hierarchy.ParseSelector(opts.level)
	if err != nil {
		return err
	}
	format, err := deps.format(opts.format)
	if err != nil {
		return err
	}
	report, err := deps.Levels.Build(cmd.Context(), hierarchy.Request{RootID: opts.root, MaxDepth: opts.depth})
	if err != nil {
		return err
	}
	nodes := report.Select(sel)
	out := cmd.OutOrStdout()
	if opts.csv {
		return export.WriteLevels(out, nodes, format)
	}

	tw := newTable(out)
	writeCells(tw, export.LevelHeader)
	for _, n := range nodes {
		writeCells(tw, []string{strconv.Itoa(n.Depth), n.MemberID, n.Name, n.ReferrerID, string(n.Status), format.Amount(n.BusinessVolume)})
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, lvl := range report.Levels {
		if !sel.All && lvl.Depth != sel.Depth {
			continue
		}
		fmt.Fprintf(out, "level %d: %d members, business volume %s\n", lvl.Depth, lvl.Count, format.Amount(lvl.BusinessVolume))
	}
	if report.Truncated {
		fmt.Fprintf(cmd.ErrOrStderr(), "tree truncated at depth %d\n", report.MaxDepth)
	}
	return nil
}
