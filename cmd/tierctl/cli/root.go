// Package cli implements the tierctl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/tierline/tierline/internal/hierarchy"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
	"github.com/tierline/tierline/jobs"
)

// LevelBuilder produces level reports.
type LevelBuilder interface {
	Build(ctx context.Context, req hierarchy.Request) (hierarchy.Report, error)
}

// ReportRunner aggregates reports.
type ReportRunner interface {
	Run(ctx context.Context, req reports.Request) (reports.Result, error)
}

// JobQueue enqueues and inspects background exports.
type JobQueue interface {
	Trigger(ctx context.Context, payload jobs.ReportExportPayload) (*asynq.TaskInfo, jobs.ReportExportPayload, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// Deps are the services the commands run against.
type Deps struct {
	Levels  LevelBuilder
	Reports ReportRunner
	Jobs    JobQueue
	Format  export.Format
}

// NewRootCommand assembles the tierctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "tierctl",
		Short:         "Operator tools for the referral program console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLevelsCommand(deps), newReportCommand(deps), newJobsCommand(deps))
	return root
}

func (d Deps) format(mode string) (export.Format, error) {
	parsed, err := export.ParseMode(mode)
	if err != nil {
		return export.Format{}, err
	}
	f := d.Format
	f.Mode = parsed
	return f, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func writeCells(w io.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, cell)
	}
	fmt.Fprintln(w)
}
