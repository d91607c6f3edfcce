package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tierline/tierline/jobs"
)

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background report exports",
	}

	var payload jobs.ReportExportPayload
	trigger := &cobra.Command{
		Use:   "trigger <kind>",
		Short: "Queue a CSV export of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Jobs == nil {
				return errors.New("jobs: queue not configured")
			}
			payload.Kind = args[0]
			info, queued, err := deps.Jobs.Trigger(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued export %s (task %s)\n", queued.ExportID, info.ID)
			return nil
		},
	}
	trigger.Flags().StringVar(&payload.From, "from", "", "first day of the window (YYYY-MM-DD)")
	trigger.Flags().StringVar(&payload.To, "to", "", "last day of the window (YYYY-MM-DD)")
	trigger.Flags().BoolVar(&payload.ShowZeroBalance, "show-zero", false, "include payout rows with a zero balance")
	trigger.Flags().StringVar(&payload.Format, "format", "", `amount format, "raw" or "formatted"`)

	var asJSON bool
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Jobs == nil {
				return errors.New("jobs: queue not configured")
			}
			stats, err := deps.Jobs.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			tw := newTable(out)
			writeCells(tw, []string{"QUEUE", "PENDING", "ACTIVE", "SCHEDULED", "RETRY", "FAILED"})
			writeCells(tw, []string{
				stats.Queue,
				fmt.Sprint(stats.Pending),
				fmt.Sprint(stats.Active),
				fmt.Sprint(stats.Scheduled),
				fmt.Sprint(stats.Retry),
				fmt.Sprint(stats.Failed),
			})
			return tw.Flush()
		},
	}
	inspect.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(trigger, inspect)
	return cmd
}
