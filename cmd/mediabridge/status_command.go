package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediabridge/internal/runtime"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Start the pool and report worker health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Pool", colorize) {
					fmt.Fprintln(out, line)
				}
				resolution := rt.Resolution()
				fmt.Fprintln(out, renderStatusLine("Worker binary", statusInfo,
					fmt.Sprintf("%s (%s)", resolution.Command.Binary, resolution.Source), colorize))
				fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, rt.LockPath(), colorize))

				snapshot := rt.Pool().Snapshot()
				capacityKind := statusOK
				if snapshot.Retired > 0 {
					capacityKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Capacity", capacityKind,
					fmt.Sprintf("%d of %d (retired %d)", snapshot.Capacity, rt.Workers(), snapshot.Retired), colorize))

				rows := make([][]string, 0, len(snapshot.Workers))
				for _, w := range snapshot.Workers {
					last := ""
					if !w.LastActivity.IsZero() {
						last = formatDuration(time.Since(w.LastActivity)) + " ago"
					}
					rows = append(rows, []string{
						fmt.Sprintf("%d", w.ID),
						string(w.State),
						fmt.Sprintf("%d", w.PID),
						string(w.Action),
						fmt.Sprintf("%d", w.Restarts),
						last,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{{name: "Worker", numeric: true}, {name: "State"}, {name: "PID", numeric: true}, {name: "Action"}, {name: "Restarts", numeric: true}, {name: "Last activity", numeric: true}},
					rows,
				))

				stats, err := rt.Store().Stats(runCtx)
				if err != nil {
					return err
				}
				for _, line := range renderSectionHeader("History", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Jobs recorded", statusInfo,
					fmt.Sprintf("%d total, %d succeeded, %d failed", stats.Total, stats.Succeeded, stats.Failed), colorize))
				return nil
			})
		},
	}
}
