package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediabridge/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	var pruneDays int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently dispatched commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.Paths.HistoryDB, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx := context.Background()
			out := cmd.OutOrStdout()

			if pruneDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -pruneDays)
				removed, err := store.Prune(runCtx, cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d job(s) older than %d day(s)\n", removed, pruneDays)
			}

			jobs, err := store.Recent(runCtx, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				type jsonJob struct {
					RequestID string `json:"request_id"`
					Action    string `json:"action"`
					Worker    int    `json:"worker"`
					Status    string `json:"status"`
					Message   string `json:"message,omitempty"`
					Finished  string `json:"finished_at"`
					Duration  string `json:"duration"`
				}
				items := make([]jsonJob, 0, len(jobs))
				for _, job := range jobs {
					items = append(items, jsonJob{
						RequestID: job.RequestID,
						Action:    job.Action,
						Worker:    job.Worker,
						Status:    job.Status,
						Message:   job.Message,
						Finished:  job.FinishedAt.Format(time.RFC3339),
						Duration:  formatDuration(job.Duration()),
					})
				}
				return writeJSON(cmd, map[string]any{"jobs": items})
			}

			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					job.Action,
					fmt.Sprintf("%d", job.Worker),
					job.Status,
					formatDuration(job.Duration()),
					job.Message,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{{name: "Finished"}, {name: "Action"}, {name: "Worker", numeric: true}, {name: "Status"}, {name: "Duration", numeric: true}, {name: "Message"}},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum jobs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	cmd.Flags().IntVar(&pruneDays, "prune", 0, "Remove jobs older than this many days before listing")
	return cmd
}
