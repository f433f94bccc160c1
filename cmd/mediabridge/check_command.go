package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediabridge/internal/deps"
	"mediabridge/internal/protocol"
	"mediabridge/internal/runtime"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipWorker bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the worker toolchain is usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}

			resolution, resolveErr := deps.ResolveWorker(cfg.Worker)
			if resolveErr != nil {
				fmt.Fprintln(out, renderStatusLine("Worker", statusError, resolveErr.Error(), colorize))
			} else {
				detail := fmt.Sprintf("%s (%s)", resolution.Command.Binary, resolution.Source)
				fmt.Fprintln(out, renderStatusLine("Worker", statusOK, detail, colorize))
			}

			statuses := deps.CheckTools([]deps.Tool{
				{Name: "Interpreter", Command: cfg.Worker.Interpreter, Optional: true},
			})
			for _, status := range statuses {
				kind := statusOK
				message := status.Path
				if !status.Available {
					kind = statusWarn
					message = status.Detail
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			if resolveErr != nil || skipWorker {
				return resolveErr
			}

			for _, line := range renderSectionHeader("Worker probe", colorize) {
				fmt.Fprintln(out, line)
			}
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				env, err := protocol.NewEnvelope(protocol.CheckFFmpeg{})
				if err != nil {
					return err
				}
				term, err := rt.Pool().Dispatch(runCtx, env)
				if err != nil {
					fmt.Fprintln(out, renderStatusLine("FFmpeg", statusError, err.Error(), colorize))
					return err
				}
				if !term.Succeeded() {
					fmt.Fprintln(out, renderStatusLine("FFmpeg", statusError, term.Message, colorize))
					return term.Err()
				}

				available, ok := term.BoolField("available")
				kind := statusOK
				if ok && !available {
					kind = statusWarn
				}
				message := strings.TrimSpace(term.Message)
				if raw := term.Field("version"); raw != nil {
					var version string
					if json.Unmarshal(raw, &version) == nil && version != "" {
						message = version
					}
				}
				if message == "" {
					message = "available: " + yesNo(available)
				}
				fmt.Fprintln(out, renderStatusLine("FFmpeg", kind, message, colorize))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipWorker, "no-worker", false, "Skip launching a worker for the FFmpeg probe")
	return cmd
}
