package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mediabridge/internal/protocol"
	"mediabridge/internal/runtime"
)

type renamePlan struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	var pattern string

	cmd := &cobra.Command{
		Use:   "rename <file>...",
		Short: "Preview or apply metadata-based renames",
		Long:  "Previews metadata-based renames by default; pass --apply to rename on disk.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandFileArgs(args)
			if err != nil {
				return err
			}

			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				var env protocol.Envelope
				if apply {
					env, err = protocol.NewEnvelope(protocol.RenameFiles{FilePaths: paths, Pattern: pattern})
				} else {
					env, err = protocol.NewEnvelope(protocol.PreviewRename{FilePaths: paths, Pattern: pattern})
				}
				if err != nil {
					return err
				}

				term, err := rt.Pool().Dispatch(runCtx, env)
				if err != nil {
					return err
				}
				if !term.Succeeded() {
					return term.Err()
				}

				var plans []renamePlan
				if raw := term.Field("renames"); raw != nil {
					if err := json.Unmarshal(raw, &plans); err != nil {
						return fmt.Errorf("decode rename result: %w", err)
					}
				}

				out := cmd.OutOrStdout()
				if len(plans) == 0 {
					fmt.Fprintln(out, "Nothing to rename")
					return nil
				}

				rows := make([][]string, 0, len(plans))
				for _, plan := range plans {
					rows = append(rows, []string{plan.From, plan.To})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{{name: "From"}, {name: "To"}},
					rows,
				))
				if apply {
					fmt.Fprintf(out, "Renamed %d file(s)\n", len(plans))
				} else {
					fmt.Fprintln(out, "Preview only; pass --apply to rename")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the renames instead of previewing")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Naming pattern override passed to the worker")
	return cmd
}
