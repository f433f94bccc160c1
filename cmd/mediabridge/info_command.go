package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"mediabridge/internal/config"
	"mediabridge/internal/protocol"
	"mediabridge/internal/runtime"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Show container and stream metadata for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				env, err := protocol.NewEnvelope(protocol.GetFileInfo{FilePath: path})
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

				// The worker owns the metadata shape; pass it through.
				result := make(map[string]json.RawMessage, len(term.Extra))
				for key, value := range term.Extra {
					result[key] = value
				}
				return writeJSON(cmd, result)
			})
		},
	}
}
