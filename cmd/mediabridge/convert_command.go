package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediabridge/internal/config"
	"mediabridge/internal/protocol"
	"mediabridge/internal/runtime"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var settingsPath string

	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Transcode files through the worker pool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandFileArgs(args)
			if err != nil {
				return err
			}

			var settings json.RawMessage
			if settingsPath != "" {
				resolved, err := config.ExpandPath(settingsPath)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(resolved)
				if err != nil {
					return fmt.Errorf("read settings: %w", err)
				}
				if !json.Valid(data) {
					return fmt.Errorf("settings file %s is not valid JSON", resolved)
				}
				settings = data
			}

			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				env, err := protocol.NewEnvelope(protocol.ConvertFiles{
					FilePaths: paths,
					Settings:  settings,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				term, err := runStream(runCtx, rt, env, out, "converting")
				if err != nil {
					return err
				}
				if !term.Succeeded() {
					return term.Err()
				}

				converted := fieldStrings(term, "output_files")
				for _, file := range converted {
					fmt.Fprintf(out, "wrote %s\n", file)
				}
				fmt.Fprintf(out, "Converted %d file(s)\n", len(paths))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&settingsPath, "settings", "", "JSON file with encoder settings passed to the worker")
	return cmd
}
