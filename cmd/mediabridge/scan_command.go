package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mediabridge/internal/config"
	"mediabridge/internal/protocol"
	"mediabridge/internal/runtime"
)

type scannedFile struct {
	Path     string  `json:"path"`
	SizeMB   float64 `json:"size_mb"`
	Duration string  `json:"duration,omitempty"`
	Codec    string  `json:"codec,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var recursive bool
	var extensions []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "List media files under a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			dir := cfg.Paths.MediaDir
			if len(args) == 1 {
				dir, err = config.ExpandPath(args[0])
				if err != nil {
					return err
				}
			}

			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				env, err := protocol.NewEnvelope(protocol.ScanDirectory{
					Path:       dir,
					Recursive:  recursive,
					Extensions: extensions,
				})
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

				var files []scannedFile
				if raw := term.Field("files"); raw != nil {
					if err := json.Unmarshal(raw, &files); err != nil {
						return fmt.Errorf("decode scan result: %w", err)
					}
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{"directory": dir, "files": files})
				}

				out := cmd.OutOrStdout()
				if len(files) == 0 {
					fmt.Fprintf(out, "No media files found under %s\n", dir)
					return nil
				}

				rows := make([][]string, 0, len(files))
				for _, file := range files {
					rows = append(rows, []string{
						file.Path,
						fmt.Sprintf("%.1f", file.SizeMB),
						file.Duration,
						file.Codec,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{{name: "File"}, {name: "Size (MB)", numeric: true}, {name: "Duration", numeric: true}, {name: "Codec"}},
					rows,
				))
				fmt.Fprintf(out, "%d file(s)\n", len(files))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "Only include these file extensions")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
