package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mediabridge/internal/config"
	"mediabridge/internal/protocol"
	"mediabridge/internal/runtime"
)

// expandFileArgs resolves each argument to an absolute path.
func expandFileArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one file is required")
	}
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		path, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// runStream dispatches a streaming command and renders worker progress as a
// terminal bar. It blocks until the terminal response arrives.
func runStream(ctx context.Context, rt *runtime.Runtime, env protocol.Envelope, out io.Writer, description string) (*protocol.Terminal, error) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	type outcome struct {
		term *protocol.Terminal
		err  error
	}
	done := make(chan outcome, 1)

	err := rt.Pool().DispatchStream(ctx, env,
		func(p protocol.Progress) {
			_ = bar.Set(int(p.Percent))
			if p.File != "" {
				bar.Describe(fmt.Sprintf("%s: %s", description, p.File))
			}
		},
		func(term *protocol.Terminal, err error) {
			done <- outcome{term: term, err: err}
		},
	)
	if err != nil {
		return nil, err
	}

	result := <-done
	_ = bar.Finish()
	fmt.Fprintln(out)
	return result.term, result.err
}

// fieldStrings decodes a terminal result field holding a string array.
func fieldStrings(term *protocol.Terminal, name string) []string {
	raw := term.Field(name)
	if raw == nil {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Millisecond * 10).String()
}
