package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"mediabridge/internal/protocol"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// Interrupting a command is not a failure worth a second report.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, protocol.ErrCanceled) {
			fmt.Fprintln(os.Stderr, "mediabridge:", err)
		}
		os.Exit(1)
	}
}
