package main

import (
	"log/slog"
	"os"

	"github.com/melih/rbuild/internal/cli"
)

func main() {
	// Logging is reconfigured from flags once the command line is parsed.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := cli.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
