// Package main is the entry point for the glsync GitLab sync server.
package main

import (
	"log/slog"
	"os"

	"github.com/glsync/glsync/cmd/glsync/app"
	"github.com/glsync/glsync/internal/logging"
)

func main() {
	// Logs go to stderr to keep stdout clean for commands that output data
	// (e.g., version --format json, sync).
	logger, closer := logging.New(os.Stderr, logging.Options{Level: app.LogLevel("")})
	slog.SetDefault(logger)

	err := app.NewRootCmd().Execute()
	_ = closer.Close()
	if err != nil {
		os.Exit(1)
	}
}
