// Package main is the entry point for ruleguard. Without arguments it runs
// the HTTP API server; with a command it runs the CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ruleguard/bootstrap"
	"ruleguard/cmd"
)

// run initializes and serves until a shutdown signal arrives.
func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Shutdown()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	return app.WaitForShutdown()
}

func main() {
	if len(os.Args) > 1 && cmd.IsCommand(os.Args[1]) {
		if err := cmd.NewRootCmd().Execute(); err != nil {
			if !errors.Is(err, cmd.ErrValidationFailed) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
