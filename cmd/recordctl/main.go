// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// recordctl runs queries and record, zone, and subscription operations
// against one container database. The container, credentials, and
// endpoint come from the config file named by --config or
// RECORDWIRE_CONFIG; a .env file in the working directory is loaded
// first so RECORDWIRE_CONFIG and ${VAR} references can live there.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bureau-foundation/recordwire/cmd/recordctl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], cli.StandardOutput())
	stop()
	if err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, output *cli.Output) error {
	// A missing .env is normal; variables already set take precedence.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}
	app := &app{ctx: ctx, output: output}
	return app.root().Execute(args)
}
