// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/cmd/recordctl/cli"
	"github.com/bureau-foundation/recordwire/database"
	"github.com/bureau-foundation/recordwire/lib/config"
	"github.com/bureau-foundation/recordwire/lib/version"
)

// app holds the state shared by every command: the global flags and
// where output goes.
type app struct {
	ctx        context.Context
	output     *cli.Output
	configPath string
	verbose    bool
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:       "recordctl",
		Summary:    "Query and modify records in a container database",
		HelpOutput: a.output.Stderr,
		Subcommands: []*cli.Command{
			a.queryCommand(),
			a.cursorCommand(),
			a.lookupCommand(),
			a.saveCommand(),
			a.deleteCommand(),
			a.zonesCommand(),
			a.subscriptionsCommand(),
			{
				Name:    "version",
				Summary: "Print the version",
				Run: func([]string) error {
					_, err := fmt.Fprintf(a.output.Stdout, "recordctl %s\n", version.Info())
					return err
				},
			},
		},
	}
}

// flagSet returns a flag set carrying the global flags.
func (a *app) flagSet(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVarP(&a.configPath, "config", "c", "", "config file (default $RECORDWIRE_CONFIG)")
	flagSet.BoolVarP(&a.verbose, "verbose", "v", false, "log every request to stderr")
	return flagSet
}

// connect loads the configuration and opens a client. The caller closes
// it.
func (a *app) connect() (*database.Client, error) {
	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	return database.NewClientFromConfig(cfg, a.output.NewLogger(a.verbose))
}

// withClient runs fn with a connected client and closes it afterwards.
func (a *app) withClient(fn func(*database.Client) error) error {
	client, err := a.connect()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// itemFailures reports per-item errors on stderr. It returns an
// ExitError when any item failed so the process exits non-zero after
// the successful items were printed.
type itemFailures struct {
	output *cli.Output
	count  int
}

func (f *itemFailures) report(item string, err error) {
	f.count++
	var itemErr *apierror.ItemError
	if errors.As(err, &itemErr) {
		fmt.Fprintf(f.output.Stderr, "%s: %s: %s\n", item, itemErr.Server.Code, itemErr.Server.Reason)
		return
	}
	fmt.Fprintf(f.output.Stderr, "%s: %v\n", item, err)
}

func (f *itemFailures) err() error {
	if f.count == 0 {
		return nil
	}
	return &cli.ExitError{Code: 1}
}

func isItemError(err error) bool {
	var itemErr *apierror.ItemError
	return errors.As(err, &itemErr)
}
