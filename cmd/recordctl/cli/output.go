// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Output is where a command writes results and diagnostics.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
	// Indent pretty-prints JSON. Set when stdout is a terminal.
	Indent bool
}

// StandardOutput writes to the process's stdout and stderr, indenting
// JSON only for a human reader.
func StandardOutput() *Output {
	return &Output{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Indent: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// WriteJSON writes value to stdout as one JSON document.
func (o *Output) WriteJSON(value any) error {
	encoder := json.NewEncoder(o.Stdout)
	if o.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(value)
}

// NewLogger returns a text logger on the output's stderr. Debug output,
// including every request, is enabled by verbose.
func (o *Output) NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(o.Stderr, &slog.HandlerOptions{Level: level}))
}
