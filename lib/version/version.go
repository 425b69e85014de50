// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information.
//
// Values are injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/recordwire/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// The request builder sends [UserAgent] with every request so server-side
// diagnostics can tell adapter builds apart.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// Version is the semantic version. Set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s)", Version, GitCommit, dirty)
}

// Print writes "<binary> <info>" to stdout.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Info())
}

// UserAgent returns the User-Agent header value for outgoing requests.
func UserAgent() string {
	return fmt.Sprintf("recordwire/%s (%s; %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
