// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds credentials outside the Go heap.
//
// The adapter handles three kinds of secret material: API tokens,
// web-auth tokens, and the PEM-encoded elliptic-curve key used to sign
// server-to-server requests. Each is loaded into a [Buffer] whose backing
// memory is an anonymous mmap region, locked against swap and excluded
// from core dumps. Close zeroes and unmaps it.
//
// Constructors:
//
//   - [NewFromBytes] -- copies into protected memory and zeroes the source
//   - [NewFromString] -- convenience for tests and flag values
//   - [ReadFromPath] -- reads a token or key file, trimming whitespace
//
// Depends on golang.org/x/sys/unix.
package secret
