// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern used when a test waits on a callback or a future, so individual
// tests never call time.After themselves. Helpers call t.Fatalf on
// failure; test setup failures are not recoverable.
package testutil
