// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable wall clock.
//
// Request signing embeds the current time in a header that the server
// checks against its own clock, so the signer takes a Clock rather than
// calling time.Now. Production code uses Real(); tests use Fake() to pin
// the date and produce byte-identical signatures.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	signer := auth.NewKeySigner(keyID, key, c)
//	c.Advance(5 * time.Second)
//
// This package has no internal dependencies.
package clock
