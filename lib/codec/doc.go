// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the module's CBOR encoding configuration.
//
// The remote service speaks JSON, and every type that crosses the wire is
// encoded with encoding/json. CBOR is used only for values the adapter
// hands back to callers as opaque blobs that must survive a round trip
// through the caller's own storage: query cursors are the main example.
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same cursor always serializes to the same bytes and two serialized
// cursors can be compared with bytes.Equal.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that only ever travel as CBOR use `cbor` struct tags. Types that
// also appear in JSON use `json` tags; fxamacker/cbor falls back to them
// when no `cbor` tag is present.
package codec
