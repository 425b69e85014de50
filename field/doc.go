// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package field is the typed value model for record fields and its
// codec to and from the service's tagged JSON form.
//
// On the wire every field is a dictionary {"value": ..., "type": TAG}.
// [Encode] produces that dictionary from a [Value]; [Decode] reverses
// it. Decoding uses the tag when one is present and otherwise infers
// the type from the JSON shape. A value that cannot be decoded yields
// no value at all rather than a guess: callers skip such fields.
//
// Two asymmetries are part of the wire contract:
//
//   - [Bool] encodes as an untagged 0 or 1 and decodes as [Int64].
//     [Equal] treats Bool(true) and Int64(1) as the same value.
//   - An empty list whose element type is unknown encodes untagged and
//     decodes as an empty list of [TagString].
//
// An [*Asset] can only be encoded after it carries an upload [Receipt];
// encoding a pending asset fails with [ErrAssetNotUploaded].
package field
