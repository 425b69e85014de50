// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides immutable identity types for zones and records.
//
// A [ZoneID] names a partition of a database: a zone name plus an
// optional owner. The zero ZoneID and a ZoneID with an empty name both
// mean the default zone, and every constructor and decoder normalizes
// to the explicit "_defaultZone" name so that values compare equal with
// == and work as map keys.
//
// A [RecordID] is a record name scoped to a zone. Record IDs are the
// keys of every per-item result map the database package returns.
package ref
