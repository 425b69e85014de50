// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed decrypts age-encrypted credential files.
//
// Operators may keep the server-to-server signing key encrypted at rest
// with age (binary or ASCII-armored). [DecryptFile] reads such a file,
// decrypts it with the identities in an age identity file, and returns
// the plaintext in a [secret.Buffer]. Plaintext never lands on the Go
// heap except for the brief copy age's reader makes while streaming.
//
// Depends on lib/secret.
package sealed
