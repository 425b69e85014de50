// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/recordwire/lib/secret"
)

// maxPlaintextSize bounds decrypted output. Signing keys are a few
// hundred bytes; anything larger is not a credential file.
const maxPlaintextSize = 1 << 20

// armorHeader is the first line of an ASCII-armored age file.
const armorHeader = "-----BEGIN AGE ENCRYPTED FILE-----"

// ParseIdentities parses an age identity file (one AGE-SECRET-KEY-1...
// per line, # comments allowed). The identity buffer is borrowed and
// not closed.
func ParseIdentities(identity *secret.Buffer) ([]age.Identity, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(identity.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identities: %w", err)
	}
	return identities, nil
}

// Decrypt decrypts an age file (binary or armored) with the given
// identities. The caller must Close the returned buffer.
func Decrypt(ciphertext io.Reader, identities ...age.Identity) (*secret.Buffer, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("sealed: at least one identity is required")
	}

	buffered := bufio.NewReader(ciphertext)
	var source io.Reader = buffered
	if peek, _ := buffered.Peek(len(armorHeader)); string(peek) == armorHeader {
		source = armor.NewReader(buffered)
	}

	reader, err := age.Decrypt(source, identities...)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}

	plaintext, err := io.ReadAll(io.LimitReader(reader, maxPlaintextSize+1))
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	if len(plaintext) > maxPlaintextSize {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: plaintext exceeds %d bytes", maxPlaintextSize)
	}
	if len(bytes.TrimSpace(plaintext)) == 0 {
		return nil, fmt.Errorf("sealed: plaintext is empty")
	}
	return secret.NewFromBytes(plaintext)
}

// DecryptFile decrypts the age file at path using the identity file at
// identityPath.
func DecryptFile(path, identityPath string) (*secret.Buffer, error) {
	identity, err := secret.ReadFromPath(identityPath)
	if err != nil {
		return nil, err
	}
	defer identity.Close()

	identities, err := ParseIdentities(identity)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: opening %s: %w", path, err)
	}
	defer file.Close()

	return Decrypt(file, identities...)
}
