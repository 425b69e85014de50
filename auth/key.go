// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/bureau-foundation/recordwire/lib/sealed"
	"github.com/bureau-foundation/recordwire/lib/secret"
)

// ParsePrivateKey parses a PEM-encoded P-256 key in SEC 1
// ("EC PRIVATE KEY") or PKCS #8 ("PRIVATE KEY") form.
func ParsePrivateKey(pemData []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("auth: no PEM block in private key data")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing EC private key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing PKCS #8 private key: %w", err)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("auth: PKCS #8 key is %T, want ECDSA", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("auth: unsupported PEM block type %q", block.Type)
	}
}

// LoadPrivateKeyFile reads and parses the key at path. When
// ageIdentityPath is non-empty the file is age-encrypted and is
// decrypted with the identities there first.
func LoadPrivateKeyFile(path, ageIdentityPath string) (*ecdsa.PrivateKey, error) {
	var buffer *secret.Buffer
	var err error
	if ageIdentityPath != "" {
		buffer, err = sealed.DecryptFile(path, ageIdentityPath)
	} else {
		buffer, err = secret.ReadFromPath(path)
	}
	if err != nil {
		return nil, fmt.Errorf("auth: loading private key: %w", err)
	}
	defer buffer.Close()
	return ParsePrivateKey(buffer.Bytes())
}
