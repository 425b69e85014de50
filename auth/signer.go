// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bureau-foundation/recordwire/lib/clock"
)

// Header names for key-signed requests.
const (
	KeyIDHeader     = "X-Apple-CloudKit-Request-KeyID"
	DateHeader      = "X-Apple-CloudKit-Request-ISO8601Date"
	SignatureHeader = "X-Apple-CloudKit-Request-SignatureV1"
)

// DateFormat is the ISO-8601 layout of the date header. Dates are
// always rendered in UTC, so the zone is "Z".
const DateFormat = "2006-01-02T15:04:05Z07:00"

// signingMu serializes every signing operation in the process.
var signingMu sync.Mutex

// KeySigner signs requests with a server-to-server key.
type KeySigner struct {
	keyID string
	key   *ecdsa.PrivateKey
	clock clock.Clock
}

// NewKeySigner returns a signer for the P-256 key registered under
// keyID. The clock supplies the date each signature covers.
func NewKeySigner(keyID string, key *ecdsa.PrivateKey, clk clock.Clock) (*KeySigner, error) {
	if keyID == "" {
		return nil, errors.New("auth: key ID is required")
	}
	if key == nil {
		return nil, errors.New("auth: signing key is required")
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("auth: signing key must be P-256, got %s", key.Curve.Params().Name)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &KeySigner{keyID: keyID, key: key, clock: clk}, nil
}

// Message returns the string a signature covers:
// "<date>:<base64(sha256(body))>:<subpath>".
func Message(date time.Time, body []byte, subpath string) string {
	bodyHash := sha256.Sum256(body)
	return date.UTC().Format(DateFormat) + ":" + base64.StdEncoding.EncodeToString(bodyHash[:]) + ":" + subpath
}

// Sign returns the base64 DER ECDSA-SHA256 signature of the message
// for date, body and subpath. Signatures are deterministic (RFC 6979):
// the same inputs and key always produce the same signature.
func (s *KeySigner) Sign(date time.Time, body []byte, subpath string) (string, error) {
	digest := sha256.Sum256([]byte(Message(date, body, subpath)))

	signingMu.Lock()
	signature, err := s.key.Sign(nil, digest[:], crypto.SHA256)
	signingMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("auth: signing request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// Authenticate sets the key ID, date, and signature headers.
func (s *KeySigner) Authenticate(request *http.Request, body []byte, subpath string) error {
	date := s.clock.Now().UTC().Truncate(time.Second)
	signature, err := s.Sign(date, body, subpath)
	if err != nil {
		return err
	}
	request.Header.Set(KeyIDHeader, s.keyID)
	request.Header.Set(DateHeader, date.Format(DateFormat))
	request.Header.Set(SignatureHeader, signature)
	return nil
}
