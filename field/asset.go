// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package field

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zeebo/blake3"
)

// Receipt is the server's proof that an asset's bytes were uploaded.
// It is what the record body carries in place of the file.
type Receipt struct {
	FileChecksum      string `json:"fileChecksum,omitempty"`
	Size              int64  `json:"size,omitempty"`
	ReferenceChecksum string `json:"referenceChecksum,omitempty"`
	WrappingKey       string `json:"wrappingKey,omitempty"`
	Receipt           string `json:"receipt,omitempty"`
}

// Digest is the BLAKE3 hash of an asset file's contents at the time it
// was uploaded.
type Digest [32]byte

// String returns the digest in hex.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d is unset.
func (d Digest) IsZero() bool { return d == Digest{} }

// FileDigest hashes the file at path and returns its digest and size.
func FileDigest(path string) (Digest, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, 0, err
	}
	defer file.Close()

	hasher := blake3.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, size, nil
}

// Asset is a file-backed field value. An asset created with NewAsset is
// pending until the upload orchestrator attaches a receipt. An asset
// decoded from the server already has one and carries a download URL.
//
// Assets are shared by pointer: the receipt most recently attached
// during a save is visible to every record holding the same *Asset.
type Asset struct {
	mu          sync.Mutex
	path        string
	receipt     *Receipt
	digest      Digest
	downloadURL string
}

// NewAsset returns a pending asset backed by the local file at path.
func NewAsset(path string) *Asset {
	return &Asset{path: path}
}

// Path returns the local file path, empty for server-decoded assets.
func (a *Asset) Path() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path
}

// Receipt returns the upload receipt, if the asset has one.
func (a *Asset) Receipt() (Receipt, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.receipt == nil {
		return Receipt{}, false
	}
	return *a.receipt, true
}

// DownloadURL returns the URL the server supplied for fetching the
// asset, empty for local assets.
func (a *Asset) DownloadURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.downloadURL
}

// Attach records a successful upload of the file whose contents hashed
// to digest.
func (a *Asset) Attach(receipt Receipt, digest Digest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipt = &receipt
	a.digest = digest
}

// NeedsUpload reports whether the asset must be uploaded before it can
// be encoded: it has no receipt, or its local file has changed since
// the receipt was issued.
func (a *Asset) NeedsUpload() (bool, error) {
	a.mu.Lock()
	receipt, path, digest := a.receipt, a.path, a.digest
	a.mu.Unlock()

	if receipt == nil {
		return true, nil
	}
	if path == "" || digest.IsZero() {
		return false, nil
	}
	current, _, err := FileDigest(path)
	if err != nil {
		return false, err
	}
	return current != digest, nil
}

func (*Asset) Tag() Tag { return TagAsset }
func (*Asset) isValue() {}

func (a *Asset) equal(other *Asset) bool {
	if a == other {
		return true
	}
	if a == nil || other == nil {
		return false
	}
	first, firstOK := a.Receipt()
	second, secondOK := other.Receipt()
	if firstOK != secondOK {
		return false
	}
	if !firstOK {
		return a.Path() == other.Path()
	}
	return first == second
}
