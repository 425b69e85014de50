// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("ck-api-token-value")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if buffer.String() != "ck-api-token-value" {
		t.Errorf("String() = %q", buffer.String())
	}
	if buffer.Len() != len("ck-api-token-value") {
		t.Errorf("Len() = %d", buffer.Len())
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d not zeroed: %d", index, value)
		}
	}
}

func TestNewFromBytesEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestCloseIdempotentAndPanicsAfter(t *testing.T) {
	buffer, err := NewFromString("token")
	if err != nil {
		t.Fatalf("NewFromString: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("Bytes after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestReadFromPath(t *testing.T) {
	directory := t.TempDir()

	t.Run("trims whitespace", func(t *testing.T) {
		path := filepath.Join(directory, "token")
		if err := os.WriteFile(path, []byte("  abc123\n\n"), 0600); err != nil {
			t.Fatal(err)
		}
		buffer, err := ReadFromPath(path)
		if err != nil {
			t.Fatalf("ReadFromPath: %v", err)
		}
		defer buffer.Close()
		if buffer.String() != "abc123" {
			t.Errorf("String() = %q, want abc123", buffer.String())
		}
	})

	t.Run("whitespace only", func(t *testing.T) {
		path := filepath.Join(directory, "blank")
		if err := os.WriteFile(path, []byte(" \n\t"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFromPath(path); err == nil {
			t.Fatal("expected error for whitespace-only file")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ReadFromPath(filepath.Join(directory, "absent")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
