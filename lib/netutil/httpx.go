// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response reading.
//
// Every JSON response from the record service is read through
// [ReadResponse] or [ReadBody], which cap the read at [MaxResponseSize]
// so a misbehaving server cannot exhaust memory. Error responses are
// read through [ErrorBody], which never fails. [ReadBody] also inflates
// gzip-encoded bodies: the request builder advertises gzip itself, which
// disables net/http's transparent decompression, so decoding is done here
// with klauspost/compress.
package netutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// MaxResponseSize bounds response body reads: 256 MB. Query pages and
// batch results are orders of magnitude smaller.
const MaxResponseSize int64 = 256 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ReadBody reads response.Body, inflating it when the server sent
// Content-Encoding: gzip. The size bound applies to the inflated bytes.
func ReadBody(response *http.Response) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(response.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return ReadResponse(response.Body)
	case "gzip":
		reader, err := gzip.NewReader(response.Body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		defer reader.Close()
		return ReadResponse(reader)
	default:
		return nil, fmt.Errorf("unsupported Content-Encoding %q", encoding)
	}
}

// ErrorBody reads an error response body for diagnostics. Read and
// decoding errors are ignored: a gzip body that does not inflate, or
// one in an encoding this package cannot decode, is returned as sent,
// since a partial or raw body is still useful in a message.
func ErrorBody(response *http.Response) []byte {
	raw, _ := ReadResponse(response.Body)
	encoding := strings.ToLower(strings.TrimSpace(response.Header.Get("Content-Encoding")))
	if encoding != "gzip" {
		return raw
	}
	reader, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return raw
	}
	defer reader.Close()
	inflated, err := ReadResponse(reader)
	if err != nil && len(inflated) == 0 {
		return raw
	}
	return inflated
}
