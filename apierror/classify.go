// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apierror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Transport classifies an error returned by the HTTP client (dial,
// TLS, read, or context failure) into the network portion of the
// taxonomy.
func Transport(op string, err error) *Error {
	return &Error{Kind: transportKind(err), Op: op, Err: err}
}

func transportKind(err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENETUNREACH, syscall.ENETDOWN:
			return KindNetworkUnavailable
		case syscall.ECONNREFUSED, syscall.EHOSTUNREACH, syscall.EHOSTDOWN:
			return KindHostUnreachable
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindHostUnreachable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && !opErr.Timeout() {
		return KindHostUnreachable
	}

	return KindNetwork
}

// Cancelled returns a KindCancelled error for op. Cause is usually
// ctx.Err().
func Cancelled(op string, cause error) *Error {
	return &Error{Kind: KindCancelled, Op: op, Err: cause}
}

// Decode wraps a JSON decoding failure for op.
func Decode(op string, err error) *Error {
	return &Error{Kind: KindJSONDecode, Op: op, Err: err}
}

// Malformed returns a KindMalformedResponse error for op.
func Malformed(op, format string, args ...any) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// MissingKey returns a KindMissingKey error naming key.
func MissingKey(op, key string) *Error {
	return &Error{Kind: KindMissingKey, Op: op, Detail: key}
}

// AssetNotLocal reports that the asset in field of record has no local
// file to upload.
func AssetNotLocal(op, record, field string, cause error) *Error {
	return &Error{
		Kind:   KindAssetNotLocal,
		Op:     op,
		Detail: fmt.Sprintf("record %s field %q", record, field),
		Err:    cause,
	}
}

// Payload is the wire shape of a server error. It appears as the whole
// body of a failed call and as an individual element of batch results.
type Payload struct {
	ServerErrorCode string   `json:"serverErrorCode"`
	Reason          string   `json:"reason,omitempty"`
	RetryAfter      *float64 `json:"retryAfter,omitempty"`
	UUID            string   `json:"uuid,omitempty"`
	RedirectURL     string   `json:"redirectURL,omitempty"`

	// Item identity fields. At most one is set on batch elements and
	// none on call-level bodies.
	RecordName     string          `json:"recordName,omitempty"`
	ZoneID         json.RawMessage `json:"zoneID,omitempty"`
	SubscriptionID string          `json:"subscriptionID,omitempty"`
}

// ParsePayload reports whether raw is a JSON object carrying a
// non-empty serverErrorCode, and returns it decoded.
func ParsePayload(raw []byte) (Payload, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Payload{}, false
	}
	var payload Payload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return Payload{}, false
	}
	if payload.ServerErrorCode == "" {
		return Payload{}, false
	}
	return payload, true
}

// Server converts the payload into its structured fields.
func (p Payload) Server() Server {
	server := Server{
		Code:         p.ServerErrorCode,
		Reason:       p.Reason,
		DiagnosticID: p.UUID,
		RedirectURL:  p.RedirectURL,
	}
	if p.RetryAfter != nil && *p.RetryAfter > 0 {
		server.RetryAfter = time.Duration(*p.RetryAfter * float64(time.Second))
	}
	return server
}

// Item builds the per-item failure for the item identified by item.
func (p Payload) Item(scope Scope, item string) *ItemError {
	return &ItemError{Scope: scope, Item: item, Server: p.Server()}
}

// FromResponse classifies a response with status >= 400. A body that
// parses as a server error payload yields KindServer; anything else
// yields KindHTTPStatus with the raw body as detail. A Retry-After
// header in seconds fills in the retry hint when the body has none.
func FromResponse(op string, status int, header http.Header, body []byte) *Error {
	payload, ok := ParsePayload(body)
	if !ok {
		return &Error{
			Kind:       KindHTTPStatus,
			Op:         op,
			StatusCode: status,
			Detail:     strings.TrimSpace(string(body)),
		}
	}
	server := payload.Server()
	if server.RetryAfter == 0 && header != nil {
		if seconds, err := strconv.Atoi(header.Get("Retry-After")); err == nil && seconds > 0 {
			server.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return &Error{Kind: KindServer, Op: op, StatusCode: status, Server: server}
}
