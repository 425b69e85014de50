// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apierror

import (
	"errors"
	"fmt"
	"time"
)

// Server holds the structured fields of a server-reported error. The
// same fields appear on call-level and per-item failures.
type Server struct {
	// Code is the serverErrorCode, e.g. CodeNotFound.
	Code string
	// Reason is the human-readable explanation.
	Reason string
	// RetryAfter is the server's suggested wait before retrying, zero
	// when absent.
	RetryAfter time.Duration
	// DiagnosticID is the opaque request id (the uuid field) to quote
	// when reporting problems to the service operator.
	DiagnosticID string
	// RedirectURL is set when the server asks the client to sign in.
	RedirectURL string
}

// Error is a call-level failure.
type Error struct {
	Kind Kind

	// Op names the endpoint or step, e.g. "records/modify" or
	// "asset upload".
	Op string

	// StatusCode is the HTTP status for KindHTTPStatus and KindServer.
	StatusCode int

	// Server is populated for KindServer.
	Server Server

	// Detail carries the raw body for KindHTTPStatus, the key name for
	// KindMissingKey, and a description for KindMalformedResponse and
	// KindAssetNotLocal.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	message := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	switch e.Kind {
	case KindServer:
		message += fmt.Sprintf(" %s (%d)", e.Server.Code, e.StatusCode)
		if e.Server.Reason != "" {
			message += ": " + e.Server.Reason
		}
		if e.Server.DiagnosticID != "" {
			message += " [" + e.Server.DiagnosticID + "]"
		}
	case KindHTTPStatus:
		message += fmt.Sprintf(" %d", e.StatusCode)
		if e.Detail != "" {
			message += ": " + truncate(e.Detail, 256)
		}
	default:
		if e.Detail != "" {
			message += ": " + e.Detail
		}
	}
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *Error) Unwrap() error { return e.Err }

// Scope identifies what kind of batch item an ItemError belongs to.
type Scope int

const (
	ScopeRecord Scope = iota + 1
	ScopeZone
	ScopeSubscription
)

func (s Scope) String() string {
	switch s {
	case ScopeRecord:
		return "record"
	case ScopeZone:
		return "zone"
	case ScopeSubscription:
		return "subscription"
	default:
		return "item"
	}
}

// ItemError is the failure of one item inside a batch. Sibling items in
// the same batch are unaffected.
type ItemError struct {
	Scope Scope
	// Item is the identity of the failed item as the caller submitted
	// it: a record ID, zone ID, or subscription ID rendered as text.
	Item   string
	Server Server
}

func (e *ItemError) Error() string {
	message := fmt.Sprintf("%s %s: %s", e.Scope, e.Item, e.Server.Code)
	if e.Server.Reason != "" {
		message += ": " + e.Server.Reason
	}
	return message
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsServerCode reports whether err is a call-level or per-item server
// error with the given serverErrorCode.
func IsServerCode(err error, code string) bool {
	if server, ok := serverFields(err); ok {
		return server.Code == code
	}
	return false
}

// RetryAfter returns the server's retry-after hint carried by err, if
// any.
func RetryAfter(err error) (time.Duration, bool) {
	if server, ok := serverFields(err); ok && server.RetryAfter > 0 {
		return server.RetryAfter, true
	}
	return 0, false
}

func serverFields(err error) (Server, bool) {
	var itemErr *ItemError
	if errors.As(err, &itemErr) {
		return itemErr.Server, true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindServer {
		return apiErr.Server, true
	}
	return Server{}, false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
