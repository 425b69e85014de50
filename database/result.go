// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"encoding/json"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/record"
)

// Result is the outcome of one item in a batch: a value, or the
// item's own error (usually an *apierror.ItemError).
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the item succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Get returns the value and error as a pair.
func (r Result[T]) Get() (T, error) { return r.Value, r.Err }

// itemShape is the recognized form of one element of a batch response.
type itemShape int

const (
	shapeError itemShape = iota + 1
	shapeDeleted
	shapeEntity
)

// recordItem is one classified element of a records response.
type recordItem struct {
	shape   itemShape
	payload apierror.Payload
	wire    record.Wire
}

// classifyRecordItem tries the item shapes in a fixed order: server
// error, deletion confirmation, then record entity. It reports false
// when none fit.
func classifyRecordItem(raw json.RawMessage) (recordItem, bool) {
	if payload, ok := apierror.ParsePayload(raw); ok {
		return recordItem{shape: shapeError, payload: payload}, true
	}
	var wire record.Wire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return recordItem{}, false
	}
	if wire.RecordName == "" {
		return recordItem{}, false
	}
	if wire.Deleted {
		return recordItem{shape: shapeDeleted, wire: wire}, true
	}
	if wire.RecordType != "" {
		return recordItem{shape: shapeEntity, wire: wire}, true
	}
	return recordItem{}, false
}
