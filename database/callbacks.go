// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"

	"github.com/bureau-foundation/recordwire/lib/ref"
	"github.com/bureau-foundation/recordwire/record"
)

// ModifyRecordsOperation reports a modify through callbacks, for
// callers structured around per-record notifications. Callbacks run on
// the operation's goroutine: every per-record callback first, then
// Completion exactly once.
type ModifyRecordsOperation struct {
	RecordsToSave     []*record.Record
	RecordIDsToDelete []ref.RecordID
	Options           ModifyOptions

	// PerRecordSave is called once per saved record with the server's
	// version or the record's error.
	PerRecordSave func(id ref.RecordID, saved *record.Record, err error)

	// PerRecordDelete is called once per deleted record.
	PerRecordDelete func(id ref.RecordID, err error)

	// Completion receives the whole result, or the call-level error in
	// which case no per-record callback ran.
	Completion func(result *ModifyResult, err error)
}

// Start runs the modify on client in the background.
func (m *ModifyRecordsOperation) Start(ctx context.Context, client *Client) *Operation[*ModifyResult] {
	return Start(ctx, func(ctx context.Context) (*ModifyResult, error) {
		result, err := client.Modify(ctx, m.RecordsToSave, m.RecordIDsToDelete, m.Options)
		if err == nil {
			for _, r := range m.RecordsToSave {
				saved := result.Saved[r.ID()]
				if m.PerRecordSave != nil {
					m.PerRecordSave(r.ID(), saved.Value, saved.Err)
				}
			}
			for _, id := range m.RecordIDsToDelete {
				if m.PerRecordDelete != nil {
					m.PerRecordDelete(id, result.Deleted[id].Err)
				}
			}
		}
		if m.Completion != nil {
			m.Completion(result, err)
		}
		return result, err
	})
}

// QueryRecordsOperation reports one query page through callbacks.
type QueryRecordsOperation struct {
	Query   Query
	Options QueryOptions
	// Cursor, when set, continues an earlier query; Query and Options
	// are then ignored.
	Cursor *Cursor

	// RecordFetched is called for each record on the page, in order.
	RecordFetched func(r *record.Record, err error)

	// Completion receives the cursor for the next page (nil on the last
	// page) or the call-level error.
	Completion func(cursor *Cursor, err error)
}

// Start runs the query on client in the background.
func (q *QueryRecordsOperation) Start(ctx context.Context, client *Client) *Operation[*QueryResult] {
	return Start(ctx, func(ctx context.Context) (*QueryResult, error) {
		var result *QueryResult
		var err error
		if q.Cursor != nil {
			result, err = client.Continue(ctx, q.Cursor)
		} else {
			result, err = client.Query(ctx, q.Query, q.Options)
		}
		var cursor *Cursor
		if err == nil {
			for _, item := range result.Records {
				if q.RecordFetched != nil {
					q.RecordFetched(item.Value, item.Err)
				}
			}
			cursor = result.Cursor
		}
		if q.Completion != nil {
			q.Completion(cursor, err)
		}
		return result, err
	})
}
