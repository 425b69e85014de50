// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package record is the in-memory model of a record: identity, type,
// typed fields, server metadata, and the set of keys changed since the
// record was created or last fetched.
//
// A Record is not safe for concurrent mutation. Saving a record does not
// modify it; the database package returns the server's version as a new
// Record.
package record

import (
	"sort"
	"time"

	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/ref"
)

// Stamp records who changed a record and when, as reported by the
// server.
type Stamp struct {
	Time           time.Time
	UserRecordName string
	DeviceID       string
}

// Record is a typed document.
type Record struct {
	id         ref.RecordID
	recordType string
	changeTag  string
	fields     map[string]field.Value
	dirty      map[string]struct{}
	created    Stamp
	modified   Stamp
	parent     *ref.RecordID
	share      *field.Reference
}

// New returns an empty, never-saved record.
func New(recordType string, id ref.RecordID) *Record {
	return &Record{
		id:         id,
		recordType: recordType,
		fields:     make(map[string]field.Value),
		dirty:      make(map[string]struct{}),
	}
}

// NewInZone returns an empty record with a generated name in zone.
func NewInZone(recordType string, zone ref.ZoneID) *Record {
	return New(recordType, ref.GenerateRecordID(zone))
}

// ID returns the record's identity.
func (r *Record) ID() ref.RecordID { return r.id }

// Type returns the record type.
func (r *Record) Type() string { return r.recordType }

// ChangeTag returns the server's version tag, empty for records that
// have never been saved.
func (r *Record) ChangeTag() string { return r.changeTag }

// IsNew reports whether the record has never been saved.
func (r *Record) IsNew() bool { return r.changeTag == "" }

// Created returns the creation stamp; zero for new records.
func (r *Record) Created() Stamp { return r.created }

// Modified returns the last-modification stamp; zero for new records.
func (r *Record) Modified() Stamp { return r.modified }

// Parent returns the parent record, if one is set.
func (r *Record) Parent() (ref.RecordID, bool) {
	if r.parent == nil {
		return ref.RecordID{}, false
	}
	return *r.parent, true
}

// SetParent sets the record's parent. The parent travels with every
// save.
func (r *Record) SetParent(parent ref.RecordID) {
	r.parent = &parent
}

// Share returns the share record reference the server attached, if
// any. Shares are created on the server; a save sends the reference
// back unchanged.
func (r *Record) Share() (field.Reference, bool) {
	if r.share == nil {
		return field.Reference{}, false
	}
	return *r.share, true
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (field.Value, bool) {
	value, ok := r.fields[key]
	return value, ok
}

// Set stores value under key and marks key changed. A nil value
// removes the key.
func (r *Record) Set(key string, value field.Value) {
	if value == nil {
		r.Remove(key)
		return
	}
	r.fields[key] = value
	r.dirty[key] = struct{}{}
}

// Remove deletes key and marks it changed. The next save sends the key
// as null so the server clears it.
func (r *Record) Remove(key string) {
	delete(r.fields, key)
	r.dirty[key] = struct{}{}
}

// Keys returns the keys that currently hold values, sorted.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for key := range r.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ChangedKeys returns the keys set or removed since the record was
// created or last fetched, sorted.
func (r *Record) ChangedKeys() []string {
	keys := make([]string, 0, len(r.dirty))
	for key := range r.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ClearChanges forgets all changed keys.
func (r *Record) ClearChanges() {
	clear(r.dirty)
}

// AssetSlot locates one asset occurrence in a record: the field key
// and, for an asset list, the item index. A single asset is at index 0.
type AssetSlot struct {
	Key   string
	Index int
}

// Assets calls visit for every asset among the values of keys,
// including assets inside asset lists. An asset held in several slots
// is visited once per slot.
func (r *Record) Assets(keys []string, visit func(slot AssetSlot, asset *field.Asset) error) error {
	for _, key := range keys {
		switch value := r.fields[key].(type) {
		case *field.Asset:
			if value == nil {
				continue
			}
			if err := visit(AssetSlot{Key: key}, value); err != nil {
				return err
			}
		case field.List:
			for i, item := range value.Items() {
				if asset, ok := item.(*field.Asset); ok && asset != nil {
					if err := visit(AssetSlot{Key: key, Index: i}, asset); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
