// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"
	"sort"
	"time"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/ref"
)

// Wire is the JSON dictionary form of a record in requests and
// responses.
type Wire struct {
	RecordName      string                `json:"recordName"`
	RecordType      string                `json:"recordType,omitempty"`
	RecordChangeTag string                `json:"recordChangeTag,omitempty"`
	Fields          map[string]field.Wire `json:"fields,omitempty"`
	ZoneID          *ref.ZoneID           `json:"zoneID,omitempty"`
	Parent          *ParentWire           `json:"parent,omitempty"`
	Share           *ShareWire            `json:"share,omitempty"`
	Created         *StampWire            `json:"created,omitempty"`
	Modified        *StampWire            `json:"modified,omitempty"`
	Deleted         bool                  `json:"deleted,omitempty"`
}

// ParentWire names a record's parent. The parent is always in the
// record's own zone.
type ParentWire struct {
	RecordName string `json:"recordName"`
}

// ShareWire points at the share record covering a shared record.
type ShareWire struct {
	RecordName string      `json:"recordName"`
	ZoneID     *ref.ZoneID `json:"zoneID,omitempty"`
}

// StampWire is the created/modified metadata dictionary.
type StampWire struct {
	Timestamp      int64  `json:"timestamp"`
	UserRecordName string `json:"userRecordName,omitempty"`
	DeviceID       string `json:"deviceID,omitempty"`
}

// Encode returns the wire form of the record carrying only keys. Keys
// without a value are sent as null. The change tag is included when
// the record has one; the caller clears it for operations that ignore
// it.
func (r *Record) Encode(keys []string) (Wire, error) {
	return r.EncodeWithReceipts(keys, nil)
}

// EncodeWithReceipts is Encode with the asset at each slot in receipts
// sent with that receipt instead of the one attached to the asset.
func (r *Record) EncodeWithReceipts(keys []string, receipts map[AssetSlot]field.Receipt) (Wire, error) {
	if r.id.IsZero() {
		return Wire{}, apierror.MissingKey("encode record", "recordName")
	}
	if r.recordType == "" {
		return Wire{}, apierror.MissingKey("encode record", "recordType")
	}

	zone := r.id.Zone()
	wire := Wire{
		RecordName:      r.id.Name(),
		RecordType:      r.recordType,
		RecordChangeTag: r.changeTag,
		ZoneID:          &zone,
	}
	if len(keys) > 0 {
		wire.Fields = make(map[string]field.Wire, len(keys))
	}
	for _, key := range keys {
		value, ok := r.fields[key]
		if !ok {
			wire.Fields[key] = field.Null
			continue
		}
		var lookup field.ReceiptFunc
		if len(receipts) > 0 {
			lookup = func(index int, _ *field.Asset) (field.Receipt, bool) {
				receipt, ok := receipts[AssetSlot{Key: key, Index: index}]
				return receipt, ok
			}
		}
		encoded, err := field.EncodeWith(value, lookup)
		if err != nil {
			return Wire{}, fmt.Errorf("record %s field %q: %w", r.id, key, err)
		}
		wire.Fields[key] = encoded
	}
	if r.parent != nil {
		wire.Parent = &ParentWire{RecordName: r.parent.Name()}
	}
	if r.share != nil {
		shareZone := r.share.Record.Zone()
		wire.Share = &ShareWire{RecordName: r.share.Record.Name(), ZoneID: &shareZone}
	}
	return wire, nil
}

// FromWire builds a record from its wire form. Zone is used when the
// dictionary carries no zoneID. Fields the codec does not recognize
// are skipped and their keys returned, sorted, so the caller can log
// them. The returned record has no changed keys.
func FromWire(wire Wire, zone ref.ZoneID) (*Record, []string, error) {
	if wire.RecordName == "" {
		return nil, nil, apierror.MissingKey("decode record", "recordName")
	}
	if wire.ZoneID != nil {
		zone = *wire.ZoneID
	}
	id, err := ref.NewRecordID(wire.RecordName, zone)
	if err != nil {
		return nil, nil, fmt.Errorf("decode record: %w", err)
	}

	record := New(wire.RecordType, id)
	record.changeTag = wire.RecordChangeTag

	var skipped []string
	for key, encoded := range wire.Fields {
		value, ok := field.Decode(encoded)
		if !ok {
			skipped = append(skipped, key)
			continue
		}
		record.fields[key] = value
	}
	sort.Strings(skipped)

	if wire.Parent != nil && wire.Parent.RecordName != "" {
		parent, err := ref.NewRecordID(wire.Parent.RecordName, id.Zone())
		if err == nil {
			record.parent = &parent
		}
	}
	if wire.Share != nil && wire.Share.RecordName != "" {
		shareZone := id.Zone()
		if wire.Share.ZoneID != nil {
			shareZone = *wire.Share.ZoneID
		}
		if shareID, err := ref.NewRecordID(wire.Share.RecordName, shareZone); err == nil {
			record.share = &field.Reference{Record: shareID, Action: field.ActionNone}
		}
	}
	record.created = wire.Created.stamp()
	record.modified = wire.Modified.stamp()
	return record, skipped, nil
}

func (s *StampWire) stamp() Stamp {
	if s == nil {
		return Stamp{}
	}
	return Stamp{
		Time:           time.UnixMilli(s.Timestamp).UTC(),
		UserRecordName: s.UserRecordName,
		DeviceID:       s.DeviceID,
	}
}
