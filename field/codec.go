// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package field

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bureau-foundation/recordwire/lib/ref"
)

// ErrAssetNotUploaded is returned when encoding an asset that has no
// upload receipt.
var ErrAssetNotUploaded = errors.New("asset has not been uploaded")

// Wire is the tagged dictionary form of a field value. Type is omitted
// for booleans and for empty lists of unknown element type.
type Wire struct {
	Value json.RawMessage `json:"value"`
	Type  Tag             `json:"type,omitempty"`
}

// Null is the wire form of a removed field.
var Null = Wire{Value: json.RawMessage("null")}

// IsNull reports whether w carries a JSON null value.
func (w Wire) IsNull() bool {
	trimmed := bytes.TrimSpace(w.Value)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

type locationWire struct {
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	HorizontalAccuracy float64  `json:"horizontalAccuracy,omitempty"`
	VerticalAccuracy   float64  `json:"verticalAccuracy,omitempty"`
	Altitude           float64  `json:"altitude,omitempty"`
	Speed              float64  `json:"speed,omitempty"`
	Course             float64  `json:"course,omitempty"`
	Timestamp          *int64   `json:"timestamp,omitempty"`
}

type referenceWire struct {
	RecordName string          `json:"recordName"`
	ZoneID     *ref.ZoneID     `json:"zoneID,omitempty"`
	Action     ReferenceAction `json:"action,omitempty"`
}

type assetWire struct {
	Receipt
	DownloadURL string `json:"downloadURL,omitempty"`
}

// ReceiptFunc supplies the receipt to send for one asset occurrence.
// Index is the item position within an asset list, and 0 for a single
// asset. Returning false falls back to the asset's own receipt.
type ReceiptFunc func(index int, asset *Asset) (Receipt, bool)

// Encode produces the wire dictionary for v.
func Encode(v Value) (Wire, error) {
	return EncodeWith(v, nil)
}

// EncodeWith is Encode with assets taking their receipts from receipts
// where it has one.
func EncodeWith(v Value, receipts ReceiptFunc) (Wire, error) {
	if v == nil {
		return Wire{}, fmt.Errorf("encoding nil field value")
	}
	raw, err := encodeValue(v, 0, receipts)
	if err != nil {
		return Wire{}, err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Wire{}, fmt.Errorf("encoding %s value: %w", v.Tag(), err)
	}

	tag := v.Tag()
	switch x := v.(type) {
	case Bool:
		tag = ""
	case List:
		if x.elem == "" {
			tag = ""
		}
	}
	return Wire{Value: data, Type: tag}, nil
}

func encodeValue(v Value, index int, receipts ReceiptFunc) (any, error) {
	switch x := v.(type) {
	case String:
		return string(x), nil
	case Int64:
		return int64(x), nil
	case Double:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("encoding DOUBLE: %v has no JSON form", float64(x))
		}
		return float64(x), nil
	case Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case Timestamp:
		return x.Time().UnixMilli(), nil
	case Bytes:
		return base64.StdEncoding.EncodeToString(x), nil
	case Location:
		latitude, longitude := x.Latitude, x.Longitude
		wire := locationWire{
			Latitude:           &latitude,
			Longitude:          &longitude,
			HorizontalAccuracy: x.HorizontalAccuracy,
			VerticalAccuracy:   x.VerticalAccuracy,
			Altitude:           x.Altitude,
			Speed:              x.Speed,
			Course:             x.Course,
		}
		if !x.Timestamp.IsZero() {
			milliseconds := x.Timestamp.UnixMilli()
			wire.Timestamp = &milliseconds
		}
		return wire, nil
	case Reference:
		if x.Record.IsZero() {
			return nil, fmt.Errorf("encoding REFERENCE: empty record ID")
		}
		zone := x.Record.Zone()
		return referenceWire{RecordName: x.Record.Name(), ZoneID: &zone, Action: x.action()}, nil
	case *Asset:
		if x == nil {
			return nil, fmt.Errorf("encoding nil ASSETID")
		}
		if receipts != nil {
			if receipt, ok := receipts(index, x); ok {
				return receipt, nil
			}
		}
		receipt, ok := x.Receipt()
		if !ok {
			return nil, fmt.Errorf("encoding ASSETID %s: %w", x.Path(), ErrAssetNotUploaded)
		}
		return receipt, nil
	case List:
		items := make([]any, 0, len(x.items))
		for i, item := range x.items {
			encoded, err := encodeValue(item, i, receipts)
			if err != nil {
				return nil, fmt.Errorf("list item %d: %w", i, err)
			}
			items = append(items, encoded)
		}
		return items, nil
	}
	return nil, fmt.Errorf("encoding unsupported field value %T", v)
}

// Decode turns a wire dictionary back into a value. It reports false
// when the value is null, the tag is unknown, or the JSON does not
// match the tag; such fields are unrecognized and must be skipped.
func Decode(w Wire) (Value, bool) {
	if w.IsNull() {
		return nil, false
	}
	raw := bytes.TrimSpace(w.Value)

	switch {
	case w.Type == "":
		return infer(raw)
	case w.Type == TagUnknownList:
		if isEmptyArray(raw) {
			return EmptyList(TagString), true
		}
		value, ok := infer(raw)
		if _, isList := value.(List); !ok || !isList {
			return nil, false
		}
		return value, true
	case w.Type.IsList():
		elem := w.Type.Elem()
		if !elem.scalar() {
			return nil, false
		}
		return decodeList(raw, elem)
	case w.Type.scalar():
		return decodeScalar(raw, w.Type)
	}
	return nil, false
}

func decodeList(raw []byte, elem Tag) (Value, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	list := List{elem: elem, items: make([]Value, 0, len(items))}
	for _, item := range items {
		value, ok := decodeScalar(bytes.TrimSpace(item), elem)
		if !ok {
			return nil, false
		}
		list.items = append(list.items, value)
	}
	return list, true
}

func decodeScalar(raw []byte, tag Tag) (Value, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	switch tag {
	case TagString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		return String(s), true
	case TagInt64:
		n, ok := decodeInt(raw)
		return Int64(n), ok
	case TagDouble:
		f, ok := decodeFloat(raw)
		return Double(f), ok
	case TagTimestamp:
		f, ok := decodeFloat(raw)
		if !ok {
			return nil, false
		}
		return NewTimestamp(time.UnixMilli(int64(f))), true
	case TagBytes:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
				return nil, false
			}
		}
		return Bytes(data), true
	case TagLocation:
		return decodeLocation(raw)
	case TagReference:
		return decodeReference(raw)
	case TagAsset:
		if raw[0] != '{' {
			return nil, false
		}
		var wire assetWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, false
		}
		receipt := wire.Receipt
		return &Asset{receipt: &receipt, downloadURL: wire.DownloadURL}, true
	}
	return nil, false
}

func decodeLocation(raw []byte) (Value, bool) {
	var wire locationWire
	if raw[0] != '{' || json.Unmarshal(raw, &wire) != nil {
		return nil, false
	}
	if wire.Latitude == nil || wire.Longitude == nil {
		return nil, false
	}
	location := Location{
		Latitude:           *wire.Latitude,
		Longitude:          *wire.Longitude,
		HorizontalAccuracy: wire.HorizontalAccuracy,
		VerticalAccuracy:   wire.VerticalAccuracy,
		Altitude:           wire.Altitude,
		Speed:              wire.Speed,
		Course:             wire.Course,
	}
	if wire.Timestamp != nil {
		location.Timestamp = time.UnixMilli(*wire.Timestamp).UTC()
	}
	return location, true
}

func decodeReference(raw []byte) (Value, bool) {
	var wire referenceWire
	if raw[0] != '{' || json.Unmarshal(raw, &wire) != nil {
		return nil, false
	}
	zone := ref.DefaultZone
	if wire.ZoneID != nil {
		zone = *wire.ZoneID
	}
	id, err := ref.NewRecordID(wire.RecordName, zone)
	if err != nil {
		return nil, false
	}
	switch wire.Action {
	case "", ActionNone, ActionDeleteSelf, ActionValidate:
	default:
		return nil, false
	}
	return Reference{Record: id, Action: Reference{Action: wire.Action}.action()}, true
}

func decodeInt(raw []byte) (int64, bool) {
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, false
	}
	if n, err := number.Int64(); err == nil {
		return n, true
	}
	f, err := number.Float64()
	if err != nil || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func decodeFloat(raw []byte) (float64, bool) {
	if raw[0] == '"' {
		return 0, false
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, false
	}
	f, err := number.Float64()
	return f, err == nil
}

// infer decodes an untagged value from its JSON shape. Integer
// literals become Int64, other numbers Double, true and false Bool,
// and arrays a list typed by their first element. Objects are not
// inferable.
func infer(raw []byte) (Value, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	switch raw[0] {
	case '"':
		return decodeScalar(raw, TagString)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, false
		}
		return Bool(b), true
	case '[':
		return inferList(raw)
	case '{', 'n':
		return nil, false
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return nil, false
	}
	if n, err := number.Int64(); err == nil {
		return Int64(n), true
	}
	f, err := number.Float64()
	if err != nil {
		return nil, false
	}
	return Double(f), true
}

func inferList(raw []byte) (Value, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	if len(items) == 0 {
		return EmptyList(TagString), true
	}

	first, ok := infer(bytes.TrimSpace(items[0]))
	if !ok {
		return nil, false
	}
	if _, nested := first.(List); nested {
		return nil, false
	}
	elem := first.Tag()
	list := List{elem: elem, items: make([]Value, 0, len(items))}
	for _, item := range items {
		item = bytes.TrimSpace(item)
		var value Value
		if elem == TagDouble {
			value, ok = decodeScalar(item, TagDouble)
		} else {
			value, ok = infer(item)
		}
		if !ok || value.Tag() != elem {
			return nil, false
		}
		list.items = append(list.items, value)
	}
	return list, true
}

func isEmptyArray(raw []byte) bool {
	var items []json.RawMessage
	return json.Unmarshal(raw, &items) == nil && items != nil && len(items) == 0
}
