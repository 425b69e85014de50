// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package field

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/bureau-foundation/recordwire/lib/ref"
)

// Tag is a wire type tag.
type Tag string

const (
	TagString    Tag = "STRING"
	TagInt64     Tag = "INT64"
	TagDouble    Tag = "DOUBLE"
	TagTimestamp Tag = "TIMESTAMP"
	TagBytes     Tag = "BYTES"
	TagLocation  Tag = "LOCATION"
	TagReference Tag = "REFERENCE"
	TagAsset     Tag = "ASSETID"

	// TagUnknownList is sent by the server for lists it cannot type,
	// in practice empty ones.
	TagUnknownList Tag = "UNKNOWN_LIST"

	listSuffix = "_LIST"
)

// List returns the list tag for element tag t, e.g. STRING_LIST.
func (t Tag) List() Tag { return t + listSuffix }

// IsList reports whether t is a list tag.
func (t Tag) IsList() bool {
	return len(t) > len(listSuffix) && t[len(t)-len(listSuffix):] == listSuffix
}

// Elem returns the element tag of a list tag, or "" if t is not one.
func (t Tag) Elem() Tag {
	if !t.IsList() {
		return ""
	}
	return t[:len(t)-len(listSuffix)]
}

func (t Tag) scalar() bool {
	switch t {
	case TagString, TagInt64, TagDouble, TagTimestamp, TagBytes, TagLocation, TagReference, TagAsset:
		return true
	}
	return false
}

// Value is a field value. The set of implementations is closed: String,
// Int64, Double, Bool, Timestamp, Bytes, Location, Reference, *Asset,
// and List.
type Value interface {
	// Tag returns the value's wire type. Bool reports TagInt64.
	Tag() Tag
	isValue()
}

type (
	String string
	Int64  int64
	Double float64
	Bool   bool
	Bytes  []byte
)

func (String) Tag() Tag { return TagString }
func (Int64) Tag() Tag  { return TagInt64 }
func (Double) Tag() Tag { return TagDouble }
func (Bool) Tag() Tag   { return TagInt64 }
func (Bytes) Tag() Tag  { return TagBytes }

func (String) isValue() {}
func (Int64) isValue()  {}
func (Double) isValue() {}
func (Bool) isValue()   {}
func (Bytes) isValue()  {}

// Timestamp is a UTC point in time with millisecond precision, the
// resolution of the wire form. NewTimestamp is the only way to build a
// non-zero one, so every Timestamp survives an encode/decode round
// trip unchanged.
type Timestamp struct {
	t time.Time
}

// NewTimestamp truncates t to the millisecond and converts it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: time.UnixMilli(t.UnixMilli()).UTC()}
}

// Time returns the timestamp as a time.Time.
func (t Timestamp) Time() time.Time { return t.t }

func (Timestamp) Tag() Tag { return TagTimestamp }
func (Timestamp) isValue() {}

// Location is a geographic position. Only Latitude and Longitude are
// required on the wire.
type Location struct {
	Latitude           float64
	Longitude          float64
	HorizontalAccuracy float64
	VerticalAccuracy   float64
	Altitude           float64
	Speed              float64
	Course             float64
	// Timestamp is when the position was measured; the zero time is
	// omitted on the wire.
	Timestamp time.Time
}

func (l Location) withoutTime() Location {
	l.Timestamp = time.Time{}
	return l
}

func (Location) Tag() Tag { return TagLocation }
func (Location) isValue() {}

// ReferenceAction controls what happens to the referring record when
// the referenced record is deleted.
type ReferenceAction string

const (
	ActionNone       ReferenceAction = "NONE"
	ActionDeleteSelf ReferenceAction = "DELETE_SELF"
	ActionValidate   ReferenceAction = "VALIDATE"
)

// Reference points at another record.
type Reference struct {
	Record ref.RecordID
	// Action defaults to ActionNone when empty.
	Action ReferenceAction
}

func (Reference) Tag() Tag { return TagReference }
func (Reference) isValue() {}

func (r Reference) action() ReferenceAction {
	if r.Action == "" {
		return ActionNone
	}
	return r.Action
}

// List is a homogeneous list of scalar values. Lists do not nest.
type List struct {
	elem  Tag
	items []Value
}

// NewList builds a list from items, which must be non-empty, scalar,
// and of one type. Bool and Int64 items mix freely since both are
// INT64 on the wire.
func NewList(items ...Value) (List, error) {
	if len(items) == 0 {
		return List{}, fmt.Errorf("empty list needs an element type: use EmptyList")
	}
	elem := items[0].Tag()
	for i, item := range items {
		if _, nested := item.(List); nested {
			return List{}, fmt.Errorf("list item %d: lists cannot nest", i)
		}
		if item.Tag() != elem {
			return List{}, fmt.Errorf("list item %d is %s, list is %s", i, item.Tag(), elem)
		}
	}
	return List{elem: elem, items: append([]Value(nil), items...)}, nil
}

// EmptyList returns an empty list of elem. An empty elem means the
// element type is unknown; such a list decodes back as an empty
// string list.
func EmptyList(elem Tag) List { return List{elem: elem} }

// Elem returns the element tag, "" for an empty list of unknown type.
func (l List) Elem() Tag { return l.elem }

// Items returns the list items. The returned slice must not be
// modified.
func (l List) Items() []Value { return l.items }

// Len returns the number of items.
func (l List) Len() int { return len(l.items) }

// Tag returns the list tag, or TagUnknownList when the element type is
// unknown.
func (l List) Tag() Tag {
	if l.elem == "" {
		return TagUnknownList
	}
	return l.elem.List()
}

func (List) isValue() {}

// Equal reports whether two values carry the same data as the wire
// sees it. Bool compares equal to the Int64 it encodes as.
func Equal(a, b Value) bool {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case String, Int64:
		return a == b
	case Location:
		y, ok := b.(Location)
		return ok && x.Timestamp.Equal(y.Timestamp) && x.withoutTime() == y.withoutTime()
	case Double:
		y, ok := b.(Double)
		return ok && (x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y))))
	case Timestamp:
		y, ok := b.(Timestamp)
		return ok && x.Time().Equal(y.Time())
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x, y)
	case Reference:
		y, ok := b.(Reference)
		return ok && x.Record == y.Record && x.action() == y.action()
	case *Asset:
		y, ok := b.(*Asset)
		return ok && x.equal(y)
	case List:
		y, ok := b.(List)
		if !ok || len(x.items) != len(y.items) {
			return false
		}
		if len(x.items) > 0 && x.elem != y.elem {
			return false
		}
		for i := range x.items {
			if !Equal(x.items[i], y.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func normalize(v Value) Value {
	if b, ok := v.(Bool); ok {
		if b {
			return Int64(1)
		}
		return Int64(0)
	}
	return v
}
