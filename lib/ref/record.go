// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RecordID identifies a record: a name unique within its zone. It is
// an immutable, comparable value type.
type RecordID struct {
	name string
	zone ZoneID
}

// NewRecordID validates a record name. A zero zone selects the default
// zone.
func NewRecordID(name string, zone ZoneID) (RecordID, error) {
	if name == "" {
		return RecordID{}, fmt.Errorf("empty record name")
	}
	if err := validateName("record name", name); err != nil {
		return RecordID{}, err
	}
	return RecordID{name: name, zone: zone.Canonical()}, nil
}

// GenerateRecordID returns a record ID with a random UUID name.
func GenerateRecordID(zone ZoneID) RecordID {
	return RecordID{name: uuid.NewString(), zone: zone.Canonical()}
}

// ParseRecordID parses "name" (default zone), "name@zone", or
// "name@zone/owner".
func ParseRecordID(raw string) (RecordID, error) {
	name, zonePart, found := strings.Cut(raw, "@")
	if !found {
		return NewRecordID(name, DefaultZone)
	}
	zoneName, owner, _ := strings.Cut(zonePart, "/")
	if zoneName == "" {
		return RecordID{}, fmt.Errorf("record ID %q has empty zone after '@'", raw)
	}
	zone, err := NewZoneID(zoneName, owner)
	if err != nil {
		return RecordID{}, err
	}
	return NewRecordID(name, zone)
}

// Name returns the record name.
func (r RecordID) Name() string { return r.name }

// Zone returns the zone the record lives in.
func (r RecordID) Zone() ZoneID { return r.zone.Canonical() }

// IsZero reports whether r is the uninitialized value.
func (r RecordID) IsZero() bool { return r.name == "" }

// String returns the form ParseRecordID accepts. Records in the
// current user's default zone render as the bare name.
func (r RecordID) String() string {
	zone := r.Zone()
	if zone == DefaultZone {
		return r.name
	}
	return r.name + "@" + zone.String()
}
