// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"fmt"
)

// DefaultZoneName is the wire name of the zone every database has.
const DefaultZoneName = "_defaultZone"

// maxNameLength bounds zone and record names.
const maxNameLength = 255

// DefaultZone is the default zone of the current user's database.
var DefaultZone = ZoneID{name: DefaultZoneName}

// ZoneID identifies a zone. It is an immutable, comparable value type.
type ZoneID struct {
	name  string
	owner string
}

// NewZoneID validates a zone name and owner. An empty name selects the
// default zone. An empty owner means the current user.
func NewZoneID(name, owner string) (ZoneID, error) {
	if name == "" {
		name = DefaultZoneName
	}
	if err := validateName("zone name", name); err != nil {
		return ZoneID{}, err
	}
	if owner != "" {
		if err := validateName("zone owner", owner); err != nil {
			return ZoneID{}, err
		}
	}
	return ZoneID{name: name, owner: owner}, nil
}

// Name returns the zone name. The zero ZoneID reports the default
// zone name.
func (z ZoneID) Name() string {
	if z.name == "" {
		return DefaultZoneName
	}
	return z.name
}

// Owner returns the owner record name, empty for the current user.
func (z ZoneID) Owner() string { return z.owner }

// IsDefault reports whether z is a default zone. Default zones do not
// support atomic batches.
func (z ZoneID) IsDefault() bool { return z.Name() == DefaultZoneName }

// IsZero reports whether z is the uninitialized value.
func (z ZoneID) IsZero() bool { return z.name == "" && z.owner == "" }

// Canonical returns z with the default zone name made explicit. Use it
// before using a possibly-zero ZoneID as a map key.
func (z ZoneID) Canonical() ZoneID {
	return ZoneID{name: z.Name(), owner: z.owner}
}

// String returns "name" or "name/owner".
func (z ZoneID) String() string {
	if z.owner == "" {
		return z.Name()
	}
	return z.Name() + "/" + z.owner
}

type zoneWire struct {
	ZoneName        string `json:"zoneName"`
	OwnerRecordName string `json:"ownerRecordName,omitempty"`
}

// MarshalJSON encodes the zone as {"zoneName", "ownerRecordName"}.
func (z ZoneID) MarshalJSON() ([]byte, error) {
	return json.Marshal(zoneWire{ZoneName: z.Name(), OwnerRecordName: z.owner})
}

// UnmarshalJSON decodes the wire dictionary, normalizing a missing
// zone name to the default zone.
func (z *ZoneID) UnmarshalJSON(data []byte) error {
	var wire zoneWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding zone ID: %w", err)
	}
	parsed, err := NewZoneID(wire.ZoneName, wire.OwnerRecordName)
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}

func validateName(what, name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("%s too long (%d > %d): %q", what, len(name), maxNameLength, name)
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] == 0x7f {
			return fmt.Errorf("%s contains control character at offset %d: %q", what, i, name)
		}
	}
	return nil
}
