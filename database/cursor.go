// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/recordwire/lib/codec"
	"github.com/bureau-foundation/recordwire/lib/ref"
)

// Cursor is an immutable continuation point of a query: the server's
// opaque marker plus everything needed to repeat the request.
type Cursor struct {
	Marker      string
	Query       Query
	Zone        *ref.ZoneID
	DesiredKeys []string
	Limit       int
}

// cursorVersion is bumped when cursorWire changes incompatibly.
const cursorVersion = 1

type cursorWire struct {
	Version     int      `cbor:"v"`
	Marker      string   `cbor:"marker"`
	Query       []byte   `cbor:"query"`
	ZoneName    string   `cbor:"zone,omitempty"`
	ZoneOwner   string   `cbor:"owner,omitempty"`
	Zoned       bool     `cbor:"zoned,omitempty"`
	DesiredKeys []string `cbor:"keys,omitempty"`
	Limit       int      `cbor:"limit,omitempty"`
}

// MarshalBinary encodes the cursor as CBOR so callers can persist it
// and resume a query later.
func (c *Cursor) MarshalBinary() ([]byte, error) {
	query, err := c.Query.wire()
	if err != nil {
		return nil, err
	}
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encoding cursor query: %w", err)
	}
	wire := cursorWire{
		Version:     cursorVersion,
		Marker:      c.Marker,
		Query:       queryJSON,
		DesiredKeys: c.DesiredKeys,
		Limit:       c.Limit,
	}
	if c.Zone != nil {
		wire.Zoned = true
		wire.ZoneName = c.Zone.Name()
		wire.ZoneOwner = c.Zone.Owner()
	}
	return codec.Marshal(wire)
}

// UnmarshalBinary decodes a cursor produced by MarshalBinary.
func (c *Cursor) UnmarshalBinary(data []byte) error {
	var wire cursorWire
	if err := codec.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding cursor: %w", err)
	}
	if wire.Version != cursorVersion {
		return fmt.Errorf("decoding cursor: unsupported version %d", wire.Version)
	}
	var query queryWire
	if err := json.Unmarshal(wire.Query, &query); err != nil {
		return fmt.Errorf("decoding cursor query: %w", err)
	}
	decoded, err := queryFromWire(query)
	if err != nil {
		return fmt.Errorf("decoding cursor query: %w", err)
	}

	*c = Cursor{
		Marker:      wire.Marker,
		Query:       decoded,
		DesiredKeys: wire.DesiredKeys,
		Limit:       wire.Limit,
	}
	if wire.Zoned {
		zone, err := ref.NewZoneID(wire.ZoneName, wire.ZoneOwner)
		if err != nil {
			return fmt.Errorf("decoding cursor zone: %w", err)
		}
		c.Zone = &zone
	}
	return nil
}
