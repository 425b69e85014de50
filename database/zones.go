// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/lib/ref"
)

// Zone describes a zone as the server reports it.
type Zone struct {
	ID        ref.ZoneID
	SyncToken string
	Atomic    bool
}

type zoneWire struct {
	ZoneID    *ref.ZoneID `json:"zoneID"`
	SyncToken string      `json:"syncToken,omitempty"`
	Atomic    bool        `json:"atomic,omitempty"`
	Deleted   bool        `json:"deleted,omitempty"`
}

type zonesResponse struct {
	Zones []json.RawMessage `json:"zones"`
}

type zoneLookupRequest struct {
	Zones []ref.ZoneID `json:"zones"`
}

type zoneModifyRequest struct {
	Operations []zoneOperation `json:"operations"`
}

type zoneOperation struct {
	OperationType string   `json:"operationType"`
	Zone          zoneWire `json:"zone"`
}

// ZoneModifyResult holds the per-zone outcome of ModifyZones.
type ZoneModifyResult struct {
	Created map[ref.ZoneID]Result[Zone]
	Deleted map[ref.ZoneID]Result[ref.ZoneID]
}

type zoneItem struct {
	shape   itemShape
	payload apierror.Payload
	zone    zoneWire
}

func classifyZoneItem(raw json.RawMessage) (zoneItem, bool) {
	if payload, ok := apierror.ParsePayload(raw); ok {
		return zoneItem{shape: shapeError, payload: payload}, true
	}
	var wire zoneWire
	if err := json.Unmarshal(raw, &wire); err != nil || wire.ZoneID == nil {
		return zoneItem{}, false
	}
	if wire.Deleted {
		return zoneItem{shape: shapeDeleted, zone: wire}, true
	}
	return zoneItem{shape: shapeEntity, zone: wire}, true
}

func (w zoneWire) zone() Zone {
	return Zone{ID: w.ZoneID.Canonical(), SyncToken: w.SyncToken, Atomic: w.Atomic}
}

// ListZones returns every zone in the database.
func (c *Client) ListZones(ctx context.Context) ([]Zone, error) {
	const op = "zones/list"
	var response zonesResponse
	if err := c.call(ctx, "zones", "list", nil, &response); err != nil {
		return nil, err
	}
	zones := make([]Zone, 0, len(response.Zones))
	for i, raw := range response.Zones {
		item, ok := classifyZoneItem(raw)
		if !ok || item.shape != shapeEntity {
			return nil, apierror.Malformed(op, "zone %d has no recognizable shape: %s", i, truncateJSON(raw))
		}
		zones = append(zones, item.zone.zone())
	}
	return zones, nil
}

// LookupZones fetches zones by ID.
func (c *Client) LookupZones(ctx context.Context, ids []ref.ZoneID) (map[ref.ZoneID]Result[Zone], error) {
	const op = "zones/lookup"
	request := zoneLookupRequest{Zones: make([]ref.ZoneID, len(ids))}
	for i, id := range ids {
		request.Zones[i] = id.Canonical()
	}
	var response zonesResponse
	if err := c.call(ctx, "zones", "lookup", request, &response); err != nil {
		return nil, err
	}
	if len(response.Zones) != len(ids) {
		return nil, apierror.Malformed(op, "requested %d zones, received %d results", len(ids), len(response.Zones))
	}

	results := make(map[ref.ZoneID]Result[Zone], len(ids))
	for i, raw := range response.Zones {
		id := request.Zones[i]
		item, ok := classifyZoneItem(raw)
		if !ok {
			return nil, apierror.Malformed(op, "result %d has no recognizable shape: %s", i, truncateJSON(raw))
		}
		switch item.shape {
		case shapeError:
			results[id] = Result[Zone]{Err: item.payload.Item(apierror.ScopeZone, id.String())}
		case shapeEntity:
			results[id] = Result[Zone]{Value: item.zone.zone()}
		default:
			return nil, apierror.Malformed(op, "result %d is a deletion confirmation", i)
		}
	}
	return results, nil
}

// ModifyZones creates and deletes zones in one request. Deleting a zone
// deletes every record in it.
func (c *Client) ModifyZones(ctx context.Context, creates, deletes []ref.ZoneID) (*ZoneModifyResult, error) {
	const op = "zones/modify"
	result := &ZoneModifyResult{
		Created: make(map[ref.ZoneID]Result[Zone]),
		Deleted: make(map[ref.ZoneID]Result[ref.ZoneID]),
	}
	if len(creates) == 0 && len(deletes) == 0 {
		return result, nil
	}

	var request zoneModifyRequest
	ids := make([]ref.ZoneID, 0, len(creates)+len(deletes))
	for _, id := range creates {
		if id.IsDefault() {
			return nil, fmt.Errorf("database: %s: the default zone cannot be created", op)
		}
		canonical := id.Canonical()
		ids = append(ids, canonical)
		request.Operations = append(request.Operations, zoneOperation{OperationType: opCreate, Zone: zoneWire{ZoneID: &canonical}})
	}
	for _, id := range deletes {
		canonical := id.Canonical()
		ids = append(ids, canonical)
		request.Operations = append(request.Operations, zoneOperation{OperationType: "delete", Zone: zoneWire{ZoneID: &canonical}})
	}

	var response zonesResponse
	if err := c.call(ctx, "zones", "modify", request, &response); err != nil {
		return nil, err
	}
	if len(response.Zones) != len(ids) {
		return nil, apierror.Malformed(op, "sent %d operations, received %d results", len(ids), len(response.Zones))
	}
	for i, raw := range response.Zones {
		id := ids[i]
		item, ok := classifyZoneItem(raw)
		if !ok {
			return nil, apierror.Malformed(op, "result %d has no recognizable shape: %s", i, truncateJSON(raw))
		}
		if i < len(creates) {
			if item.shape == shapeError {
				result.Created[id] = Result[Zone]{Err: item.payload.Item(apierror.ScopeZone, id.String())}
			} else {
				result.Created[id] = Result[Zone]{Value: item.zone.zone()}
			}
			continue
		}
		if item.shape == shapeError {
			result.Deleted[id] = Result[ref.ZoneID]{Err: item.payload.Item(apierror.ScopeZone, id.String())}
		} else {
			result.Deleted[id] = Result[ref.ZoneID]{Value: id}
		}
	}
	c.logger.Info("modified zones", "created", len(creates), "deleted", len(deletes))
	return result, nil
}
