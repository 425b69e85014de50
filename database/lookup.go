// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/lib/ref"
	"github.com/bureau-foundation/recordwire/record"
)

// LookupOptions controls a lookup.
type LookupOptions struct {
	// DesiredKeys limits the returned fields. Empty means all.
	DesiredKeys []string
}

type lookupRequest struct {
	Records     []lookupItem `json:"records"`
	ZoneID      *ref.ZoneID  `json:"zoneID,omitempty"`
	DesiredKeys []string     `json:"desiredKeys,omitempty"`
}

type lookupItem struct {
	RecordName string `json:"recordName"`
}

// LookupRecords fetches records by ID, one request per zone. Records
// that do not exist come back with a NOT_FOUND item error.
func (c *Client) LookupRecords(ctx context.Context, ids []ref.RecordID, options LookupOptions) (map[ref.RecordID]Result[*record.Record], error) {
	const op = "records/lookup"

	var zones []ref.ZoneID
	byZone := make(map[ref.ZoneID][]ref.RecordID)
	for _, id := range ids {
		if id.IsZero() {
			return nil, apierror.MissingKey(op, "recordName")
		}
		zone := id.Zone()
		if _, ok := byZone[zone]; !ok {
			zones = append(zones, zone)
		}
		byZone[zone] = append(byZone[zone], id)
	}

	results := make(map[ref.RecordID]Result[*record.Record], len(ids))
	for _, zone := range zones {
		zoneIDs := byZone[zone]
		request := lookupRequest{ZoneID: &zone, DesiredKeys: options.DesiredKeys}
		for _, id := range zoneIDs {
			request.Records = append(request.Records, lookupItem{RecordName: id.Name()})
		}

		var response recordsResponse
		if err := c.call(ctx, "records", "lookup", request, &response); err != nil {
			return nil, fmt.Errorf("zone %s: %w", zone, err)
		}
		if len(response.Records) != len(zoneIDs) {
			return nil, apierror.Malformed(op, "requested %d records, received %d results", len(zoneIDs), len(response.Records))
		}
		for i, raw := range response.Records {
			id := zoneIDs[i]
			item, ok := classifyRecordItem(raw)
			if !ok {
				return nil, apierror.Malformed(op, "result %d has no recognizable shape: %s", i, truncateJSON(raw))
			}
			switch item.shape {
			case shapeError:
				results[id] = Result[*record.Record]{Err: item.payload.Item(apierror.ScopeRecord, id.String())}
			case shapeEntity:
				decoded, err := c.decodeRecord(item.wire, zone)
				if err != nil {
					return nil, err
				}
				if decoded.ID() != id {
					return nil, apierror.Malformed(op, "result %d is record %s, expected %s", i, decoded.ID(), id)
				}
				results[id] = Result[*record.Record]{Value: decoded}
			default:
				return nil, apierror.Malformed(op, "result %d is a deletion confirmation", i)
			}
		}
	}
	return results, nil
}

// LookupRecord fetches one record. A per-record failure such as
// NOT_FOUND is returned as the error.
func (c *Client) LookupRecord(ctx context.Context, id ref.RecordID) (*record.Record, error) {
	results, err := c.LookupRecords(ctx, []ref.RecordID{id}, LookupOptions{})
	if err != nil {
		return nil, err
	}
	return results[id].Get()
}
