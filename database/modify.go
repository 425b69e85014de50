// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/ref"
	"github.com/bureau-foundation/recordwire/record"
)

// SavePolicy decides how much of an existing record a save sends and
// whether the server checks the change tag.
type SavePolicy int

const (
	// IfServerRecordUnchanged sends the changed keys with the record's
	// change tag. The save fails with CONFLICT if the server's copy has
	// moved on.
	IfServerRecordUnchanged SavePolicy = iota

	// ChangedKeys sends the changed keys and overwrites them regardless
	// of the server's copy.
	ChangedKeys

	// AllKeys sends every key and overwrites the server's copy.
	AllKeys
)

func (p SavePolicy) String() string {
	switch p {
	case IfServerRecordUnchanged:
		return "if-server-record-unchanged"
	case ChangedKeys:
		return "changed-keys"
	case AllKeys:
		return "all-keys"
	default:
		return fmt.Sprintf("SavePolicy(%d)", int(p))
	}
}

// Operation types on the wire.
const (
	opCreate      = "create"
	opUpdate      = "update"
	opForceUpdate = "forceUpdate"
	opForceDelete = "forceDelete"
)

// ModifyOptions controls a modify call.
type ModifyOptions struct {
	// Policy applies to saves of records that already exist. New
	// records are always created with every key.
	Policy SavePolicy

	// Atomic asks the server to apply the batch all-or-nothing. It is
	// ignored for default zones, which do not support it.
	Atomic bool

	// DesiredKeys limits the fields returned for saved records. Empty
	// means all.
	DesiredKeys []string
}

// ModifyResult holds the per-item outcome of a modify call, keyed by
// record ID.
type ModifyResult struct {
	Saved   map[ref.RecordID]Result[*record.Record]
	Deleted map[ref.RecordID]Result[ref.RecordID]
}

func newModifyResult() *ModifyResult {
	return &ModifyResult{
		Saved:   make(map[ref.RecordID]Result[*record.Record]),
		Deleted: make(map[ref.RecordID]Result[ref.RecordID]),
	}
}

// Err joins every per-item error, sorted by message, or returns nil
// when every item succeeded.
func (r *ModifyResult) Err() error {
	var errs []error
	for _, result := range r.Saved {
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	for _, result := range r.Deleted {
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	slices.SortFunc(errs, func(a, b error) int {
		return strings.Compare(a.Error(), b.Error())
	})
	return errors.Join(errs...)
}

type modifyRequest struct {
	Operations  []operationWire `json:"operations"`
	ZoneID      *ref.ZoneID     `json:"zoneID,omitempty"`
	Atomic      bool            `json:"atomic"`
	DesiredKeys []string        `json:"desiredKeys,omitempty"`
}

type operationWire struct {
	OperationType string      `json:"operationType"`
	Record        record.Wire `json:"record"`
}

type recordsResponse struct {
	Records []json.RawMessage `json:"records"`
}

// savePlan is what one save transmits.
type savePlan struct {
	operation string
	keys      []string
	changeTag bool
}

func planSave(r *record.Record, policy SavePolicy) savePlan {
	if r.IsNew() {
		return savePlan{operation: opCreate, keys: r.Keys()}
	}
	switch policy {
	case ChangedKeys:
		return savePlan{operation: opForceUpdate, keys: r.ChangedKeys()}
	case AllKeys:
		keys := r.Keys()
		for _, key := range r.ChangedKeys() {
			if !slices.Contains(keys, key) {
				keys = append(keys, key)
			}
		}
		slices.Sort(keys)
		return savePlan{operation: opForceUpdate, keys: keys}
	default:
		return savePlan{operation: opUpdate, keys: r.ChangedKeys(), changeTag: true}
	}
}

// ModifyZone saves and deletes records in one zone with a single
// request. Saves are sent before deletes. Every record must belong to
// zone. Per-record failures are reported in the result; the error is
// for failures of the call as a whole.
func (c *Client) ModifyZone(ctx context.Context, zone ref.ZoneID, saves []*record.Record, deletes []ref.RecordID, options ModifyOptions) (*ModifyResult, error) {
	const op = "records/modify"
	zone = zone.Canonical()

	seen := make(map[ref.RecordID]bool, len(saves)+len(deletes))
	checkID := func(id ref.RecordID) error {
		if id.IsZero() {
			return apierror.MissingKey(op, "recordName")
		}
		if id.Zone() != zone {
			return fmt.Errorf("database: record %s is not in zone %s", id, zone)
		}
		if seen[id] {
			return fmt.Errorf("database: record %s appears more than once in one modify", id)
		}
		seen[id] = true
		return nil
	}
	for _, r := range saves {
		if err := checkID(r.ID()); err != nil {
			return nil, err
		}
	}
	for _, id := range deletes {
		if err := checkID(id); err != nil {
			return nil, err
		}
	}

	result := newModifyResult()
	if len(saves) == 0 && len(deletes) == 0 {
		return result, nil
	}

	plans := make([]savePlan, len(saves))
	for i, r := range saves {
		plans[i] = planSave(r, options.Policy)
	}
	receipts, err := c.uploadAssets(ctx, zone, saves, plans)
	if err != nil {
		return nil, err
	}

	request := modifyRequest{
		Operations:  make([]operationWire, 0, len(saves)+len(deletes)),
		ZoneID:      &zone,
		Atomic:      options.Atomic && !zone.IsDefault(),
		DesiredKeys: options.DesiredKeys,
	}
	if options.Atomic && zone.IsDefault() {
		c.logger.Debug("atomic modify not supported in default zone, sending non-atomic", "zone", zone.String())
	}
	for i, r := range saves {
		var slots map[record.AssetSlot]field.Receipt
		if receipts != nil {
			slots = receipts[i]
		}
		wire, err := r.EncodeWithReceipts(plans[i].keys, slots)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if !plans[i].changeTag {
			wire.RecordChangeTag = ""
		}
		request.Operations = append(request.Operations, operationWire{OperationType: plans[i].operation, Record: wire})
	}
	for _, id := range deletes {
		request.Operations = append(request.Operations, operationWire{
			OperationType: opForceDelete,
			Record:        record.Wire{RecordName: id.Name(), ZoneID: &zone},
		})
	}

	var response recordsResponse
	if err := c.call(ctx, "records", "modify", request, &response); err != nil {
		return nil, err
	}
	if len(response.Records) != len(request.Operations) {
		return nil, apierror.Malformed(op, "sent %d operations, received %d results", len(request.Operations), len(response.Records))
	}

	failed := 0
	for i, raw := range response.Records {
		item, ok := classifyRecordItem(raw)
		if !ok {
			return nil, apierror.Malformed(op, "result %d has no recognizable shape: %s", i, truncateJSON(raw))
		}

		if i < len(saves) {
			id := saves[i].ID()
			switch item.shape {
			case shapeError:
				failed++
				result.Saved[id] = Result[*record.Record]{Err: item.payload.Item(apierror.ScopeRecord, id.String())}
			case shapeEntity:
				saved, err := c.decodeRecord(item.wire, zone)
				if err != nil {
					return nil, err
				}
				if saved.ID() != id {
					return nil, apierror.Malformed(op, "result %d is record %s, expected %s", i, saved.ID(), id)
				}
				result.Saved[id] = Result[*record.Record]{Value: saved}
			default:
				return nil, apierror.Malformed(op, "result %d is a deletion for a save of %s", i, id)
			}
			continue
		}

		id := deletes[i-len(saves)]
		switch item.shape {
		case shapeError:
			// Deleting a record that does not exist leaves the database
			// in the requested state.
			if item.payload.ServerErrorCode == apierror.CodeNotFound {
				result.Deleted[id] = Result[ref.RecordID]{Value: id}
				continue
			}
			failed++
			result.Deleted[id] = Result[ref.RecordID]{Err: item.payload.Item(apierror.ScopeRecord, id.String())}
		case shapeDeleted:
			if item.wire.RecordName != id.Name() {
				return nil, apierror.Malformed(op, "result %d confirms deletion of %s, expected %s", i, item.wire.RecordName, id.Name())
			}
			result.Deleted[id] = Result[ref.RecordID]{Value: id}
		default:
			return nil, apierror.Malformed(op, "result %d is a record entity for a delete of %s", i, id)
		}
	}

	c.logger.Info("modified records",
		"zone", zone.String(),
		"saves", len(saves),
		"deletes", len(deletes),
		"atomic", request.Atomic,
		"failed", failed,
	)
	return result, nil
}

// Modify saves and deletes records across any number of zones, one
// request per zone in order of first appearance. If any zone's request
// fails as a whole, Modify returns that error and no results.
func (c *Client) Modify(ctx context.Context, saves []*record.Record, deletes []ref.RecordID, options ModifyOptions) (*ModifyResult, error) {
	var zones []ref.ZoneID
	savesByZone := make(map[ref.ZoneID][]*record.Record)
	deletesByZone := make(map[ref.ZoneID][]ref.RecordID)
	addZone := func(zone ref.ZoneID) {
		if _, ok := savesByZone[zone]; ok {
			return
		}
		if _, ok := deletesByZone[zone]; ok {
			return
		}
		zones = append(zones, zone)
	}
	for _, r := range saves {
		zone := r.ID().Zone()
		addZone(zone)
		savesByZone[zone] = append(savesByZone[zone], r)
	}
	for _, id := range deletes {
		zone := id.Zone()
		addZone(zone)
		deletesByZone[zone] = append(deletesByZone[zone], id)
	}

	result := newModifyResult()
	for _, zone := range zones {
		zoneResult, err := c.ModifyZone(ctx, zone, savesByZone[zone], deletesByZone[zone], options)
		if err != nil {
			return nil, fmt.Errorf("zone %s: %w", zone, err)
		}
		for id, saved := range zoneResult.Saved {
			result.Saved[id] = saved
		}
		for id, deleted := range zoneResult.Deleted {
			result.Deleted[id] = deleted
		}
	}
	return result, nil
}

// SaveRecord saves one record and returns the server's version. A
// per-record failure is returned as the error.
func (c *Client) SaveRecord(ctx context.Context, r *record.Record, policy SavePolicy) (*record.Record, error) {
	result, err := c.ModifyZone(ctx, r.ID().Zone(), []*record.Record{r}, nil, ModifyOptions{Policy: policy})
	if err != nil {
		return nil, err
	}
	return result.Saved[r.ID()].Get()
}

// DeleteRecord deletes one record. Deleting a record that does not
// exist succeeds.
func (c *Client) DeleteRecord(ctx context.Context, id ref.RecordID) error {
	result, err := c.ModifyZone(ctx, id.Zone(), nil, []ref.RecordID{id}, ModifyOptions{})
	if err != nil {
		return err
	}
	return result.Deleted[id].Err
}

// decodeRecord converts a record entity, logging fields the codec could
// not recognize.
func (c *Client) decodeRecord(wire record.Wire, zone ref.ZoneID) (*record.Record, error) {
	decoded, skipped, err := record.FromWire(wire, zone)
	if err != nil {
		return nil, err
	}
	for _, key := range skipped {
		c.logger.Warn("skipping unrecognized field value",
			"record", decoded.ID().String(),
			"record_type", decoded.Type(),
			"field", key,
			"type", string(wire.Fields[key].Type),
		)
	}
	return decoded, nil
}

func truncateJSON(raw json.RawMessage) string {
	const limit = 200
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
