// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/ref"
	"github.com/bureau-foundation/recordwire/record"
)

// existingRecord returns a record as if fetched from the server, with
// change tag tag and the given fields, and no pending changes.
func existingRecord(t *testing.T, id ref.RecordID, tag string, fields map[string]field.Value) *record.Record {
	t.Helper()
	wire := record.Wire{
		RecordName:      id.Name(),
		RecordType:      "Note",
		RecordChangeTag: tag,
		Fields:          map[string]field.Wire{},
	}
	for key, value := range fields {
		encoded, err := field.Encode(value)
		if err != nil {
			t.Fatal(err)
		}
		wire.Fields[key] = encoded
	}
	decoded, _, err := record.FromWire(wire, id.Zone())
	if err != nil {
		t.Fatal(err)
	}
	return decoded
}

func fieldKeys(fields map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestModifySavesBeforeDeletes(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		echoModify(t, w, body)
	})
	notes := zoneID(t, "Notes")

	first := record.New("Note", recordID(t, "s1", notes))
	first.Set("title", field.String("one"))
	second := record.New("Note", recordID(t, "s2", notes))
	second.Set("title", field.String("two"))
	deletes := []ref.RecordID{recordID(t, "d1", notes), recordID(t, "d2", notes)}

	result, err := client.ModifyZone(context.Background(), notes, []*record.Record{first, second}, deletes, ModifyOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var request modifyBody
	decodeBody(t, rec.last(t, "/records/modify").Body, &request)
	var order []string
	for _, operation := range request.Operations {
		order = append(order, operation.OperationType+":"+operation.Record.RecordName)
		if zone := operation.Record.ZoneID; zone == nil || zone.ZoneName != "Notes" {
			t.Errorf("%s %s record zoneID = %+v, want Notes", operation.OperationType, operation.Record.RecordName, zone)
		}
	}
	want := []string{"create:s1", "create:s2", "forceDelete:d1", "forceDelete:d2"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("operations = %v, want %v", order, want)
	}
	if request.ZoneID == nil || request.ZoneID.ZoneName != "Notes" {
		t.Errorf("zoneID = %+v", request.ZoneID)
	}

	if len(result.Saved) != 2 || len(result.Deleted) != 2 {
		t.Fatalf("result sizes = %d saved, %d deleted", len(result.Saved), len(result.Deleted))
	}
	saved, err := result.Saved[first.ID()].Get()
	if err != nil {
		t.Fatal(err)
	}
	if saved.ChangeTag() != "tag-s1" || len(saved.ChangedKeys()) != 0 {
		t.Errorf("saved record tag %q, changes %v", saved.ChangeTag(), saved.ChangedKeys())
	}
	if value, _ := saved.Get("title"); !field.Equal(value, field.String("one")) {
		t.Errorf("saved title = %v", value)
	}
	if first.ChangeTag() != "" {
		t.Error("ModifyZone mutated the caller's record")
	}
	if err := result.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestModifyAtomicity(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		echoModify(t, w, body)
	})

	for _, test := range []struct {
		zone       ref.ZoneID
		wantAtomic bool
	}{
		{ref.DefaultZone, false},
		{zoneID(t, "Notes"), true},
	} {
		r := record.New("Note", recordID(t, "n1", test.zone))
		r.Set("title", field.String("x"))
		if _, err := client.ModifyZone(context.Background(), test.zone, []*record.Record{r}, nil, ModifyOptions{Atomic: true}); err != nil {
			t.Fatal(err)
		}
		var request modifyBody
		decodeBody(t, rec.last(t, "/records/modify").Body, &request)
		if request.Atomic != test.wantAtomic {
			t.Errorf("zone %s: atomic = %v, want %v", test.zone, request.Atomic, test.wantAtomic)
		}
	}
}

func TestSavePolicies(t *testing.T) {
	id := recordID(t, "n1", ref.DefaultZone)
	tests := []struct {
		name     string
		record   func() *record.Record
		policy   SavePolicy
		wantOp   string
		wantKeys []string
		wantTag  string
	}{
		{
			name: "new record sends every field",
			record: func() *record.Record {
				r := record.New("Note", id)
				r.Set("title", field.String("t"))
				r.Set("body", field.String("b"))
				r.ClearChanges()
				return r
			},
			policy:   IfServerRecordUnchanged,
			wantOp:   "create",
			wantKeys: []string{"body", "title"},
		},
		{
			name: "if unchanged sends changed keys with tag",
			record: func() *record.Record {
				r := existingRecord(t, id, "tag-1", map[string]field.Value{"title": field.String("t"), "body": field.String("b")})
				r.Set("title", field.String("t2"))
				return r
			},
			policy:   IfServerRecordUnchanged,
			wantOp:   "update",
			wantKeys: []string{"title"},
			wantTag:  "tag-1",
		},
		{
			name: "changed keys forces without tag",
			record: func() *record.Record {
				r := existingRecord(t, id, "tag-1", map[string]field.Value{"title": field.String("t"), "body": field.String("b")})
				r.Remove("body")
				return r
			},
			policy:   ChangedKeys,
			wantOp:   "forceUpdate",
			wantKeys: []string{"body"},
		},
		{
			name: "all keys forces every key",
			record: func() *record.Record {
				r := existingRecord(t, id, "tag-1", map[string]field.Value{"title": field.String("t"), "body": field.String("b")})
				r.Set("title", field.String("t2"))
				r.Remove("stale")
				return r
			},
			policy:   AllKeys,
			wantOp:   "forceUpdate",
			wantKeys: []string{"body", "stale", "title"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
				echoModify(t, w, body)
			})
			r := test.record()
			if _, err := client.SaveRecord(context.Background(), r, test.policy); err != nil {
				t.Fatal(err)
			}
			var request modifyBody
			decodeBody(t, rec.last(t, "/records/modify").Body, &request)
			operation := request.Operations[0]
			if operation.OperationType != test.wantOp {
				t.Errorf("operationType = %q, want %q", operation.OperationType, test.wantOp)
			}
			if got := fieldKeys(operation.Record.Fields); !reflect.DeepEqual(got, test.wantKeys) {
				t.Errorf("fields = %v, want %v", got, test.wantKeys)
			}
			if operation.Record.RecordChangeTag != test.wantTag {
				t.Errorf("recordChangeTag = %q, want %q", operation.Record.RecordChangeTag, test.wantTag)
			}
		})
	}
}

func TestRemovedKeySentAsNull(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		echoModify(t, w, body)
	})
	id := recordID(t, "n1", ref.DefaultZone)
	r := existingRecord(t, id, "tag-1", map[string]field.Value{"title": field.String("t")})
	r.Remove("title")

	if _, err := client.SaveRecord(context.Background(), r, ChangedKeys); err != nil {
		t.Fatal(err)
	}
	var request modifyBody
	decodeBody(t, rec.last(t, "/records/modify").Body, &request)
	if got := string(request.Operations[0].Record.Fields["title"]); got != `{"value":null}` {
		t.Errorf("removed field = %s, want {\"value\":null}", got)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(t, w, http.StatusOK, map[string]any{"records": []any{
			map[string]any{"recordName": "a", "recordType": "Note", "recordChangeTag": "t-a"},
			map[string]any{"recordName": "b", "serverErrorCode": "CONFLICT", "reason": "oplock failed", "uuid": "diag"},
			map[string]any{"recordName": "c", "recordType": "Note", "recordChangeTag": "t-c"},
		}})
	})

	var saves []*record.Record
	for _, name := range []string{"a", "b", "c"} {
		r := record.New("Note", recordID(t, name, ref.DefaultZone))
		r.Set("title", field.String(name))
		saves = append(saves, r)
	}
	result, err := client.ModifyZone(context.Background(), ref.DefaultZone, saves, nil, ModifyOptions{})
	if err != nil {
		t.Fatalf("ModifyZone: %v", err)
	}

	for _, name := range []string{"a", "c"} {
		saved := result.Saved[recordID(t, name, ref.DefaultZone)]
		if saved.Err != nil || saved.Value.ChangeTag() != "t-"+name {
			t.Errorf("%s: %v / %v", name, saved.Value, saved.Err)
		}
	}
	failed := result.Saved[recordID(t, "b", ref.DefaultZone)]
	if failed.OK() {
		t.Fatal("b succeeded")
	}
	if !apierror.IsServerCode(failed.Err, apierror.CodeConflict) {
		t.Errorf("b error = %v, want CONFLICT", failed.Err)
	}
	var itemErr *apierror.ItemError
	if !errors.As(failed.Err, &itemErr) || itemErr.Scope != apierror.ScopeRecord || itemErr.Server.DiagnosticID != "diag" {
		t.Errorf("b error = %#v", failed.Err)
	}
	if result.Err() == nil {
		t.Error("Err() = nil with a failed item")
	}
}

func TestDeleteNonexistentRecordSucceeds(t *testing.T) {
	for _, response := range []map[string]any{
		{"recordName": "gone", "deleted": true},
		{"recordName": "gone", "serverErrorCode": "NOT_FOUND", "reason": "record not found"},
	} {
		client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
			writeJSON(t, w, http.StatusOK, map[string]any{"records": []any{response}})
		})
		if err := client.DeleteRecord(context.Background(), recordID(t, "gone", ref.DefaultZone)); err != nil {
			t.Errorf("DeleteRecord with response %v: %v", response, err)
		}
	}
}

func TestDeleteFailureReported(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(t, w, http.StatusOK, map[string]any{"records": []any{
			map[string]any{"recordName": "x", "serverErrorCode": "ACCESS_DENIED"},
		}})
	})
	err := client.DeleteRecord(context.Background(), recordID(t, "x", ref.DefaultZone))
	if !apierror.IsServerCode(err, apierror.CodeAccessDenied) {
		t.Errorf("error = %v, want ACCESS_DENIED", err)
	}
}

func TestUnrecognizedItemShapeFailsCall(t *testing.T) {
	for _, test := range []struct {
		name    string
		records []any
	}{
		{"unknown shape", []any{map[string]any{"surprise": true}}},
		{"record without type", []any{map[string]any{"recordName": "n1"}}},
		{"count mismatch", []any{}},
		{"scalar item", []any{42}},
	} {
		t.Run(test.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
				writeJSON(t, w, http.StatusOK, map[string]any{"records": test.records})
			})
			r := record.New("Note", recordID(t, "n1", ref.DefaultZone))
			r.Set("title", field.String("x"))
			_, err := client.ModifyZone(context.Background(), ref.DefaultZone, []*record.Record{r}, nil, ModifyOptions{})
			if !apierror.IsKind(err, apierror.KindMalformedResponse) {
				t.Errorf("error = %v, want KindMalformedResponse", err)
			}
		})
	}
}

func TestModifyAcrossZones(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		echoModify(t, w, body)
	})
	notes, photos := zoneID(t, "Notes"), zoneID(t, "Photos")

	inNotes := record.New("Note", recordID(t, "n1", notes))
	inNotes.Set("title", field.String("x"))
	inPhotos := record.New("Photo", recordID(t, "p1", photos))
	inPhotos.Set("caption", field.String("y"))

	result, err := client.Modify(context.Background(), []*record.Record{inNotes, inPhotos},
		[]ref.RecordID{recordID(t, "n2", notes)}, ModifyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.count("/records/modify"); got != 2 {
		t.Errorf("modify requests = %d, want one per zone", got)
	}
	if len(result.Saved) != 2 || len(result.Deleted) != 1 {
		t.Errorf("result = %d saved, %d deleted", len(result.Saved), len(result.Deleted))
	}
	if !result.Saved[inPhotos.ID()].OK() {
		t.Errorf("photo save: %v", result.Saved[inPhotos.ID()].Err)
	}
}

func TestModifyAcrossZonesFailsAsAWhole(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		if strings.Contains(string(body), `"Photos"`) {
			writeJSON(t, w, http.StatusNotFound, map[string]any{"serverErrorCode": "ZONE_NOT_FOUND"})
			return
		}
		echoModify(t, w, body)
	})
	notes, photos := zoneID(t, "Notes"), zoneID(t, "Photos")
	a := record.New("Note", recordID(t, "n1", notes))
	a.Set("title", field.String("x"))
	b := record.New("Photo", recordID(t, "p1", photos))
	b.Set("caption", field.String("y"))

	result, err := client.Modify(context.Background(), []*record.Record{a, b}, nil, ModifyOptions{})
	if !apierror.IsServerCode(err, apierror.CodeZoneNotFound) {
		t.Errorf("error = %v, want ZONE_NOT_FOUND", err)
	}
	if result != nil {
		t.Error("failed Modify returned partial results")
	}
}

func TestModifyZoneRejectsForeignRecords(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		echoModify(t, w, body)
	})
	r := record.New("Note", recordID(t, "n1", zoneID(t, "Notes")))
	r.Set("title", field.String("x"))
	if _, err := client.ModifyZone(context.Background(), ref.DefaultZone, []*record.Record{r}, nil, ModifyOptions{}); err == nil {
		t.Error("ModifyZone accepted a record from another zone")
	}
	duplicate := []ref.RecordID{recordID(t, "d", ref.DefaultZone), recordID(t, "d", ref.DefaultZone)}
	if _, err := client.ModifyZone(context.Background(), ref.DefaultZone, nil, duplicate, ModifyOptions{}); err == nil {
		t.Error("ModifyZone accepted a duplicate record")
	}
	if len(rec.all()) != 0 {
		t.Error("invalid batches reached the server")
	}
}

func TestModifySkipsUnrecognizedFields(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(t, w, http.StatusOK, map[string]any{"records": []any{map[string]any{
			"recordName":      "n1",
			"recordType":      "Note",
			"recordChangeTag": "t1",
			"fields": map[string]any{
				"title":  map[string]any{"value": "kept", "type": "STRING"},
				"future": map[string]any{"value": "x", "type": "QUANTUM"},
			},
		}}})
	})
	r := record.New("Note", recordID(t, "n1", ref.DefaultZone))
	r.Set("title", field.String("kept"))
	saved, err := client.SaveRecord(context.Background(), r, IfServerRecordUnchanged)
	if err != nil {
		t.Fatal(err)
	}
	if got := saved.Keys(); !reflect.DeepEqual(got, []string{"title"}) {
		t.Errorf("Keys() = %v, want [title]", got)
	}
}

func TestEmptyModifyMakesNoRequest(t *testing.T) {
	client, rec, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		t.Error("unexpected request")
	})
	result, err := client.Modify(context.Background(), nil, nil, ModifyOptions{})
	if err != nil || len(result.Saved) != 0 || len(result.Deleted) != 0 {
		t.Errorf("Modify(nil, nil) = %+v, %v", result, err)
	}
	if len(rec.all()) != 0 {
		t.Error("empty modify reached the server")
	}
}
