// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/recordwire/lib/config"
	"github.com/bureau-foundation/recordwire/lib/ref"
)

const (
	testContainer = "iCloud.com.example.notes"
	testPrefix    = "/database/1/" + testContainer + "/development/private/"
)

// stubAuthenticator records what it was asked to cover and marks the
// request so handlers can check it was applied.
type stubAuthenticator struct {
	mu       sync.Mutex
	subpaths []string
	bodies   []string
}

func (a *stubAuthenticator) Authenticate(request *http.Request, body []byte, subpath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subpaths = append(a.subpaths, subpath)
	a.bodies = append(a.bodies, string(body))
	request.Header.Set("X-Test-Auth", "ok")
	return nil
}

// recorder captures every request a test server receives.
type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

func (r *recorder) add(request *http.Request, body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{
		Method: request.Method,
		Path:   request.URL.Path,
		Header: request.Header.Clone(),
		Body:   body,
	})
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

// count returns the number of requests whose path ends with suffix.
func (r *recorder) count(suffix string) int {
	n := 0
	for _, request := range r.all() {
		if strings.HasSuffix(request.Path, suffix) {
			n++
		}
	}
	return n
}

// last returns the most recent request whose path ends with suffix.
func (r *recorder) last(t *testing.T, suffix string) recordedRequest {
	t.Helper()
	requests := r.all()
	for i := len(requests) - 1; i >= 0; i-- {
		if strings.HasSuffix(requests[i].Path, suffix) {
			return requests[i]
		}
	}
	t.Fatalf("no request to *%s", suffix)
	return recordedRequest{}
}

// newTestClient starts a server running handler and returns a client
// pointed at it. Every request body is recorded before handler runs.
func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body []byte)) (*Client, *recorder, *httptest.Server) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.add(r, body)
		handler(w, r, body)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:       server.URL,
		Container:     testContainer,
		Environment:   config.Development,
		Database:      config.Private,
		Authenticator: &stubAuthenticator{},
		HTTPClient:    server.Client(),
		Logger:        slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, rec, server
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, value any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func decodeBody(t *testing.T, body []byte, into any) {
	t.Helper()
	if err := json.Unmarshal(body, into); err != nil {
		t.Fatalf("decoding request body %s: %v", body, err)
	}
}

func zoneID(t *testing.T, name string) ref.ZoneID {
	t.Helper()
	zone, err := ref.NewZoneID(name, "")
	if err != nil {
		t.Fatal(err)
	}
	return zone
}

func recordID(t *testing.T, name string, zone ref.ZoneID) ref.RecordID {
	t.Helper()
	id, err := ref.NewRecordID(name, zone)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// modifyBody is the decoded form of a records/modify request, with
// field values left raw.
type modifyBody struct {
	Operations []struct {
		OperationType string `json:"operationType"`
		Record        struct {
			RecordName      string                     `json:"recordName"`
			RecordType      string                     `json:"recordType"`
			RecordChangeTag string                     `json:"recordChangeTag"`
			Fields          map[string]json.RawMessage `json:"fields"`
			ZoneID          *struct {
				ZoneName string `json:"zoneName"`
			} `json:"zoneID"`
		} `json:"record"`
	} `json:"operations"`
	ZoneID *struct {
		ZoneName string `json:"zoneName"`
	} `json:"zoneID"`
	Atomic bool `json:"atomic"`
}

// echoModify answers a records/modify request by echoing every save as
// an entity with a fresh change tag and confirming every delete.
func echoModify(t *testing.T, w http.ResponseWriter, body []byte) {
	t.Helper()
	var request modifyBody
	decodeBody(t, body, &request)
	records := make([]map[string]any, 0, len(request.Operations))
	for _, operation := range request.Operations {
		if strings.Contains(strings.ToLower(operation.OperationType), "delete") {
			records = append(records, map[string]any{"recordName": operation.Record.RecordName, "deleted": true})
			continue
		}
		records = append(records, map[string]any{
			"recordName":      operation.Record.RecordName,
			"recordType":      operation.Record.RecordType,
			"recordChangeTag": "tag-" + operation.Record.RecordName,
			"fields":          operation.Record.Fields,
		})
	}
	writeJSON(t, w, http.StatusOK, map[string]any{"records": records})
}
