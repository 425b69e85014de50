// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/ref"
	"github.com/bureau-foundation/recordwire/record"
)

// assetServer answers token requests, uploads, and modifies. Uploaded
// files are kept by receipt so tests can check what was sent.
type assetServer struct {
	t         *testing.T
	baseURL   string
	uploads   atomic.Int32
	uploaded  map[string]string
	paths     map[string]string
	onUpload  func()
	tokenBody []byte

	// rewriteTokens, when set, edits the token response before it is
	// sent.
	rewriteTokens func([]map[string]any) []map[string]any
}

func (s *assetServer) handle(w http.ResponseWriter, r *http.Request, body []byte) {
	t := s.t
	switch {
	case strings.HasSuffix(r.URL.Path, "/assets/upload"):
		s.tokenBody = body
		var request struct {
			Tokens []struct {
				RecordName string `json:"recordName"`
				FieldName  string `json:"fieldName"`
			} `json:"tokens"`
		}
		decodeBody(t, body, &request)
		tokens := make([]map[string]any, len(request.Tokens))
		for i, token := range request.Tokens {
			tokens[i] = map[string]any{
				"recordName": token.RecordName,
				"fieldName":  token.FieldName,
				"url":        fmt.Sprintf("%s/upload/%s/%s/%d", s.baseURL, token.RecordName, token.FieldName, i),
			}
		}
		if s.rewriteTokens != nil {
			tokens = s.rewriteTokens(tokens)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"tokens": tokens})

	case strings.HasPrefix(r.URL.Path, "/upload/"):
		n := s.uploads.Add(1)
		if r.Header.Get("X-Test-Auth") != "" {
			t.Error("upload URL request was authenticated")
		}
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("upload Content-Type: %v", err)
			return
		}
		part, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).NextPart()
		if err != nil {
			t.Errorf("reading multipart: %v", err)
			return
		}
		content, _ := io.ReadAll(part)
		receipt := fmt.Sprintf("rcpt-%d", n)
		s.uploaded[receipt] = part.FormName() + ":" + part.FileName() + ":" + string(content)
		s.paths[receipt] = r.URL.Path
		if s.onUpload != nil {
			s.onUpload()
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"singleFile": map[string]any{
			"fileChecksum":      "ck",
			"size":              len(content),
			"receipt":           receipt,
			"wrappingKey":       "wk",
			"referenceChecksum": "rc",
		}})

	case strings.HasSuffix(r.URL.Path, "/records/modify"):
		echoModify(t, w, body)

	default:
		t.Errorf("unexpected request to %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newAssetTestClient(t *testing.T) (*Client, *recorder, *assetServer) {
	t.Helper()
	assets := &assetServer{t: t, uploaded: make(map[string]string), paths: make(map[string]string)}
	client, rec, server := newTestClient(t, assets.handle)
	assets.baseURL = server.URL
	return client, rec, assets
}

// sentValue returns the raw wire value of key in the modify operation
// for recordName.
func sentValue(t *testing.T, modify modifyBody, recordName, key string) string {
	t.Helper()
	for _, operation := range modify.Operations {
		if operation.Record.RecordName != recordName {
			continue
		}
		var sent field.Wire
		if err := json.Unmarshal(operation.Record.Fields[key], &sent); err != nil {
			t.Fatalf("record %s field %s: %v", recordName, key, err)
		}
		return string(sent.Value)
	}
	t.Fatalf("no operation for record %s", recordName)
	return ""
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSaveWithAssetEndToEnd(t *testing.T) {
	client, rec, assets := newAssetTestClient(t)
	path := writeFile(t, "photo.jpg", "jpeg bytes")

	photo := record.New("Photo", recordID(t, "p1", ref.DefaultZone))
	image := field.NewAsset(path)
	photo.Set("image", image)
	photo.Set("caption", field.String("beach"))

	saved, err := client.SaveRecord(context.Background(), photo, IfServerRecordUnchanged)
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	if got := rec.count("/assets/upload"); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
	if got := assets.uploads.Load(); got != 1 {
		t.Errorf("uploads = %d, want 1", got)
	}
	if got := assets.uploaded["rcpt-1"]; got != "file:photo.jpg:jpeg bytes" {
		t.Errorf("uploaded part = %q", got)
	}

	var tokenRequest struct {
		Tokens []map[string]string `json:"tokens"`
	}
	decodeBody(t, assets.tokenBody, &tokenRequest)
	wantToken := map[string]string{"recordType": "Photo", "fieldName": "image", "recordName": "p1"}
	if len(tokenRequest.Tokens) != 1 || fmt.Sprint(tokenRequest.Tokens[0]) != fmt.Sprint(wantToken) {
		t.Errorf("token request = %v", tokenRequest.Tokens)
	}

	var modify modifyBody
	decodeBody(t, rec.last(t, "/records/modify").Body, &modify)
	var sent field.Wire
	if err := json.Unmarshal(modify.Operations[0].Record.Fields["image"], &sent); err != nil {
		t.Fatal(err)
	}
	if sent.Type != field.TagAsset || !strings.Contains(string(sent.Value), `"receipt":"rcpt-1"`) {
		t.Errorf("modify image field = %s (%s), want the upload receipt", sent.Value, sent.Type)
	}

	receipt, ok := image.Receipt()
	if !ok || receipt.Receipt != "rcpt-1" || receipt.Size != int64(len("jpeg bytes")) {
		t.Errorf("attached receipt = %+v, %v", receipt, ok)
	}
	if value, _ := saved.Get("image"); value == nil {
		t.Error("saved record has no image")
	}

	// Saving again with an unchanged file uploads nothing.
	photo.Set("caption", field.String("sunset"))
	if _, err := client.SaveRecord(context.Background(), photo, ChangedKeys); err != nil {
		t.Fatal(err)
	}
	if got := rec.count("/assets/upload"); got != 1 {
		t.Errorf("token requests after caption edit = %d, want 1", got)
	}
}

func TestStaleAssetIsReuploaded(t *testing.T) {
	client, rec, assets := newAssetTestClient(t)
	path := writeFile(t, "doc.txt", "v1")

	r := record.New("Doc", recordID(t, "d1", ref.DefaultZone))
	asset := field.NewAsset(path)
	r.Set("file", asset)
	if _, err := client.SaveRecord(context.Background(), r, IfServerRecordUnchanged); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("v2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := client.SaveRecord(context.Background(), r, AllKeys); err != nil {
		t.Fatal(err)
	}
	if got := rec.count("/assets/upload"); got != 2 {
		t.Errorf("token requests = %d, want 2", got)
	}
	if got := assets.uploaded["rcpt-2"]; got != "file:doc.txt:v2" {
		t.Errorf("second upload = %q", got)
	}
	if receipt, _ := asset.Receipt(); receipt.Receipt != "rcpt-2" {
		t.Errorf("receipt = %q, want rcpt-2", receipt.Receipt)
	}
}

func TestSharedAssetGetsTokenPerRecord(t *testing.T) {
	client, rec, assets := newAssetTestClient(t)
	shared := field.NewAsset(writeFile(t, "shared.png", "shared"))
	first := record.New("Photo", recordID(t, "a", ref.DefaultZone))
	first.Set("image", shared)
	second := record.New("Photo", recordID(t, "b", ref.DefaultZone))
	second.Set("image", shared)

	result, err := client.ModifyZone(context.Background(), ref.DefaultZone, []*record.Record{first, second}, nil, ModifyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := result.Err(); err != nil {
		t.Fatal(err)
	}

	var tokenRequest struct {
		Tokens []map[string]string `json:"tokens"`
	}
	decodeBody(t, assets.tokenBody, &tokenRequest)
	var tuples []string
	for _, token := range tokenRequest.Tokens {
		tuples = append(tuples, token["recordType"]+"/"+token["recordName"]+"/"+token["fieldName"])
	}
	if want := []string{"Photo/a/image", "Photo/b/image"}; fmt.Sprint(tuples) != fmt.Sprint(want) {
		t.Errorf("token tuples = %v, want %v", tuples, want)
	}
	if got := rec.count("/assets/upload"); got != 1 {
		t.Errorf("token requests = %d, want 1 for the whole batch", got)
	}
	if got := assets.uploads.Load(); got != 2 {
		t.Errorf("uploads = %d, want 2", got)
	}

	var modify modifyBody
	decodeBody(t, rec.last(t, "/records/modify").Body, &modify)
	for _, want := range []struct{ name, receipt, path string }{
		{"a", "rcpt-1", "/upload/a/image/0"},
		{"b", "rcpt-2", "/upload/b/image/1"},
	} {
		if got := sentValue(t, modify, want.name, "image"); !strings.Contains(got, `"receipt":"`+want.receipt+`"`) {
			t.Errorf("record %s image = %s, want receipt %s", want.name, got, want.receipt)
		}
		if got := assets.paths[want.receipt]; got != want.path {
			t.Errorf("receipt %s uploaded to %s, want %s", want.receipt, got, want.path)
		}
	}
}

func TestAssetListsUploadEverySlot(t *testing.T) {
	client, rec, assets := newAssetTestClient(t)
	shared := field.NewAsset(writeFile(t, "shared.png", "shared"))
	other := field.NewAsset(writeFile(t, "other.png", "other"))
	pages, err := field.NewList(shared, other)
	if err != nil {
		t.Fatal(err)
	}

	album := record.New("Album", recordID(t, "a1", ref.DefaultZone))
	album.Set("pages", pages)
	album.Set("cover", shared)

	if _, err := client.SaveRecord(context.Background(), album, IfServerRecordUnchanged); err != nil {
		t.Fatal(err)
	}
	if got := rec.count("/assets/upload"); got != 1 {
		t.Errorf("token requests = %d, want 1 for the whole batch", got)
	}
	if got := assets.uploads.Load(); got != 3 {
		t.Errorf("uploads = %d, want 3 (one per slot)", got)
	}

	var modify modifyBody
	decodeBody(t, rec.last(t, "/records/modify").Body, &modify)
	if got := sentValue(t, modify, "a1", "cover"); !strings.Contains(got, `"receipt":"rcpt-1"`) {
		t.Errorf("cover = %s, want rcpt-1", got)
	}
	pagesSent := sentValue(t, modify, "a1", "pages")
	second, third := strings.Index(pagesSent, `"receipt":"rcpt-2"`), strings.Index(pagesSent, `"receipt":"rcpt-3"`)
	if second < 0 || third < 0 || second > third {
		t.Errorf("pages = %s, want rcpt-2 then rcpt-3", pagesSent)
	}
	if got := assets.uploaded["rcpt-3"]; got != "file:other.png:other" {
		t.Errorf("third upload = %q", got)
	}
}

func TestAssetTokensMatchedByRecordAndField(t *testing.T) {
	client, rec, assets := newAssetTestClient(t)
	assets.rewriteTokens = func(tokens []map[string]any) []map[string]any {
		slices.Reverse(tokens)
		return tokens
	}
	first := record.New("Photo", recordID(t, "a", ref.DefaultZone))
	first.Set("image", field.NewAsset(writeFile(t, "a.png", "A")))
	second := record.New("Photo", recordID(t, "b", ref.DefaultZone))
	second.Set("image", field.NewAsset(writeFile(t, "b.png", "B")))

	if _, err := client.Modify(context.Background(), []*record.Record{first, second}, nil, ModifyOptions{}); err != nil {
		t.Fatal(err)
	}
	for receipt, content := range assets.uploaded {
		path := assets.paths[receipt]
		if strings.HasSuffix(content, ":A") != strings.HasPrefix(path, "/upload/a/") {
			t.Errorf("receipt %s: %q uploaded to %s", receipt, content, path)
		}
	}

	var modify modifyBody
	decodeBody(t, rec.last(t, "/records/modify").Body, &modify)
	for _, name := range []string{"a", "b"} {
		sent := sentValue(t, modify, name, "image")
		for receipt, path := range assets.paths {
			if strings.Contains(sent, `"receipt":"`+receipt+`"`) && !strings.HasPrefix(path, "/upload/"+name+"/") {
				t.Errorf("record %s sent receipt %s from upload %s", name, receipt, path)
			}
		}
	}
}

func TestAssetTokenForUnknownFieldFails(t *testing.T) {
	client, rec, assets := newAssetTestClient(t)
	assets.rewriteTokens = func(tokens []map[string]any) []map[string]any {
		tokens[0]["fieldName"] = "thumbnail"
		return tokens
	}
	r := record.New("Photo", recordID(t, "p1", ref.DefaultZone))
	r.Set("image", field.NewAsset(writeFile(t, "p.png", "P")))

	_, err := client.SaveRecord(context.Background(), r, IfServerRecordUnchanged)
	if !apierror.IsKind(err, apierror.KindMalformedResponse) {
		t.Errorf("error = %v, want KindMalformedResponse", err)
	}
	if got := assets.uploads.Load(); got != 0 {
		t.Errorf("uploads = %d, want 0", got)
	}
	if got := rec.count("/records/modify"); got != 0 {
		t.Errorf("modify requests = %d, want 0", got)
	}
}

func TestAssetNotLocal(t *testing.T) {
	client, rec, _ := newAssetTestClient(t)
	r := record.New("Photo", recordID(t, "p1", ref.DefaultZone))
	r.Set("image", field.NewAsset(filepath.Join(t.TempDir(), "missing.jpg")))

	_, err := client.SaveRecord(context.Background(), r, IfServerRecordUnchanged)
	if !apierror.IsKind(err, apierror.KindAssetNotLocal) {
		t.Errorf("error = %v, want KindAssetNotLocal", err)
	}
	if len(rec.all()) != 0 {
		t.Errorf("server received %d requests", len(rec.all()))
	}
}

func TestAssetOutsideTransmittedKeysIgnored(t *testing.T) {
	client, rec, _ := newAssetTestClient(t)
	id := recordID(t, "p1", ref.DefaultZone)
	r := existingRecord(t, id, "tag-1", map[string]field.Value{"caption": field.String("x")})
	// A pending asset under a key this save does not send.
	r.Set("image", field.NewAsset("/does/not/exist"))
	r.ClearChanges()
	r.Set("caption", field.String("y"))

	if _, err := client.SaveRecord(context.Background(), r, ChangedKeys); err != nil {
		t.Fatal(err)
	}
	if got := rec.count("/assets/upload"); got != 0 {
		t.Errorf("token requests = %d, want 0", got)
	}
}

func TestAssetUploadCancellation(t *testing.T) {
	client, rec, assets := newAssetTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	assets.onUpload = cancel

	first := field.NewAsset(writeFile(t, "1.bin", "one"))
	second := field.NewAsset(writeFile(t, "2.bin", "two"))
	r := record.New("Pair", recordID(t, "p1", ref.DefaultZone))
	r.Set("first", first)
	r.Set("second", second)

	_, err := client.SaveRecord(ctx, r, IfServerRecordUnchanged)
	if !apierror.IsKind(err, apierror.KindCancelled) {
		t.Errorf("error = %v, want KindCancelled", err)
	}
	if got := assets.uploads.Load(); got != 1 {
		t.Errorf("uploads = %d, want 1 (stop after cancellation)", got)
	}
	if got := rec.count("/records/modify"); got != 0 {
		t.Errorf("modify requests = %d, want 0", got)
	}
}
