// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"net/http"
	"slices"
	"testing"
)

func TestRegistry(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request, body []byte) {}
	private, _, _ := newTestClient(t, handler)
	public, _, _ := newTestClient(t, handler)

	registry := NewRegistry()
	if err := registry.Register("private", private); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register("public", public); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register("private", public); err == nil {
		t.Error("duplicate name accepted")
	}
	if err := registry.Register("", public); err == nil {
		t.Error("empty name accepted")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Error("nil client accepted")
	}

	if got := registry.Names(); !slices.Equal(got, []string{"private", "public"}) {
		t.Errorf("Names = %v", got)
	}
	if client, ok := registry.Client("public"); !ok || client != public {
		t.Error("Client(public) did not return the registered client")
	}
	if _, ok := registry.Client("shared"); ok {
		t.Error("Client(shared) found an unregistered client")
	}

	if err := registry.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(registry.Names()) != 0 {
		t.Errorf("Names after Close = %v", registry.Names())
	}
}

func TestRegistryContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext found a registry in an empty context")
	}
	registry := NewRegistry()
	ctx := WithRegistry(context.Background(), registry)
	if got, ok := FromContext(ctx); !ok || got != registry {
		t.Error("FromContext did not return the attached registry")
	}
}
