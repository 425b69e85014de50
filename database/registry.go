// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the clients of a process by name, so code several
// layers down can reach a database without threading the client
// through every call.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register adds client under name. Names are unique.
func (r *Registry) Register(name string, client *Client) error {
	if name == "" {
		return errors.New("database: registry name is required")
	}
	if client == nil {
		return fmt.Errorf("database: registering %q: nil client", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[name]; exists {
		return fmt.Errorf("database: client %q already registered", name)
	}
	r.clients[name] = client
	return nil
}

// Client returns the client registered under name.
func (r *Registry) Client(name string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	return client, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes and removes every registered client.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, client := range r.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %q: %w", name, err))
		}
		delete(r.clients, name)
	}
	return errors.Join(errs...)
}

type registryKey struct{}

// WithRegistry returns a context carrying registry.
func WithRegistry(ctx context.Context, registry *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, registry)
}

// FromContext returns the registry carried by ctx, if any.
func FromContext(ctx context.Context) (*Registry, bool) {
	registry, ok := ctx.Value(registryKey{}).(*Registry)
	return registry, ok && registry != nil
}
