// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/lib/ref"
)

// SubscriptionType distinguishes query subscriptions from zone
// subscriptions.
type SubscriptionType string

const (
	QuerySubscription SubscriptionType = "query"
	ZoneSubscription  SubscriptionType = "zone"
)

// Trigger is a record change a query subscription fires on.
type Trigger string

const (
	FiresOnCreate Trigger = "create"
	FiresOnUpdate Trigger = "update"
	FiresOnDelete Trigger = "delete"
)

// Subscription asks the server to notify the user about changes.
// Delivery of notifications is outside this package.
type Subscription struct {
	ID   string
	Type SubscriptionType
	// Zone scopes the subscription. Required for zone subscriptions.
	Zone *ref.ZoneID
	// Query and FiresOn apply to query subscriptions.
	Query     *Query
	FiresOn   []Trigger
	FiresOnce bool
}

type subscriptionWire struct {
	SubscriptionID   string           `json:"subscriptionID"`
	SubscriptionType SubscriptionType `json:"subscriptionType,omitempty"`
	ZoneID           *ref.ZoneID      `json:"zoneID,omitempty"`
	ZoneWide         bool             `json:"zoneWide,omitempty"`
	Query            *queryWire       `json:"query,omitempty"`
	FiresOn          []Trigger        `json:"firesOn,omitempty"`
	FiresOnce        bool             `json:"firesOnce,omitempty"`
}

func (s Subscription) wire() (subscriptionWire, error) {
	if s.ID == "" {
		return subscriptionWire{}, apierror.MissingKey("subscriptions/modify", "subscriptionID")
	}
	wire := subscriptionWire{
		SubscriptionID:   s.ID,
		SubscriptionType: s.Type,
		ZoneID:           canonicalZone(s.Zone),
		FiresOn:          s.FiresOn,
		FiresOnce:        s.FiresOnce,
	}
	switch s.Type {
	case QuerySubscription:
		if s.Query == nil {
			return subscriptionWire{}, fmt.Errorf("database: query subscription %q has no query", s.ID)
		}
		query, err := s.Query.wire()
		if err != nil {
			return subscriptionWire{}, err
		}
		wire.Query = &query
		wire.ZoneWide = s.Zone == nil
	case ZoneSubscription:
		if s.Zone == nil {
			return subscriptionWire{}, fmt.Errorf("database: zone subscription %q has no zone", s.ID)
		}
	default:
		return subscriptionWire{}, fmt.Errorf("database: subscription %q has unknown type %q", s.ID, s.Type)
	}
	return wire, nil
}

func (w subscriptionWire) subscription() (Subscription, error) {
	subscription := Subscription{
		ID:        w.SubscriptionID,
		Type:      w.SubscriptionType,
		Zone:      canonicalZone(w.ZoneID),
		FiresOn:   w.FiresOn,
		FiresOnce: w.FiresOnce,
	}
	if w.Query != nil {
		query, err := queryFromWire(*w.Query)
		if err != nil {
			return Subscription{}, err
		}
		subscription.Query = &query
	}
	return subscription, nil
}

type subscriptionsResponse struct {
	Subscriptions []json.RawMessage `json:"subscriptions"`
}

type subscriptionLookupRequest struct {
	Subscriptions []subscriptionRef `json:"subscriptions"`
}

type subscriptionRef struct {
	SubscriptionID string `json:"subscriptionID"`
}

type subscriptionModifyRequest struct {
	Operations []subscriptionOperation `json:"operations"`
}

type subscriptionOperation struct {
	OperationType string           `json:"operationType"`
	Subscription  subscriptionWire `json:"subscription"`
}

// SubscriptionModifyResult holds the per-subscription outcome of
// ModifySubscriptions, keyed by subscription ID.
type SubscriptionModifyResult struct {
	Saved   map[string]Result[Subscription]
	Deleted map[string]Result[string]
}

type subscriptionItem struct {
	shape   itemShape
	payload apierror.Payload
	wire    subscriptionWire
}

func classifySubscriptionItem(raw json.RawMessage) (subscriptionItem, bool) {
	if payload, ok := apierror.ParsePayload(raw); ok {
		return subscriptionItem{shape: shapeError, payload: payload}, true
	}
	var wire subscriptionWire
	if err := json.Unmarshal(raw, &wire); err != nil || wire.SubscriptionID == "" {
		return subscriptionItem{}, false
	}
	return subscriptionItem{shape: shapeEntity, wire: wire}, true
}

// ListSubscriptions returns every subscription in the database.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	const op = "subscriptions/list"
	var response subscriptionsResponse
	if err := c.call(ctx, "subscriptions", "list", nil, &response); err != nil {
		return nil, err
	}
	subscriptions := make([]Subscription, 0, len(response.Subscriptions))
	for i, raw := range response.Subscriptions {
		item, ok := classifySubscriptionItem(raw)
		if !ok || item.shape != shapeEntity {
			return nil, apierror.Malformed(op, "subscription %d has no recognizable shape: %s", i, truncateJSON(raw))
		}
		subscription, err := item.wire.subscription()
		if err != nil {
			return nil, apierror.Malformed(op, "subscription %d: %v", i, err)
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, nil
}

// LookupSubscriptions fetches subscriptions by ID.
func (c *Client) LookupSubscriptions(ctx context.Context, ids []string) (map[string]Result[Subscription], error) {
	const op = "subscriptions/lookup"
	request := subscriptionLookupRequest{Subscriptions: make([]subscriptionRef, len(ids))}
	for i, id := range ids {
		if id == "" {
			return nil, apierror.MissingKey(op, "subscriptionID")
		}
		request.Subscriptions[i] = subscriptionRef{SubscriptionID: id}
	}
	var response subscriptionsResponse
	if err := c.call(ctx, "subscriptions", "lookup", request, &response); err != nil {
		return nil, err
	}
	if len(response.Subscriptions) != len(ids) {
		return nil, apierror.Malformed(op, "requested %d subscriptions, received %d results", len(ids), len(response.Subscriptions))
	}

	results := make(map[string]Result[Subscription], len(ids))
	for i, raw := range response.Subscriptions {
		id := ids[i]
		item, ok := classifySubscriptionItem(raw)
		if !ok {
			return nil, apierror.Malformed(op, "result %d has no recognizable shape: %s", i, truncateJSON(raw))
		}
		if item.shape == shapeError {
			results[id] = Result[Subscription]{Err: item.payload.Item(apierror.ScopeSubscription, id)}
			continue
		}
		subscription, err := item.wire.subscription()
		if err != nil {
			return nil, apierror.Malformed(op, "result %d: %v", i, err)
		}
		results[id] = Result[Subscription]{Value: subscription}
	}
	return results, nil
}

// ModifySubscriptions creates or replaces saves and deletes the
// subscriptions named in deletes, in one request.
func (c *Client) ModifySubscriptions(ctx context.Context, saves []Subscription, deletes []string) (*SubscriptionModifyResult, error) {
	const op = "subscriptions/modify"
	result := &SubscriptionModifyResult{
		Saved:   make(map[string]Result[Subscription]),
		Deleted: make(map[string]Result[string]),
	}
	if len(saves) == 0 && len(deletes) == 0 {
		return result, nil
	}

	var request subscriptionModifyRequest
	ids := make([]string, 0, len(saves)+len(deletes))
	var errs []error
	for _, subscription := range saves {
		wire, err := subscription.wire()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, subscription.ID)
		request.Operations = append(request.Operations, subscriptionOperation{OperationType: opCreate, Subscription: wire})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	for _, id := range deletes {
		if id == "" {
			return nil, apierror.MissingKey(op, "subscriptionID")
		}
		ids = append(ids, id)
		request.Operations = append(request.Operations, subscriptionOperation{
			OperationType: "delete",
			Subscription:  subscriptionWire{SubscriptionID: id},
		})
	}

	var response subscriptionsResponse
	if err := c.call(ctx, "subscriptions", "modify", request, &response); err != nil {
		return nil, err
	}
	if len(response.Subscriptions) != len(ids) {
		return nil, apierror.Malformed(op, "sent %d operations, received %d results", len(ids), len(response.Subscriptions))
	}
	for i, raw := range response.Subscriptions {
		id := ids[i]
		item, ok := classifySubscriptionItem(raw)
		if !ok {
			return nil, apierror.Malformed(op, "result %d has no recognizable shape: %s", i, truncateJSON(raw))
		}
		if i < len(saves) {
			if item.shape == shapeError {
				result.Saved[id] = Result[Subscription]{Err: item.payload.Item(apierror.ScopeSubscription, id)}
				continue
			}
			subscription, err := item.wire.subscription()
			if err != nil {
				return nil, apierror.Malformed(op, "result %d: %v", i, err)
			}
			result.Saved[id] = Result[Subscription]{Value: subscription}
			continue
		}
		if item.shape == shapeError {
			result.Deleted[id] = Result[string]{Err: item.payload.Item(apierror.ScopeSubscription, id)}
		} else {
			result.Deleted[id] = Result[string]{Value: id}
		}
	}
	c.logger.Info("modified subscriptions", "saved", len(saves), "deleted", len(deletes))
	return result, nil
}
