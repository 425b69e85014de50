// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"slices"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/ref"
	"github.com/bureau-foundation/recordwire/record"
)

// Comparator is a filter comparison operator.
type Comparator string

const (
	Equals                  Comparator = "EQUALS"
	NotEquals               Comparator = "NOT_EQUALS"
	LessThan                Comparator = "LESS_THAN"
	LessThanOrEquals        Comparator = "LESS_THAN_OR_EQUALS"
	GreaterThan             Comparator = "GREATER_THAN"
	GreaterThanOrEquals     Comparator = "GREATER_THAN_OR_EQUALS"
	Near                    Comparator = "NEAR"
	ContainsAllTokens       Comparator = "CONTAINS_ALL_TOKENS"
	ContainsAnyTokens       Comparator = "CONTAINS_ANY_TOKENS"
	In                      Comparator = "IN"
	NotIn                   Comparator = "NOT_IN"
	ListContains            Comparator = "LIST_CONTAINS"
	NotListContains         Comparator = "NOT_LIST_CONTAINS"
	NotListContainsAny      Comparator = "NOT_LIST_CONTAINS_ANY"
	BeginsWith              Comparator = "BEGINS_WITH"
	NotBeginsWith           Comparator = "NOT_BEGINS_WITH"
	ListMemberBeginsWith    Comparator = "LIST_MEMBER_BEGINS_WITH"
	NotListMemberBeginsWith Comparator = "NOT_LIST_MEMBER_BEGINS_WITH"
	ListContainsAll         Comparator = "LIST_CONTAINS_ALL"
	NotListContainsAll      Comparator = "NOT_LIST_CONTAINS_ALL"
)

// Filter restricts query results by one field.
type Filter struct {
	FieldName  string
	Comparator Comparator
	Value      field.Value
	// Distance is the radius in meters for Near.
	Distance float64
}

// Sort orders query results by one field. RelativeLocation sorts a
// location field by distance from that point.
type Sort struct {
	FieldName        string
	Ascending        bool
	RelativeLocation *field.Location
}

// Query selects records of one type.
type Query struct {
	RecordType string
	Filters    []Filter
	Sorts      []Sort
}

// NewQuery returns a query for every record of recordType.
func NewQuery(recordType string) Query {
	return Query{RecordType: recordType}
}

// Where returns a copy of q with an added filter.
func (q Query) Where(fieldName string, comparator Comparator, value field.Value) Query {
	q.Filters = append(slices.Clip(q.Filters), Filter{FieldName: fieldName, Comparator: comparator, Value: value})
	return q
}

// WithinDistance returns a copy of q restricted to records whose
// location field lies within meters of center.
func (q Query) WithinDistance(fieldName string, center field.Location, meters float64) Query {
	q.Filters = append(slices.Clip(q.Filters), Filter{FieldName: fieldName, Comparator: Near, Value: center, Distance: meters})
	return q
}

// SortBy returns a copy of q with an added sort.
func (q Query) SortBy(fieldName string, ascending bool) Query {
	q.Sorts = append(slices.Clip(q.Sorts), Sort{FieldName: fieldName, Ascending: ascending})
	return q
}

// SortByDistance returns a copy of q sorted by distance from center.
func (q Query) SortByDistance(fieldName string, center field.Location, ascending bool) Query {
	q.Sorts = append(slices.Clip(q.Sorts), Sort{FieldName: fieldName, Ascending: ascending, RelativeLocation: &center})
	return q
}

type queryWire struct {
	RecordType string       `json:"recordType"`
	FilterBy   []filterWire `json:"filterBy,omitempty"`
	SortBy     []sortWire   `json:"sortBy,omitempty"`
}

type filterWire struct {
	FieldName  string     `json:"fieldName"`
	Comparator Comparator `json:"comparator"`
	FieldValue field.Wire `json:"fieldValue"`
	Distance   float64    `json:"distance,omitempty"`
}

type sortWire struct {
	FieldName        string          `json:"fieldName"`
	Ascending        bool            `json:"ascending"`
	RelativeLocation json.RawMessage `json:"relativeLocation,omitempty"`
}

func (q Query) wire() (queryWire, error) {
	if q.RecordType == "" {
		return queryWire{}, apierror.MissingKey("records/query", "recordType")
	}
	wire := queryWire{RecordType: q.RecordType}
	for _, filter := range q.Filters {
		if filter.Value == nil {
			return queryWire{}, fmt.Errorf("database: filter on %q has no value", filter.FieldName)
		}
		value, err := field.Encode(filter.Value)
		if err != nil {
			return queryWire{}, fmt.Errorf("database: filter on %q: %w", filter.FieldName, err)
		}
		wire.FilterBy = append(wire.FilterBy, filterWire{
			FieldName:  filter.FieldName,
			Comparator: filter.Comparator,
			FieldValue: value,
			Distance:   filter.Distance,
		})
	}
	for _, sort := range q.Sorts {
		entry := sortWire{FieldName: sort.FieldName, Ascending: sort.Ascending}
		if sort.RelativeLocation != nil {
			location, err := field.Encode(*sort.RelativeLocation)
			if err != nil {
				return queryWire{}, fmt.Errorf("database: sort on %q: %w", sort.FieldName, err)
			}
			entry.RelativeLocation = location.Value
		}
		wire.SortBy = append(wire.SortBy, entry)
	}
	return wire, nil
}

func queryFromWire(wire queryWire) (Query, error) {
	query := Query{RecordType: wire.RecordType}
	for _, filter := range wire.FilterBy {
		value, ok := field.Decode(filter.FieldValue)
		if !ok {
			return Query{}, fmt.Errorf("filter on %q has an unrecognized value", filter.FieldName)
		}
		query.Filters = append(query.Filters, Filter{
			FieldName:  filter.FieldName,
			Comparator: filter.Comparator,
			Value:      value,
			Distance:   filter.Distance,
		})
	}
	for _, sort := range wire.SortBy {
		entry := Sort{FieldName: sort.FieldName, Ascending: sort.Ascending}
		if len(sort.RelativeLocation) > 0 {
			value, ok := field.Decode(field.Wire{Value: sort.RelativeLocation, Type: field.TagLocation})
			if !ok {
				return Query{}, fmt.Errorf("sort on %q has an unrecognized location", sort.FieldName)
			}
			location := value.(field.Location)
			entry.RelativeLocation = &location
		}
		query.Sorts = append(query.Sorts, entry)
	}
	return query, nil
}

// QueryOptions controls a query.
type QueryOptions struct {
	// Zone restricts the query to one zone. Nil queries zone-wide.
	Zone *ref.ZoneID
	// DesiredKeys limits the returned fields. Empty means all.
	DesiredKeys []string
	// Limit caps the records per page. Zero leaves it to the server.
	Limit int
}

// QueryResult is one page of query results.
type QueryResult struct {
	// Records holds the page in server order. Items the server could
	// not return carry an error instead of a record.
	Records []Result[*record.Record]
	// Cursor continues the query, nil on the last page.
	Cursor *Cursor
}

type queryRequest struct {
	ZoneID             *ref.ZoneID `json:"zoneID,omitempty"`
	ZoneWide           bool        `json:"zoneWide"`
	ResultsLimit       int         `json:"resultsLimit,omitempty"`
	Query              queryWire   `json:"query"`
	ContinuationMarker string      `json:"continuationMarker,omitempty"`
	DesiredKeys        []string    `json:"desiredKeys,omitempty"`
}

type queryResponse struct {
	Records            []json.RawMessage `json:"records"`
	ContinuationMarker string            `json:"continuationMarker,omitempty"`
}

// Query runs q and returns the first page.
func (c *Client) Query(ctx context.Context, q Query, options QueryOptions) (*QueryResult, error) {
	return c.runQuery(ctx, &Cursor{
		Query:       q,
		Zone:        canonicalZone(options.Zone),
		DesiredKeys: options.DesiredKeys,
		Limit:       options.Limit,
	})
}

// Continue fetches the page after the one that returned cursor. The
// same cursor always produces the same request.
func (c *Client) Continue(ctx context.Context, cursor *Cursor) (*QueryResult, error) {
	if cursor == nil || cursor.Marker == "" {
		return nil, apierror.MissingKey("records/query", "continuationMarker")
	}
	return c.runQuery(ctx, cursor)
}

func (c *Client) runQuery(ctx context.Context, cursor *Cursor) (*QueryResult, error) {
	const op = "records/query"
	wire, err := cursor.Query.wire()
	if err != nil {
		return nil, err
	}
	request := queryRequest{
		ZoneID:             cursor.Zone,
		ZoneWide:           cursor.Zone == nil,
		ResultsLimit:       cursor.Limit,
		Query:              wire,
		ContinuationMarker: cursor.Marker,
		DesiredKeys:        cursor.DesiredKeys,
	}

	var response queryResponse
	if err := c.call(ctx, "records", "query", request, &response); err != nil {
		return nil, err
	}

	zone := ref.DefaultZone
	if cursor.Zone != nil {
		zone = *cursor.Zone
	}
	result := &QueryResult{Records: make([]Result[*record.Record], 0, len(response.Records))}
	for i, raw := range response.Records {
		item, ok := classifyRecordItem(raw)
		if !ok {
			return nil, apierror.Malformed(op, "result %d has no recognizable shape: %s", i, truncateJSON(raw))
		}
		switch item.shape {
		case shapeError:
			result.Records = append(result.Records, Result[*record.Record]{
				Err: item.payload.Item(apierror.ScopeRecord, item.payload.RecordName),
			})
		case shapeEntity:
			decoded, err := c.decodeRecord(item.wire, zone)
			if err != nil {
				return nil, err
			}
			result.Records = append(result.Records, Result[*record.Record]{Value: decoded})
		default:
			return nil, apierror.Malformed(op, "result %d is a deletion confirmation", i)
		}
	}
	if response.ContinuationMarker != "" {
		result.Cursor = &Cursor{
			Marker:      response.ContinuationMarker,
			Query:       cursor.Query,
			Zone:        cursor.Zone,
			DesiredKeys: cursor.DesiredKeys,
			Limit:       cursor.Limit,
		}
	}
	c.logger.Debug("queried records",
		"record_type", cursor.Query.RecordType,
		"count", len(result.Records),
		"more", result.Cursor != nil,
	)
	return result, nil
}

// QueryAll runs q and follows cursors until the last page, yielding
// each record. Per-item failures are yielded as (nil, err) and
// iteration continues; a failed page is yielded as (nil, err) and ends
// iteration.
func (c *Client) QueryAll(ctx context.Context, q Query, options QueryOptions) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		page, err := c.Query(ctx, q, options)
		for {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range page.Records {
				if !yield(item.Value, item.Err) {
					return
				}
			}
			if page.Cursor == nil {
				return
			}
			page, err = c.Continue(ctx, page.Cursor)
		}
	}
}

func canonicalZone(zone *ref.ZoneID) *ref.ZoneID {
	if zone == nil {
		return nil
	}
	canonical := zone.Canonical()
	return &canonical
}
