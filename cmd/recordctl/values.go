// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/recordwire/database"
	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/ref"
)

// parseValue reads a field value written as "type:value". Without a
// recognized type prefix the whole text is a string.
//
//	string:hello      int:42          double:2.5     bool:true
//	time:2026-01-02T15:04:05Z         bytes:aGVsbG8=
//	loc:37.33,-122.03                 ref:name@zone
func parseValue(raw string) (field.Value, error) {
	kind, text, found := strings.Cut(raw, ":")
	if !found {
		return field.String(raw), nil
	}
	switch kind {
	case "string":
		return field.String(text), nil
	case "int":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("int value %q: %w", text, err)
		}
		return field.Int64(n), nil
	case "double":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("double value %q: %w", text, err)
		}
		return field.Double(f), nil
	case "bool":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("bool value %q: %w", text, err)
		}
		return field.Bool(b), nil
	case "time":
		t, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return nil, fmt.Errorf("time value %q: %w", text, err)
		}
		return field.NewTimestamp(t), nil
	case "bytes":
		data, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("bytes value %q: %w", text, err)
		}
		return field.Bytes(data), nil
	case "loc":
		latitude, longitude, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("location %q: want latitude,longitude", text)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latitude), 64)
		if err != nil {
			return nil, fmt.Errorf("location latitude %q: %w", latitude, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(longitude), 64)
		if err != nil {
			return nil, fmt.Errorf("location longitude %q: %w", longitude, err)
		}
		return field.Location{Latitude: lat, Longitude: lon}, nil
	case "ref":
		id, err := ref.ParseRecordID(text)
		if err != nil {
			return nil, err
		}
		return field.Reference{Record: id}, nil
	default:
		return field.String(raw), nil
	}
}

// parseAssignment splits "key=value".
func parseAssignment(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("%q: want key=value", raw)
	}
	return key, value, nil
}

// parseFilter reads "field:COMPARATOR:value". NEAR takes
// "field:NEAR:meters@lat,lon".
func parseFilter(q database.Query, raw string) (database.Query, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return q, fmt.Errorf("filter %q: want field:COMPARATOR:value", raw)
	}
	fieldName, comparator := parts[0], database.Comparator(strings.ToUpper(parts[1]))
	if comparator == database.Near {
		meters, center, ok := strings.Cut(parts[2], "@")
		if !ok {
			return q, fmt.Errorf("filter %q: want field:NEAR:meters@lat,lon", raw)
		}
		distance, err := strconv.ParseFloat(meters, 64)
		if err != nil {
			return q, fmt.Errorf("filter %q: %w", raw, err)
		}
		location, err := parseValue("loc:" + center)
		if err != nil {
			return q, fmt.Errorf("filter %q: %w", raw, err)
		}
		return q.WithinDistance(fieldName, location.(field.Location), distance), nil
	}
	value, err := parseValue(parts[2])
	if err != nil {
		return q, fmt.Errorf("filter %q: %w", raw, err)
	}
	return q.Where(fieldName, comparator, value), nil
}

// parseSort reads "field" or "field:asc" or "field:desc".
func parseSort(q database.Query, raw string) (database.Query, error) {
	fieldName, direction, _ := strings.Cut(raw, ":")
	switch strings.ToLower(direction) {
	case "", "asc":
		return q.SortBy(fieldName, true), nil
	case "desc":
		return q.SortBy(fieldName, false), nil
	default:
		return q, fmt.Errorf("sort %q: direction must be asc or desc", raw)
	}
}

// parsePolicy maps the --policy flag to a save policy.
func parsePolicy(raw string) (database.SavePolicy, error) {
	switch raw {
	case "if-unchanged":
		return database.IfServerRecordUnchanged, nil
	case "changed-keys":
		return database.ChangedKeys, nil
	case "all-keys":
		return database.AllKeys, nil
	default:
		return 0, fmt.Errorf("unknown save policy %q (want if-unchanged, changed-keys, or all-keys)", raw)
	}
}

// parseZone reads "name" or "name/owner".
func parseZone(raw string) (ref.ZoneID, error) {
	name, owner, _ := strings.Cut(raw, "/")
	return ref.NewZoneID(name, owner)
}
