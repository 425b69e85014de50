// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/recordwire/cmd/recordctl/cli"
	"github.com/bureau-foundation/recordwire/database"
	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/codec"
	"github.com/bureau-foundation/recordwire/lib/ref"
	"github.com/bureau-foundation/recordwire/record"
)

// recordList is the JSON document the record commands print.
type recordList struct {
	Records []record.Wire `json:"records"`
	// Cursor resumes the query with --cursor. Empty on the last page.
	Cursor string `json:"cursor,omitempty"`
}

func (l *recordList) add(r *record.Record) error {
	wire, err := r.Encode(r.Keys())
	if err != nil {
		return fmt.Errorf("%s: %w", r.ID(), err)
	}
	l.Records = append(l.Records, wire)
	return nil
}

func (a *app) queryCommand() *cli.Command {
	var (
		zone    string
		filters []string
		sorts   []string
		keys    []string
		limit   int
		all     bool
		cursor  string
	)
	return &cli.Command{
		Name:    "query",
		Summary: "Query records of one type",
		Usage:   "recordctl query <record-type> [--filter field:COMPARATOR:value]... [--sort field[:desc]]...",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flagSet("query")
			flagSet.StringVar(&zone, "zone", "", "zone to query as name or name/owner (default: all zones)")
			flagSet.StringArrayVar(&filters, "filter", nil, "filter as field:COMPARATOR:value")
			flagSet.StringArrayVar(&sorts, "sort", nil, "sort as field or field:desc")
			flagSet.StringSliceVar(&keys, "keys", nil, "fields to return (default: all)")
			flagSet.IntVar(&limit, "limit", 0, "records per page")
			flagSet.BoolVar(&all, "all", false, "follow cursors to the last page")
			flagSet.StringVar(&cursor, "cursor", "", "continue from a cursor printed by an earlier query")
			return flagSet
		},
		Run: func(args []string) error {
			if cursor != "" {
				if len(args) != 0 {
					return fmt.Errorf("query: --cursor replaces the record type and filters")
				}
				return a.withClient(func(client *database.Client) error {
					return a.continueQuery(client, cursor)
				})
			}
			if len(args) != 1 {
				return fmt.Errorf("query: exactly one record type is required")
			}
			q := database.NewQuery(args[0])
			var err error
			for _, raw := range filters {
				if q, err = parseFilter(q, raw); err != nil {
					return err
				}
			}
			for _, raw := range sorts {
				if q, err = parseSort(q, raw); err != nil {
					return err
				}
			}
			options := database.QueryOptions{DesiredKeys: keys, Limit: limit}
			if zone != "" {
				zoneID, err := parseZone(zone)
				if err != nil {
					return err
				}
				options.Zone = &zoneID
			}

			return a.withClient(func(client *database.Client) error {
				if all {
					return a.queryAll(client, q, options)
				}
				result, err := client.Query(a.ctx, q, options)
				if err != nil {
					return err
				}
				return a.printPage(result)
			})
		},
	}
}

func (a *app) continueQuery(client *database.Client, encoded string) error {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("query: decoding --cursor: %w", err)
	}
	var cursor database.Cursor
	if err := cursor.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	result, err := client.Continue(a.ctx, &cursor)
	if err != nil {
		return err
	}
	return a.printPage(result)
}

func (a *app) printPage(result *database.QueryResult) error {
	failures := &itemFailures{output: a.output}
	list := recordList{Records: []record.Wire{}}
	for i, item := range result.Records {
		if item.Err != nil {
			failures.report(fmt.Sprintf("result %d", i), item.Err)
			continue
		}
		if err := list.add(item.Value); err != nil {
			return err
		}
	}
	if result.Cursor != nil {
		data, err := result.Cursor.MarshalBinary()
		if err != nil {
			return fmt.Errorf("query: encoding cursor: %w", err)
		}
		list.Cursor = base64.RawURLEncoding.EncodeToString(data)
	}
	if err := a.output.WriteJSON(list); err != nil {
		return err
	}
	return failures.err()
}

func (a *app) queryAll(client *database.Client, q database.Query, options database.QueryOptions) error {
	failures := &itemFailures{output: a.output}
	list := recordList{Records: []record.Wire{}}
	for r, err := range client.QueryAll(a.ctx, q, options) {
		if err != nil {
			if r == nil && !isItemError(err) {
				return err
			}
			failures.report("result", err)
			continue
		}
		if err := list.add(r); err != nil {
			return err
		}
	}
	if err := a.output.WriteJSON(list); err != nil {
		return err
	}
	return failures.err()
}

func (a *app) cursorCommand() *cli.Command {
	return &cli.Command{
		Name:    "cursor",
		Summary: "Show the contents of a query cursor",
		Usage:   "recordctl cursor <cursor>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("cursor: exactly one cursor is required")
			}
			data, err := base64.RawURLEncoding.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("cursor: %w", err)
			}
			diagnostic, err := codec.Diagnose(data)
			if err != nil {
				return fmt.Errorf("cursor: %w", err)
			}
			var cursor database.Cursor
			if err := cursor.UnmarshalBinary(data); err != nil {
				return fmt.Errorf("cursor: %w", err)
			}
			_, err = fmt.Fprintf(a.output.Stdout, "%s\n", diagnostic)
			return err
		},
	}
}

func (a *app) lookupCommand() *cli.Command {
	var keys []string
	return &cli.Command{
		Name:    "lookup",
		Summary: "Fetch records by ID",
		Usage:   "recordctl lookup <name[@zone[/owner]]>...",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flagSet("lookup")
			flagSet.StringSliceVar(&keys, "keys", nil, "fields to return (default: all)")
			return flagSet
		},
		Run: func(args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return a.withClient(func(client *database.Client) error {
				results, err := client.LookupRecords(a.ctx, ids, database.LookupOptions{DesiredKeys: keys})
				if err != nil {
					return err
				}
				failures := &itemFailures{output: a.output}
				list := recordList{Records: []record.Wire{}}
				for _, id := range ids {
					found, err := results[id].Get()
					if err != nil {
						failures.report(id.String(), err)
						continue
					}
					if err := list.add(found); err != nil {
						return err
					}
				}
				if err := a.output.WriteJSON(list); err != nil {
					return err
				}
				return failures.err()
			})
		},
	}
}

func (a *app) saveCommand() *cli.Command {
	var (
		recordType string
		sets       []string
		assets     []string
		removes    []string
		policy     string
		update     bool
	)
	return &cli.Command{
		Name:    "save",
		Summary: "Create or update one record",
		Usage:   "recordctl save <name[@zone[/owner]]> --type <type> [--set key=value]... [--asset key=path]...",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flagSet("save")
			flagSet.StringVar(&recordType, "type", "", "record type (required for new records)")
			flagSet.StringArrayVar(&sets, "set", nil, "field assignment key=[type:]value")
			flagSet.StringArrayVar(&assets, "asset", nil, "asset field key=path, uploaded before the save")
			flagSet.StringArrayVar(&removes, "remove", nil, "field to clear")
			flagSet.StringVar(&policy, "policy", "if-unchanged", "save policy: if-unchanged, changed-keys, all-keys")
			flagSet.BoolVar(&update, "update", false, "fetch the record first and modify it")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("save: exactly one record ID is required")
			}
			id, err := ref.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			savePolicy, err := parsePolicy(policy)
			if err != nil {
				return err
			}
			if !update && recordType == "" {
				return fmt.Errorf("save: --type is required for a new record")
			}

			return a.withClient(func(client *database.Client) error {
				var r *record.Record
				if update {
					if r, err = client.LookupRecord(a.ctx, id); err != nil {
						return err
					}
					if recordType != "" && recordType != r.Type() {
						return fmt.Errorf("save: %s is a %s, not a %s", id, r.Type(), recordType)
					}
				} else {
					r = record.New(recordType, id)
				}
				if err := applyEdits(r, sets, assets, removes); err != nil {
					return err
				}
				saved, err := client.SaveRecord(a.ctx, r, savePolicy)
				if err != nil {
					return err
				}
				list := recordList{}
				if err := list.add(saved); err != nil {
					return err
				}
				return a.output.WriteJSON(list)
			})
		},
	}
}

func applyEdits(r *record.Record, sets, assets, removes []string) error {
	for _, raw := range sets {
		key, text, err := parseAssignment(raw)
		if err != nil {
			return fmt.Errorf("--set %w", err)
		}
		value, err := parseValue(text)
		if err != nil {
			return fmt.Errorf("--set %s: %w", key, err)
		}
		r.Set(key, value)
	}
	for _, raw := range assets {
		key, path, err := parseAssignment(raw)
		if err != nil {
			return fmt.Errorf("--asset %w", err)
		}
		r.Set(key, field.NewAsset(path))
	}
	for _, key := range removes {
		r.Remove(key)
	}
	return nil
}

func (a *app) deleteCommand() *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete records by ID",
		Usage:   "recordctl delete <name[@zone[/owner]]>...",
		Flags:   func() *pflag.FlagSet { return a.flagSet("delete") },
		Run: func(args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return a.withClient(func(client *database.Client) error {
				result, err := client.Modify(a.ctx, nil, ids, database.ModifyOptions{})
				if err != nil {
					return err
				}
				failures := &itemFailures{output: a.output}
				for _, id := range ids {
					if err := result.Deleted[id].Err; err != nil {
						failures.report(id.String(), err)
						continue
					}
					fmt.Fprintf(a.output.Stdout, "deleted %s\n", id)
				}
				return failures.err()
			})
		},
	}
}

func parseRecordIDs(args []string) ([]ref.RecordID, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one record ID is required")
	}
	ids := make([]ref.RecordID, len(args))
	for i, arg := range args {
		id, err := ref.ParseRecordID(arg)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
