// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/recordwire/cmd/recordctl/cli"
	"github.com/bureau-foundation/recordwire/database"
	"github.com/bureau-foundation/recordwire/lib/ref"
)

type zoneJSON struct {
	Zone      ref.ZoneID `json:"zoneID"`
	SyncToken string     `json:"syncToken,omitempty"`
	Atomic    bool       `json:"atomic"`
}

func (a *app) zonesCommand() *cli.Command {
	return &cli.Command{
		Name:    "zones",
		Summary: "List, create, and delete zones",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Summary: "List every zone in the database",
				Flags:   func() *pflag.FlagSet { return a.flagSet("list") },
				Run: func(args []string) error {
					if len(args) != 0 {
						return fmt.Errorf("zones list: unexpected arguments %v", args)
					}
					return a.withClient(func(client *database.Client) error {
						zones, err := client.ListZones(a.ctx)
						if err != nil {
							return err
						}
						out := make([]zoneJSON, len(zones))
						for i, zone := range zones {
							out[i] = zoneJSON{Zone: zone.ID, SyncToken: zone.SyncToken, Atomic: zone.Atomic}
						}
						return a.output.WriteJSON(out)
					})
				},
			},
			{
				Name:    "create",
				Summary: "Create zones",
				Usage:   "recordctl zones create <name[/owner]>...",
				Flags:   func() *pflag.FlagSet { return a.flagSet("create") },
				Run: func(args []string) error {
					return a.modifyZones(args, true)
				},
			},
			{
				Name:    "delete",
				Summary: "Delete zones and every record in them",
				Usage:   "recordctl zones delete <name[/owner]>...",
				Flags:   func() *pflag.FlagSet { return a.flagSet("delete") },
				Run: func(args []string) error {
					return a.modifyZones(args, false)
				},
			},
		},
	}
}

func (a *app) modifyZones(args []string, create bool) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one zone is required")
	}
	zones := make([]ref.ZoneID, len(args))
	for i, arg := range args {
		zone, err := parseZone(arg)
		if err != nil {
			return err
		}
		zones[i] = zone.Canonical()
	}

	return a.withClient(func(client *database.Client) error {
		var creates, deletes []ref.ZoneID
		verb := "created"
		if create {
			creates = zones
		} else {
			deletes, verb = zones, "deleted"
		}
		result, err := client.ModifyZones(a.ctx, creates, deletes)
		if err != nil {
			return err
		}
		failures := &itemFailures{output: a.output}
		for _, zone := range zones {
			var itemErr error
			if create {
				itemErr = result.Created[zone].Err
			} else {
				itemErr = result.Deleted[zone].Err
			}
			if itemErr != nil {
				failures.report(zone.String(), itemErr)
				continue
			}
			fmt.Fprintf(a.output.Stdout, "%s %s\n", verb, zone)
		}
		return failures.err()
	})
}

type subscriptionJSON struct {
	ID         string                    `json:"subscriptionID"`
	Type       database.SubscriptionType `json:"subscriptionType"`
	Zone       *ref.ZoneID               `json:"zoneID,omitempty"`
	RecordType string                    `json:"recordType,omitempty"`
	FiresOn    []database.Trigger        `json:"firesOn,omitempty"`
	FiresOnce  bool                      `json:"firesOnce,omitempty"`
}

func (a *app) subscriptionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "subscriptions",
		Summary: "Inspect and delete subscriptions",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Summary: "List every subscription in the database",
				Flags:   func() *pflag.FlagSet { return a.flagSet("list") },
				Run: func(args []string) error {
					return a.withClient(func(client *database.Client) error {
						subscriptions, err := client.ListSubscriptions(a.ctx)
						if err != nil {
							return err
						}
						out := make([]subscriptionJSON, len(subscriptions))
						for i, s := range subscriptions {
							out[i] = subscriptionJSON{ID: s.ID, Type: s.Type, Zone: s.Zone, FiresOn: s.FiresOn, FiresOnce: s.FiresOnce}
							if s.Query != nil {
								out[i].RecordType = s.Query.RecordType
							}
						}
						return a.output.WriteJSON(out)
					})
				},
			},
			{
				Name:    "delete",
				Summary: "Delete subscriptions by ID",
				Usage:   "recordctl subscriptions delete <id>...",
				Flags:   func() *pflag.FlagSet { return a.flagSet("delete") },
				Run: func(args []string) error {
					if len(args) == 0 {
						return fmt.Errorf("at least one subscription ID is required")
					}
					return a.withClient(func(client *database.Client) error {
						result, err := client.ModifySubscriptions(a.ctx, nil, args)
						if err != nil {
							return err
						}
						failures := &itemFailures{output: a.output}
						for _, id := range args {
							if err := result.Deleted[id].Err; err != nil {
								failures.report(id, err)
								continue
							}
							fmt.Fprintf(a.output.Stdout, "deleted %s\n", id)
						}
						return failures.err()
					})
				},
			},
		},
	}
}
