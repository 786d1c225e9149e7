/*
Copyright 2024 the Unikorn Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package resources

import (
	"context"
	"net/url"

	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"

	"github.com/unikorn-cloud/console/pkg/action"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// NewBareMetalNodes returns the bare metal nodes page.
func NewBareMetalNodes(env *Environment) *Page {
	config := &resource.Config{
		Name:   "baremetal",
		Title:  "Bare Metal Nodes",
		RowKey: "uuid",
		Columns: []resource.ColumnSpec{
			{Key: "name", Title: "Name", Sortable: true},
			{Key: "uuid", Title: "ID", Hidden: true},
			{Key: "instance_info.display_name", Title: "Instance", Sortable: true},
			{Key: "power_state", Title: "Power State", Sortable: true},
			{Key: "provision_state", Title: "Provision State", Sortable: true},
			{Key: "maintenance", Title: "Maintenance", Sortable: true},
			{Key: "port_count", Title: "Ports", Sortable: true},
			{Key: "driver", Title: "Driver", Sortable: true},
			{Key: "created_at", Title: "Created At", Sortable: true},
		},
		DefaultSort: resource.Sort{Key: "name", Direction: resource.Ascending},
		Policy:      []string{"baremetal:node:get"},
		StatusKey:   "provision_state",
		TransitionStatuses: []string{
			"deploying", "wait call-back", "cleaning", "clean wait", "inspecting",
			"inspect wait", "deleting", "rescuing", "unrescuing", "adopting",
		},
	}

	// Ironic doesn't scope by project.
	query := &resource.QueryOptions{
		NoProject:     true,
		NoAllProjects: true,
	}

	fetch := func(ctx context.Context, query url.Values) ([]resource.Row, error) {
		baremetal, err := env.Services.BareMetal(ctx)
		if err != nil {
			return nil, err
		}

		rows, err := baremetal.ListNodes(ctx, query)
		if err != nil {
			return nil, err
		}

		counts, err := baremetal.PortCounts(ctx)
		if err != nil {
			return nil, err
		}

		result := make([]resource.Row, len(rows))

		for i, row := range rows {
			result[i] = row.Clone()
			result[i]["port_count"] = counts[row.Key("uuid")]
		}

		return result, nil
	}

	power := func(target nodes.TargetPowerState) action.SubmitFunc {
		return byKey(config.RowKey, func(ctx context.Context, id string) error {
			baremetal, err := env.Services.BareMetal(ctx)
			if err != nil {
				return err
			}

			return baremetal.SetPowerState(ctx, id, target)
		})
	}

	setMaintenance := func(ctx context.Context, id string) error {
		baremetal, err := env.Services.BareMetal(ctx)
		if err != nil {
			return err
		}

		return baremetal.SetMaintenance(ctx, id, "")
	}

	clearMaintenance := func(ctx context.Context, id string) error {
		baremetal, err := env.Services.BareMetal(ctx)
		if err != nil {
			return err
		}

		return baremetal.ClearMaintenance(ctx, id)
	}

	return &Page{
		Adapter: &adapter{config: config, query: query, fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:      "power-on",
				Title:   "Power On",
				Policy:  []string{"baremetal:node:set_power_state"},
				Batch:   true,
				Allowed: statusIn("power_state", "power off"),
				Submit:  power(nodes.PowerOn),
			},
			{
				ID:      "power-off",
				Title:   "Power Off",
				Policy:  []string{"baremetal:node:set_power_state"},
				Danger:  true,
				Batch:   true,
				Allowed: statusIn("power_state", "power on"),
				Submit:  power(nodes.PowerOff),
			},
			{
				ID:     "maintenance-set",
				Title:  "Enter Maintenance",
				Policy: []string{"baremetal:node:set_maintenance"},
				Batch:  true,
				Allowed: func(row resource.Row) bool {
					return !row.Bool("maintenance")
				},
				Submit: byKey(config.RowKey, setMaintenance),
			},
			{
				ID:     "maintenance-unset",
				Title:  "Exit Maintenance",
				Policy: []string{"baremetal:node:clear_maintenance"},
				Batch:  true,
				Allowed: func(row resource.Row) bool {
					return row.Bool("maintenance")
				},
				Submit: byKey(config.RowKey, clearMaintenance),
			},
		},
	}
}
