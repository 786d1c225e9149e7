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

	"github.com/unikorn-cloud/console/pkg/action"
	"github.com/unikorn-cloud/console/pkg/resource"
)

func floatingIPConfig(env *Environment) *resource.Config {
	return &resource.Config{
		Name:   "floatingips",
		Title:  "Floating IPs",
		RowKey: "id",
		Columns: []resource.ColumnSpec{
			{Key: "floating_ip_address", Title: "Floating IP", Sortable: true},
			{Key: "id", Title: "ID", Hidden: true},
			{Key: "description", Title: "Description"},
			{Key: "project_id", Title: "Project", Sortable: true, Hidden: !env.Admin},
			{Key: "fixed_ip_address", Title: "Associated Resource", Sortable: true},
			{Key: "floating_network_id", Title: "Network", Sortable: true, Hidden: true},
			{Key: "port_id", Title: "Port", Hidden: true},
			{Key: "status", Title: "Status", Sortable: true},
			{Key: "created_at", Title: "Created At", Sortable: true},
		},
		Filters: []resource.FilterSpec{
			{Name: "floating_ip_address", Label: "IP Address", Kind: resource.FilterText},
			{Name: "status", Label: "Status", Kind: resource.FilterSelect, Options: statusOptions("ACTIVE", "DOWN", "ERROR")},
		},
		DefaultSort:     resource.Sort{Key: "status", Direction: resource.Ascending},
		FilterByBackend: true,
		SortByBackend:   true,
		Policy:          []string{"get_floatingip"},
		StatusKey:       "status",
	}
}

func floatingIPPage(env *Environment, config *resource.Config) *Page {
	// Neutron rejects unknown filters, admins see everything anyway.
	query := &resource.QueryOptions{
		NoAllProjects: true,
	}

	fetch := func(ctx context.Context, query url.Values) ([]resource.Row, error) {
		network, err := env.Services.Network(ctx)
		if err != nil {
			return nil, err
		}

		return network.ListFloatingIPs(ctx, query)
	}

	release := func(ctx context.Context, id string) error {
		network, err := env.Services.Network(ctx)
		if err != nil {
			return err
		}

		return network.DeleteFloatingIP(ctx, id)
	}

	disassociate := func(ctx context.Context, id string) error {
		network, err := env.Services.Network(ctx)
		if err != nil {
			return err
		}

		return network.DisassociateFloatingIP(ctx, id)
	}

	return &Page{
		Adapter: &adapter{config: config, query: query, fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:     "release",
				Title:  "Release",
				Policy: []string{"delete_floatingip"},
				Danger: true,
				Batch:  true,
				Submit: byKey(config.RowKey, release),
			},
			{
				ID:     "disassociate",
				Title:  "Disassociate",
				Policy: []string{"update_floatingip"},
				Batch:  true,
				Allowed: func(row resource.Row) bool {
					return !resource.IsNull(row["port_id"])
				},
				Submit: byKey(config.RowKey, disassociate),
			},
		},
	}
}

// NewFloatingIPs returns the floating IPs page.
func NewFloatingIPs(env *Environment) *Page {
	return floatingIPPage(env, floatingIPConfig(env))
}

// NewServerFloatingIPs returns the floating IPs associated with a server,
// as shown on the server's detail page.  The association is by the server's
// fixed addresses, a server with none has no floating IPs.
func NewServerFloatingIPs(env *Environment, serverID string) *Page {
	config := floatingIPConfig(env)
	config.Name = "server-floatingips"

	page := floatingIPPage(env, config)

	page.Related = func(ctx context.Context) (map[string][]string, error) {
		compute, err := env.Services.Compute(ctx)
		if err != nil {
			return nil, err
		}

		addresses, err := compute.FixedAddresses(ctx, serverID)
		if err != nil {
			return nil, err
		}

		return map[string][]string{
			"fixed_ip_address": addresses,
		}, nil
	}

	return page
}
