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

// NewCapsules returns the container capsules page.
func NewCapsules(env *Environment) *Page {
	config := &resource.Config{
		Name:   "capsules",
		Title:  "Capsules",
		RowKey: "uuid",
		Columns: []resource.ColumnSpec{
			{Key: "meta_name", Title: "Name", Sortable: true},
			{Key: "uuid", Title: "ID", Hidden: true},
			{Key: "project_id", Title: "Project", Sortable: true, Hidden: !env.Admin},
			{Key: "status", Title: "Status", Sortable: true},
			{Key: "cpu", Title: "CPU", Sortable: true},
			{Key: "memory", Title: "Memory", Sortable: true},
			{Key: "created_at", Title: "Created At", Sortable: true},
		},
		Filters: []resource.FilterSpec{
			{Name: "meta_name", Label: "Name", Kind: resource.FilterText},
		},
		DefaultSort:        resource.Sort{Key: "meta_name", Direction: resource.Ascending},
		Policy:             []string{"container:capsule:get_all"},
		StatusKey:          "status",
		TransitionStatuses: []string{"creating", "deleting"},
	}

	// Zun scopes by the token.
	query := &resource.QueryOptions{
		NoProject: true,
	}

	fetch := func(ctx context.Context, query url.Values) ([]resource.Row, error) {
		container, err := env.Services.Container(ctx)
		if err != nil {
			return nil, err
		}

		return container.ListCapsules(ctx, query)
	}

	deleteCapsule := func(ctx context.Context, id string) error {
		container, err := env.Services.Container(ctx)
		if err != nil {
			return err
		}

		return container.DeleteCapsule(ctx, id)
	}

	return &Page{
		Adapter: &adapter{config: config, query: query, fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:     "delete",
				Title:  "Delete",
				Policy: []string{"container:capsule:delete"},
				Danger: true,
				Batch:  true,
				Submit: byKey(config.RowKey, deleteCapsule),
			},
		},
	}
}
