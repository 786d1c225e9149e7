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

// NewBackups returns the database backups page.
func NewBackups(env *Environment) *Page {
	config := &resource.Config{
		Name:   "backups",
		Title:  "Database Backups",
		RowKey: "id",
		Columns: []resource.ColumnSpec{
			{Key: "name", Title: "Name", Sortable: true},
			{Key: "id", Title: "ID", Hidden: true},
			{Key: "project_id", Title: "Project", Sortable: true, Hidden: !env.Admin},
			{Key: "instance_id", Title: "Instance", Sortable: true},
			{Key: "datastore.type", Title: "Datastore", Sortable: true},
			{Key: "datastore.version", Title: "Datastore Version", Hidden: true},
			{Key: "size", Title: "Size (GB)", Sortable: true},
			{Key: "status", Title: "Status", Sortable: true},
			{Key: "created", Title: "Created", Sortable: true},
		},
		Filters: []resource.FilterSpec{
			{Name: "name", Label: "Name", Kind: resource.FilterText},
			{Name: "status", Label: "Status", Kind: resource.FilterSelect, Options: statusOptions("NEW", "BUILDING", "COMPLETED", "FAILED")},
		},
		DefaultSort:        resource.Sort{Key: "created", Direction: resource.Descending},
		Policy:             []string{"backup:index"},
		StatusKey:          "status",
		TransitionStatuses: []string{"new", "building", "deleting", "saving"},
	}

	// Trove scopes by the project in the endpoint.
	query := &resource.QueryOptions{
		NoProject: true,
	}

	fetch := func(ctx context.Context, query url.Values) ([]resource.Row, error) {
		database, err := env.Services.Database(ctx)
		if err != nil {
			return nil, err
		}

		return database.ListBackups(ctx, query)
	}

	deleteBackup := func(ctx context.Context, id string) error {
		database, err := env.Services.Database(ctx)
		if err != nil {
			return err
		}

		return database.DeleteBackup(ctx, id)
	}

	return &Page{
		Adapter: &adapter{config: config, query: query, fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:      "delete",
				Title:   "Delete",
				Policy:  []string{"instance:delete"},
				Danger:  true,
				Batch:   true,
				Allowed: statusIn("status", "completed", "failed", "delete_failed"),
				Submit:  byKey(config.RowKey, deleteBackup),
			},
		},
	}
}
