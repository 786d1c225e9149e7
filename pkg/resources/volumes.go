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
	"net/http"
	"net/url"

	"github.com/unikorn-cloud/console/pkg/action"
	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// cinderQuery scopes by the project in the endpoint, and uses the legacy
// all tenants flag for admins.
func cinderQuery() *resource.QueryOptions {
	return &resource.QueryOptions{
		NoProject:      true,
		AllProjectsKey: "all_tenants",
	}
}

// NewVolumes returns the volumes page.
func NewVolumes(env *Environment) *Page {
	config := &resource.Config{
		Name:   "volumes",
		Title:  "Volumes",
		RowKey: "id",
		Columns: []resource.ColumnSpec{
			{Key: "name", Title: "Name", Sortable: true},
			{Key: "id", Title: "ID", Hidden: true},
			{Key: "os-vol-tenant-attr:tenant_id", Title: "Project", Sortable: true, Hidden: !env.Admin},
			{Key: "size", Title: "Size (GiB)", Sortable: true},
			{Key: "status", Title: "Status", Sortable: true},
			{Key: "volume_type", Title: "Type", Sortable: true},
			{Key: "bootable", Title: "Bootable", Sortable: true},
			{Key: "attachments", Title: "Attached To", Value: func(row resource.Row) any {
				attachments, _ := row["attachments"].([]any)

				return len(attachments)
			}},
			{Key: "availability_zone", Title: "Availability Zone", Sortable: true, Hidden: true},
			{Key: "created_at", Title: "Created At", Sortable: true},
		},
		Filters: []resource.FilterSpec{
			{Name: "name", Label: "Name", Kind: resource.FilterText},
			{Name: "status", Label: "Status", Kind: resource.FilterSelect, Options: statusOptions("available", "in-use", "error", "creating")},
		},
		DefaultSort:     resource.Sort{Key: "created_at", Direction: resource.Descending},
		FilterByBackend: true,
		Policy:          []string{"volume:get_all"},
		StatusKey:       "status",
		TransitionStatuses: []string{
			"creating", "attaching", "detaching", "deleting", "extending",
			"downloading", "uploading", "backing-up", "restoring-backup", "retyping",
		},
	}

	fetch := func(ctx context.Context, query url.Values) ([]resource.Row, error) {
		blockStorage, err := env.Services.BlockStorage(ctx)
		if err != nil {
			return nil, err
		}

		return blockStorage.ListVolumes(ctx, query)
	}

	deleteVolume := func(ctx context.Context, id string) error {
		blockStorage, err := env.Services.BlockStorage(ctx)
		if err != nil {
			return err
		}

		return blockStorage.DeleteVolume(ctx, id)
	}

	deletable := statusIn("status", "available", "error", "error_restoring", "error_extending")

	return &Page{
		Adapter: &adapter{config: config, query: cinderQuery(), fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:     "delete",
				Title:  "Delete",
				Policy: []string{"volume:delete"},
				Danger: true,
				Batch:  true,
				Allowed: func(row resource.Row) bool {
					attachments, _ := row["attachments"].([]any)

					return deletable(row) && len(attachments) == 0
				},
				Submit: byKey(config.RowKey, deleteVolume),
			},
		},
	}
}

// NewSnapshots returns the volume snapshots page.
func NewSnapshots(env *Environment) *Page {
	config := &resource.Config{
		Name:   "snapshots",
		Title:  "Volume Snapshots",
		RowKey: "id",
		Columns: []resource.ColumnSpec{
			{Key: "name", Title: "Name", Sortable: true},
			{Key: "id", Title: "ID", Hidden: true},
			{Key: "os-extended-snapshot-attributes:project_id", Title: "Project", Sortable: true, Hidden: !env.Admin},
			{Key: "size", Title: "Size (GiB)", Sortable: true},
			{Key: "status", Title: "Status", Sortable: true},
			{Key: "volume_id", Title: "Volume", Sortable: true},
			{Key: "created_at", Title: "Created At", Sortable: true},
		},
		Filters: []resource.FilterSpec{
			{Name: "name", Label: "Name", Kind: resource.FilterText},
			{Name: "status", Label: "Status", Kind: resource.FilterSelect, Options: statusOptions("available", "error", "creating")},
		},
		DefaultSort:        resource.Sort{Key: "created_at", Direction: resource.Descending},
		FilterByBackend:    true,
		Policy:             []string{"volume:get_all_snapshots"},
		StatusKey:          "status",
		TransitionStatuses: []string{"creating", "deleting", "restoring", "backing-up"},
	}

	fetch := func(ctx context.Context, query url.Values) ([]resource.Row, error) {
		blockStorage, err := env.Services.BlockStorage(ctx)
		if err != nil {
			return nil, err
		}

		return blockStorage.ListSnapshots(ctx, query)
	}

	deleteSnapshot := func(ctx context.Context, id string) error {
		blockStorage, err := env.Services.BlockStorage(ctx)
		if err != nil {
			return err
		}

		return blockStorage.DeleteSnapshot(ctx, id)
	}

	return &Page{
		Adapter: &adapter{config: config, query: cinderQuery(), fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:      "delete",
				Title:   "Delete",
				Policy:  []string{"volume:delete_snapshot"},
				Danger:  true,
				Batch:   true,
				Allowed: statusIn("status", "available", "error"),
				Submit:  byKey(config.RowKey, deleteSnapshot),
			},
		},
	}
}

// SnapshotDetail returns a snapshot with a card describing its source
// volume.  The volume may have been deleted since, in which case the card
// is empty.
func SnapshotDetail(ctx context.Context, env *Environment, id string) (resource.Row, error) {
	blockStorage, err := env.Services.BlockStorage(ctx)
	if err != nil {
		return nil, err
	}

	snapshot, err := blockStorage.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := snapshot.Clone()
	detail["volume"] = nil

	volumeID := snapshot.String("volume_id")
	if volumeID == "" {
		return detail, nil
	}

	volume, err := blockStorage.GetVolume(ctx, volumeID)
	if err != nil {
		if errors.IsStatus(err, http.StatusNotFound) {
			return detail, nil
		}

		return nil, err
	}

	detail["volume"] = resource.Row{
		"id":          volume["id"],
		"name":        volume["name"],
		"size":        volume["size"],
		"status":      volume["status"],
		"volume_type": volume["volume_type"],
		"bootable":    volume["bootable"],
	}

	return detail, nil
}
