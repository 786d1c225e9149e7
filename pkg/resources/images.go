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

// NewImages returns the images page.
func NewImages(env *Environment) *Page {
	config := &resource.Config{
		Name:   "images",
		Title:  "Images",
		RowKey: "id",
		Columns: []resource.ColumnSpec{
			{Key: "name", Title: "Name", Sortable: true},
			{Key: "id", Title: "ID", Hidden: true},
			{Key: "owner", Title: "Project", Sortable: true, Hidden: !env.Admin},
			{Key: "status", Title: "Status", Sortable: true},
			{Key: "visibility", Title: "Visibility", Sortable: true},
			{Key: "disk_format", Title: "Disk Format", Sortable: true},
			{Key: "os_distro", Title: "OS", Hidden: true},
			{Key: "size", Title: "Size", Sortable: true},
			{Key: "protected", Title: "Protected"},
			{Key: "created_at", Title: "Created At", Sortable: true},
		},
		Filters: []resource.FilterSpec{
			{Name: "name", Label: "Name", Kind: resource.FilterText},
			{Name: "status", Label: "Status", Kind: resource.FilterSelect, Options: statusOptions("active", "queued", "saving", "killed", "deactivated")},
			{Name: "visibility", Label: "Visibility", Kind: resource.FilterSelect, Options: statusOptions("public", "private", "shared", "community")},
		},
		DefaultSort:        resource.Sort{Key: "created_at", Direction: resource.Descending},
		FilterByBackend:    true,
		SortByBackend:      true,
		Policy:             []string{"get_images"},
		StatusKey:          "status",
		TransitionStatuses: []string{"saving", "queued", "pending_delete", "importing", "uploading"},
	}

	// Glance scopes by the token, and admins see everything.
	query := &resource.QueryOptions{
		NoProject:     true,
		NoAllProjects: true,
	}

	fetch := func(ctx context.Context, query url.Values) ([]resource.Row, error) {
		image, err := env.Services.Image(ctx)
		if err != nil {
			return nil, err
		}

		return image.ListImages(ctx, query)
	}

	deleteImage := func(ctx context.Context, id string) error {
		image, err := env.Services.Image(ctx)
		if err != nil {
			return err
		}

		return image.DeleteImage(ctx, id)
	}

	return &Page{
		Adapter: &adapter{config: config, query: query, fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:     "delete",
				Title:  "Delete",
				Policy: []string{"delete_image"},
				Danger: true,
				Batch:  true,
				Allowed: func(row resource.Row) bool {
					return env.ownerOrAdmin(row, "owner") && !row.Bool("protected")
				},
				Submit: byKey(config.RowKey, deleteImage),
			},
		},
	}
}
