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

package resource

import (
	"net/url"
	"slices"
	"strconv"

	"k8s.io/apimachinery/pkg/util/sets"
)

// QueryOptions tune how parameters are serialized for a specific service.
type QueryOptions struct {
	// ProjectKey is the field used to scope by project, defaults to
	// project_id.
	ProjectKey string

	// NoProject drops the project filter, for services that scope by
	// the token or endpoint.
	NoProject bool

	// AllProjectsKey is the flag used to list everything, defaults to
	// all_projects.
	AllProjectsKey string

	// NoAllProjects drops the all_projects flag, for services that don't
	// understand it.
	NoAllProjects bool

	// Rename maps filter names to backend parameter names.
	Rename map[string]string
}

// Query serializes params into OpenStack list query parameters.  Sorting and
// filtering are only included when the adapter delegates them to the backend.
func (p *Params) Query(config *Config, options *QueryOptions) url.Values {
	if options == nil {
		options = &QueryOptions{}
	}

	query := url.Values{}

	if config.FilterByBackend {
		// Deterministic ordering for logs and tests.
		names := sets.List(sets.KeySet(p.Filters))

		for _, name := range names {
			value := p.Filters[name]
			if value == "" {
				continue
			}

			if renamed, ok := options.Rename[name]; ok {
				name = renamed
			}

			query.Set(name, value)
		}
	}

	if config.SortByBackend && p.Sort.Key != "" {
		key := p.Sort.Key

		if column, ok := config.Column(key); ok {
			key = column.SortField()
		}

		direction := p.Sort.Direction
		if direction == "" {
			direction = Ascending
		}

		query.Set("sort_key", key)
		query.Set("sort_dir", string(direction))
	}

	for _, field := range sets.List(sets.KeySet(p.Related)) {
		values := slices.Clone(p.Related[field])
		slices.Sort(values)

		for _, value := range values {
			query.Add(field, value)
		}
	}

	if p.Keyset && p.PageSize > 0 {
		// The extra row tells us there is a following page.
		query.Set("limit", strconv.Itoa(p.PageSize+1))

		if p.Marker != "" {
			query.Set("marker", p.Marker)
		}
	}

	switch {
	case p.Scope.AllProjects && !options.NoAllProjects:
		key := options.AllProjectsKey
		if key == "" {
			key = "all_projects"
		}

		query.Set(key, strconv.FormatBool(true))
	case p.Scope.ProjectID != "" && !p.Scope.AllProjects && !options.NoProject:
		key := options.ProjectKey
		if key == "" {
			key = "project_id"
		}

		query.Set(key, p.Scope.ProjectID)
	}

	return query
}

// Paginate applies paging to a complete, already filtered and sorted,
// backend result.  OpenStack APIs don't report totals, so when a page can't
// be reached by marker adapters read everything and window it.
func Paginate(rows []Row, params Params) Page {
	return Page{
		Items: Window(rows, params.PageIndex, params.PageSize),
		Total: len(rows),
	}
}

// Keyset builds a page from a single backend page read with a limit of one
// more than the page size.
func Keyset(config *Config, rows []Row, params Params) Page {
	page := Page{
		Items: rows,
	}

	if params.PageSize > 0 && len(rows) > params.PageSize {
		page.Items = rows[:params.PageSize]
		page.Next = page.Items[len(page.Items)-1].Key(config.RowKey)
	}

	page.Total = (max(params.PageIndex, 1)-1)*params.PageSize + len(page.Items)

	if page.Next != "" {
		page.Total++
	}

	return page
}
