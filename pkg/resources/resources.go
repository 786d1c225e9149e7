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
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/unikorn-cloud/console/pkg/action"
	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/list"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// CloudOptions describe the cloud for generated client configuration.
type CloudOptions struct {
	AuthURL   string
	Region    string
	Interface string
}

// Environment is everything a page needs to know about the session.
type Environment struct {
	// UserID is the token's user.
	UserID string

	// ProjectID is the token's project.
	ProjectID string

	// Admin selects the admin view of a page, across all projects.
	Admin bool

	// AdminRole is set when the user holds the admin role.
	AdminRole bool

	// Policy checks rules for the user.
	Policy action.PolicyChecker

	// Services are the backend clients.
	Services Services

	// Cloud is used when generating client configuration.
	Cloud CloudOptions
}

// Scope returns the project scope of list fetches.
func (e *Environment) Scope() resource.Scope {
	return resource.Scope{
		ProjectID:   e.ProjectID,
		AllProjects: e.Admin,
	}
}

// ownerOrAdmin checks the row belongs to the user's project, or the user is
// an administrator.
func (e *Environment) ownerOrAdmin(row resource.Row, field string) bool {
	return e.AdminRole || (e.ProjectID != "" && row.String(field) == e.ProjectID)
}

// Page is a configured list page.
type Page struct {
	// Adapter fetches the data.
	Adapter resource.Adapter

	// Actions are what can be done on the page.
	Actions []action.Descriptor

	// Related, if set, constrains a detail page list.
	Related list.RelatedFunc
}

// Definition registers a page.
type Definition struct {
	Name  string
	Title string

	// New builds the page for a session.
	New func(env *Environment) *Page
}

//nolint:gochecknoglobals
var definitions = []Definition{
	{Name: "networks", Title: "Networks", New: NewNetworks},
	{Name: "floatingips", Title: "Floating IPs", New: NewFloatingIPs},
	{Name: "volumes", Title: "Volumes", New: NewVolumes},
	{Name: "snapshots", Title: "Volume Snapshots", New: NewSnapshots},
	{Name: "images", Title: "Images", New: NewImages},
	{Name: "baremetal", Title: "Bare Metal Nodes", New: NewBareMetalNodes},
	{Name: "credentials", Title: "Application Credentials", New: NewCredentials},
	{Name: "backups", Title: "Database Backups", New: NewBackups},
	{Name: "capsules", Title: "Capsules", New: NewCapsules},
}

// Definitions returns all known pages.
func Definitions() []Definition {
	return slices.Clone(definitions)
}

// Lookup finds a page by name.
func Lookup(name string) (*Definition, error) {
	for i := range definitions {
		if definitions[i].Name == name {
			return &definitions[i], nil
		}
	}

	return nil, fmt.Errorf("%w: page %s", errors.ErrNotFound, name)
}

// Descriptor is the static description of a page, as used by a renderer
// to lay out tables, filters and buttons.
type Descriptor struct {
	Name            string                `json:"name"`
	Title           string                `json:"title"`
	RowKey          string                `json:"rowKey"`
	Columns         []resource.ColumnSpec `json:"columns"`
	Filters         []resource.FilterSpec `json:"filters"`
	DefaultSort     resource.Sort         `json:"defaultSort"`
	FilterByBackend bool                  `json:"filterByBackend"`
	SortByBackend   bool                  `json:"sortByBackend"`
	Policy          []string              `json:"policy,omitempty"`
	Actions         []action.Descriptor   `json:"actions"`
}

// Describe returns descriptors for all pages.
func Describe() []Descriptor {
	result := make([]Descriptor, 0, len(definitions))

	for _, definition := range definitions {
		page := definition.New(&Environment{})
		config := page.Adapter.Config()

		result = append(result, Descriptor{
			Name:            config.Name,
			Title:           config.Title,
			RowKey:          config.RowKey,
			Columns:         config.Columns,
			Filters:         config.Filters,
			DefaultSort:     config.DefaultSort,
			FilterByBackend: config.FilterByBackend,
			SortByBackend:   config.SortByBackend,
			Policy:          config.Policy,
			Actions:         page.Actions,
		})
	}

	return result
}

// fetchFunc reads a complete, backend filtered and sorted, result set.
type fetchFunc func(ctx context.Context, query url.Values) ([]resource.Row, error)

// adapter is the common adapter, pages differ only by configuration and
// the backend call.
type adapter struct {
	config *resource.Config
	query  *resource.QueryOptions
	fetch  fetchFunc
}

// Ensure the interface is implemented.
var _ resource.Adapter = &adapter{}

func (a *adapter) Config() *resource.Config {
	return a.config
}

func (a *adapter) FetchPage(ctx context.Context, params resource.Params) (resource.Page, error) {
	rows, err := a.fetch(ctx, params.Query(a.config, a.query))
	if err != nil {
		return resource.Page{}, err
	}

	if params.Keyset {
		return resource.Keyset(a.config, rows, params), nil
	}

	return resource.Paginate(rows, params), nil
}

// statusIn returns a predicate that matches any of the statuses, ignoring
// case as services disagree.
func statusIn(field string, statuses ...string) func(resource.Row) bool {
	return func(row resource.Row) bool {
		status := strings.ToLower(row.String(field))

		return slices.Contains(statuses, status)
	}
}

// byKey returns a submit function that calls fn with the row key.
func byKey(key string, fn func(ctx context.Context, id string) error) action.SubmitFunc {
	return func(ctx context.Context, row resource.Row) error {
		id := row.Key(key)
		if id == "" {
			return errors.Invalid("row has no %s", key)
		}

		return fn(ctx, id)
	}
}

// statusOptions creates select filter options from values.
func statusOptions(values ...string) []resource.FilterOption {
	options := make([]resource.FilterOption, len(values))

	for i, value := range values {
		options[i] = resource.FilterOption{
			Value: value,
			Label: strings.ReplaceAll(strings.ToLower(value), "_", " "),
		}
	}

	return options
}
