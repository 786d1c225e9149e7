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
	"context"
	"errors"
)

var (
	// ErrInvalidDirection is raised when a sort direction isn't recognised.
	ErrInvalidDirection = errors.New("invalid sort direction")
)

// Row is a single resource as returned by the backend API.  Rows are
// snapshots and are never mutated in place, changes are made by calling
// the backend and fetching again.
type Row map[string]any

// Direction is the direction of a sort.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection converts user input into a direction, empty defaults to
// ascending.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	}

	return "", ErrInvalidDirection
}

// Sort defines how a list is ordered.
type Sort struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

// Comparator orders two values, returning <0, 0 or >0.
type Comparator func(a, b any) int

// ColumnSpec describes a column on a list page.
type ColumnSpec struct {
	// Key is the row field the column displays.
	Key string `json:"key"`

	// Title is the column heading.
	Title string `json:"title"`

	// SortKey, when set, is sent to the backend instead of Key.
	SortKey string `json:"sortKey,omitempty"`

	// Sortable allows the user to sort by this column.
	Sortable bool `json:"sortable"`

	// Hidden columns are available, but not displayed by default.
	Hidden bool `json:"hidden,omitempty"`

	// Compare overrides the default comparator for local sorting.
	Compare Comparator `json:"-"`

	// Value derives the value from the row, for computed columns.
	Value func(Row) any `json:"-"`
}

// SortField returns the name used when sorting by the backend.
func (c *ColumnSpec) SortField() string {
	if c.SortKey != "" {
		return c.SortKey
	}

	return c.Key
}

// Extract returns the column value for a row.
func (c *ColumnSpec) Extract(row Row) any {
	if c.Value != nil {
		return c.Value(row)
	}

	return row.Lookup(c.Key)
}

// FilterKind is how a filter is input.
type FilterKind string

const (
	FilterText   FilterKind = "text"
	FilterSelect FilterKind = "select"
)

// FilterOption is a valid value for a select filter.
type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterSpec describes a search filter.
type FilterSpec struct {
	Name    string         `json:"name"`
	Label   string         `json:"label"`
	Kind    FilterKind     `json:"kind"`
	Options []FilterOption `json:"options,omitempty"`
}

// Scope limits a fetch to a project, unless all projects are requested
// from an admin page.
type Scope struct {
	ProjectID   string
	AllProjects bool
}

// Params are passed to an adapter's fetch.
type Params struct {
	// PageIndex is 1 based.
	PageIndex int

	// PageSize of zero means return everything.
	PageSize int

	// Sort is only honoured when the adapter sorts by backend.
	Sort Sort

	// Filters are only honoured when the adapter filters by backend.
	Filters map[string]string

	// Related restricts results to a set of values of a field, for example
	// floating IPs associated with a server's fixed IP addresses.
	Related map[string][]string

	// Scope is the project scope.
	Scope Scope

	// Keyset asks the backend for the single page of PageSize rows that
	// follows Marker, rather than the whole collection.
	Keyset bool

	// Marker is the key of the last row of the previous page, empty for
	// the first page.
	Marker string
}

// Page is a fetch result.  Total is the size of the full result set, for
// keyset fetches it counts up to this page, and one more when there is a
// following page.
type Page struct {
	Items []Row
	Total int

	// Next is the marker of the following page, only set by keyset
	// fetches that aren't on the last page.
	Next string
}

// Config is the declarative part of an adapter.
type Config struct {
	// Name is the page identifier e.g. "networks".
	Name string

	// Title is a human readable name.
	Title string

	// RowKey is the field that uniquely identifies a row.
	RowKey string

	// Columns are the columns to display.
	Columns []ColumnSpec

	// Filters are the filters that can be applied.
	Filters []FilterSpec

	// DefaultSort is applied when nothing else is chosen.
	DefaultSort Sort

	// FilterByBackend sends filters to the backend API.
	FilterByBackend bool

	// SortByBackend sends sorting to the backend API.
	SortByBackend bool

	// Policy rules required to view the page.
	Policy []string

	// StatusKey is the row field holding the resource status.
	StatusKey string

	// TransitionStatuses are statuses that will change on their own,
	// rows in one of these need polling.
	TransitionStatuses []string
}

// Column looks up a column by key.
func (c *Config) Column(key string) (*ColumnSpec, bool) {
	for i := range c.Columns {
		if c.Columns[i].Key == key {
			return &c.Columns[i], true
		}
	}

	return nil, false
}

// Filter looks up a filter by name.
func (c *Config) Filter(name string) (*FilterSpec, bool) {
	for i := range c.Filters {
		if c.Filters[i].Name == name {
			return &c.Filters[i], true
		}
	}

	return nil, false
}

// Adapter specializes the generic list behaviour to a resource type.
type Adapter interface {
	// Config returns the static configuration.
	Config() *Config

	// FetchPage gets a page of data.
	FetchPage(ctx context.Context, params Params) (Page, error)
}
