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

//nolint:testpackage
package resource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()

	return &Config{
		Name:   "things",
		RowKey: "id",
		Columns: []ColumnSpec{
			{Key: "name", Sortable: true},
			{Key: "size", Sortable: true},
			{Key: "project_name", SortKey: "project_id", Sortable: true},
		},
		Filters: []FilterSpec{
			{Name: "name", Kind: FilterText},
			{Name: "status", Kind: FilterSelect},
		},
	}
}

func keys(rows []Row) []string {
	out := make([]string, len(rows))

	for i, row := range rows {
		out[i] = row.Key("id")
	}

	return out
}

func TestSortRowsNullsLast(t *testing.T) {
	t.Parallel()

	config := testConfig(t)

	rows := []Row{
		{"id": "a", "size": 3.0},
		{"id": "b"},
		{"id": "c", "size": 1.0},
		{"id": "d", "size": 2.0},
	}

	require.Equal(t, []string{"c", "d", "a", "b"}, keys(SortRows(config, rows, Sort{Key: "size", Direction: Ascending})))
	require.Equal(t, []string{"a", "d", "c", "b"}, keys(SortRows(config, rows, Sort{Key: "size", Direction: Descending})))

	// Input untouched.
	require.Equal(t, []string{"a", "b", "c", "d"}, keys(rows))
}

func TestSortRowsStable(t *testing.T) {
	t.Parallel()

	config := testConfig(t)

	rows := []Row{
		{"id": "a", "name": "x"},
		{"id": "b", "name": "x"},
		{"id": "c", "name": "w"},
	}

	require.Equal(t, []string{"c", "a", "b"}, keys(SortRows(config, rows, Sort{Key: "name", Direction: Ascending})))
}

func TestDefaultCompare(t *testing.T) {
	t.Parallel()

	require.Negative(t, DefaultCompare(2.0, 10.0))
	require.Positive(t, DefaultCompare("b", "a"))
	require.Negative(t, DefaultCompare(false, true))
	require.Zero(t, DefaultCompare(true, true))
}

func TestFilterRows(t *testing.T) {
	t.Parallel()

	config := testConfig(t)

	rows := []Row{
		{"id": "a", "name": "Private-Net", "status": "ACTIVE"},
		{"id": "b", "name": "public", "status": "DOWN"},
		{"id": "c", "name": "private2", "status": "ACTIVE_SOON"},
	}

	require.Equal(t, []string{"a", "c"}, keys(FilterRows(config, rows, map[string]string{"name": "private"})))
	require.Equal(t, []string{"a"}, keys(FilterRows(config, rows, map[string]string{"name": "private", "status": "ACTIVE"})))
	require.Equal(t, []string{"a", "b", "c"}, keys(FilterRows(config, rows, map[string]string{"name": ""})))
	require.Empty(t, FilterRows(config, rows, map[string]string{"name": "nope"}))
}

func TestWindow(t *testing.T) {
	t.Parallel()

	rows := []Row{{"id": "a"}, {"id": "b"}, {"id": "c"}}

	require.Equal(t, []string{"a", "b"}, keys(Window(rows, 1, 2)))
	require.Equal(t, []string{"c"}, keys(Window(rows, 2, 2)))
	require.Empty(t, Window(rows, 3, 2))
	require.Len(t, Window(rows, 1, 0), 3)
}

func TestQueryBackend(t *testing.T) {
	t.Parallel()

	config := testConfig(t)
	config.FilterByBackend = true
	config.SortByBackend = true

	params := Params{
		Sort:    Sort{Key: "project_name", Direction: Descending},
		Filters: map[string]string{"status": "ACTIVE", "name": ""},
		Related: map[string][]string{"fixed_ip_address": {"10.0.0.2", "10.0.0.1"}},
		Scope:   Scope{ProjectID: "p1"},
	}

	query := params.Query(config, nil)
	require.Equal(t, "ACTIVE", query.Get("status"))
	require.False(t, query.Has("name"))
	require.Equal(t, "project_id", query.Get("sort_key"))
	require.Equal(t, "desc", query.Get("sort_dir"))
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, query["fixed_ip_address"])
	require.Equal(t, "p1", query.Get("project_id"))
}

func TestKeyset(t *testing.T) {
	t.Parallel()

	config := testConfig(t)

	rows := []Row{{"id": "a"}, {"id": "b"}, {"id": "c"}}

	page := Keyset(config, rows, Params{PageIndex: 3, PageSize: 2})
	require.Equal(t, []string{"a", "b"}, keys(page.Items))
	require.Equal(t, "b", page.Next)
	require.Equal(t, 7, page.Total)

	page = Keyset(config, rows[:2], Params{PageIndex: 1, PageSize: 2})
	require.Empty(t, page.Next)
	require.Equal(t, 2, page.Total)

	params := Params{PageSize: 2, Keyset: true, Marker: "b"}

	query := params.Query(config, nil)
	require.Equal(t, "3", query.Get("limit"))
	require.Equal(t, "b", query.Get("marker"))

	params = Params{PageSize: 2}
	require.False(t, params.Query(config, nil).Has("limit"))
}

func TestQueryLocal(t *testing.T) {
	t.Parallel()

	config := testConfig(t)

	params := Params{
		Sort:    Sort{Key: "name"},
		Filters: map[string]string{"status": "ACTIVE"},
		Scope:   Scope{ProjectID: "p1", AllProjects: true},
	}

	query := params.Query(config, &QueryOptions{NoAllProjects: true})
	require.False(t, query.Has("status"))
	require.False(t, query.Has("sort_key"))
	require.False(t, query.Has("all_projects"))
	require.False(t, query.Has("project_id"))
}

func TestQueryScopeKeys(t *testing.T) {
	t.Parallel()

	config := testConfig(t)

	all := Params{Scope: Scope{ProjectID: "p1", AllProjects: true}}

	query := all.Query(config, &QueryOptions{AllProjectsKey: "all_tenants"})
	require.Equal(t, "true", query.Get("all_tenants"))
	require.False(t, query.Has("all_projects"))

	project := Params{Scope: Scope{ProjectID: "p1"}}

	query = project.Query(config, &QueryOptions{NoProject: true})
	require.Empty(t, query)

	query = project.Query(config, &QueryOptions{ProjectKey: "owner"})
	require.Equal(t, "p1", query.Get("owner"))
}

func TestLookup(t *testing.T) {
	t.Parallel()

	row := Row{"instance_info": map[string]any{"display_name": "bm-1"}, "a.b": "literal"}

	require.Equal(t, "bm-1", row.String("instance_info.display_name"))
	require.Equal(t, "literal", row.String("a.b"))
	require.Nil(t, row.Lookup("missing.path"))
}
