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
package list

import (
	"context"
	goerrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/resource"
)

type fetchFunc func(ctx context.Context, call int, params resource.Params) (resource.Page, error)

// fakeAdapter emulates a backend that honours whatever is delegated to it.
type fakeAdapter struct {
	config resource.Config
	rows   []resource.Row

	lock  sync.Mutex
	calls []resource.Params

	hook fetchFunc
}

func (f *fakeAdapter) Config() *resource.Config {
	return &f.config
}

func (f *fakeAdapter) FetchPage(ctx context.Context, params resource.Params) (resource.Page, error) {
	f.lock.Lock()
	f.calls = append(f.calls, params)
	call := len(f.calls)
	f.lock.Unlock()

	if f.hook != nil {
		return f.hook(ctx, call, params)
	}

	return f.serve(params), nil
}

func (f *fakeAdapter) serve(params resource.Params) resource.Page {
	rows := f.rows

	if f.config.FilterByBackend {
		rows = resource.FilterRows(&f.config, rows, params.Filters)
	}

	if f.config.SortByBackend {
		rows = resource.SortRows(&f.config, rows, params.Sort)
	}

	if params.Keyset {
		return resource.Keyset(&f.config, after(rows, params.Marker, params.PageSize+1), params)
	}

	return resource.Paginate(rows, params)
}

// after emulates limit and marker query parameters.
func after(rows []resource.Row, marker string, limit int) []resource.Row {
	if marker != "" {
		for i, row := range rows {
			if row.Key("id") == marker {
				rows = rows[i+1:]
				break
			}
		}
	}

	return rows[:min(limit, len(rows))]
}

func (f *fakeAdapter) callCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()

	return len(f.calls)
}

func (f *fakeAdapter) lastCall(t *testing.T) resource.Params {
	t.Helper()

	f.lock.Lock()
	defer f.lock.Unlock()

	require.NotEmpty(t, f.calls)

	return f.calls[len(f.calls)-1]
}

func newFakeAdapter(t *testing.T, n int, filterByBackend, sortByBackend bool) *fakeAdapter {
	t.Helper()

	rows := make([]resource.Row, n)

	for i := range rows {
		status := "ACTIVE"
		if i%2 == 1 {
			status = "DOWN"
		}

		rows[i] = resource.Row{
			"id":     fmt.Sprintf("id-%02d", i),
			"name":   fmt.Sprintf("name-%02d", i),
			"size":   float64(i),
			"status": status,
		}
	}

	return &fakeAdapter{
		config: resource.Config{
			Name:   "things",
			RowKey: "id",
			Columns: []resource.ColumnSpec{
				{Key: "name", Sortable: true},
				{Key: "size", Sortable: true},
				{Key: "status", Sortable: true},
			},
			Filters: []resource.FilterSpec{
				{Name: "name", Kind: resource.FilterText},
				{Name: "status", Kind: resource.FilterSelect},
			},
			DefaultSort:        resource.Sort{Key: "name"},
			FilterByBackend:    filterByBackend,
			SortByBackend:      sortByBackend,
			StatusKey:          "status",
			TransitionStatuses: []string{"build"},
		},
		rows: rows,
	}
}

func ids(rows []resource.Row) []string {
	out := make([]string, len(rows))

	for i, row := range rows {
		out[i] = row.Key("id")
	}

	return out
}

func TestBackendPaging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 25, true, true)

	c := New(adapter, &Options{PageSize: 10})

	// Only the first page is read, so the total counts as far as the next.
	state := c.Fetch(ctx)
	require.Len(t, state.Items, 10)
	require.Equal(t, 11, state.Total)
	require.False(t, state.Loading)
	require.Nil(t, state.Error)

	call := adapter.lastCall(t)
	require.Equal(t, 1, call.PageIndex)
	require.Equal(t, 10, call.PageSize)
	require.Equal(t, "name", call.Sort.Key)
	require.True(t, call.Keyset)
	require.Empty(t, call.Marker)

	state = c.SetPage(ctx, 2, 10)
	require.Equal(t, "id-10", state.Items[0].Key("id"))
	require.Equal(t, 21, state.Total)

	call = adapter.lastCall(t)
	require.True(t, call.Keyset)
	require.Equal(t, "id-09", call.Marker)

	state = c.SetPage(ctx, 3, 10)
	require.Len(t, state.Items, 5)
	require.Equal(t, 25, state.Total)
	require.Equal(t, 3, adapter.lastCall(t).PageIndex)
	require.Equal(t, "id-19", adapter.lastCall(t).Marker)

	// Going back uses the marker already learned.
	state = c.SetPage(ctx, 2, 10)
	require.Equal(t, "id-10", state.Items[0].Key("id"))
	require.Equal(t, "id-09", adapter.lastCall(t).Marker)
	require.Equal(t, 4, adapter.callCount())
}

func TestBackendPagingJump(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 25, true, true)

	c := New(adapter, &Options{PageSize: 10})

	// Nothing is known about where page 3 starts, so everything is read.
	state := c.SetPage(ctx, 3, 10)
	require.Len(t, state.Items, 5)
	require.Equal(t, 25, state.Total)
	require.False(t, adapter.lastCall(t).Keyset)

	// Changing the sort forgets markers.
	c.SetPage(ctx, 1, 10)
	c.SetPage(ctx, 2, 10)
	require.True(t, adapter.lastCall(t).Keyset)

	c.Fetch(ctx, WithSort(resource.Sort{Key: "size", Direction: resource.Descending}))
	require.False(t, adapter.lastCall(t).Keyset)
}

func TestBackendFilterResetsPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 25, true, true)

	c := New(adapter, &Options{PageSize: 10})

	c.SetPage(ctx, 2, 10)

	state := c.SetFilters(ctx, map[string]string{"status": "DOWN"})
	require.Equal(t, 1, state.PageIndex)
	require.Len(t, state.Items, 10)
	require.Equal(t, 11, state.Total)
	require.Equal(t, map[string]string{"status": "DOWN"}, adapter.lastCall(t).Filters)
	require.True(t, adapter.lastCall(t).Keyset)
}

func TestFetchIdempotent(t *testing.T) {
	t.Parallel()

	for _, delegated := range []bool{true, false} {
		ctx := context.Background()
		adapter := newFakeAdapter(t, 25, delegated, delegated)

		c := New(adapter, &Options{PageSize: 10})

		c.Fetch(ctx, WithPage(2), WithFilters(map[string]string{"name": "name-"}))

		first := c.Fetch(ctx)
		second := c.Fetch(ctx)

		require.Equal(t, first, second, "delegated: %v", delegated)
		require.Equal(t, 2, second.PageIndex)
		require.Len(t, second.Items, 10)
	}
}

func TestBackendSort(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 5, true, true)

	c := New(adapter, nil)

	state := c.SetSort(ctx, resource.Sort{Key: "size", Direction: resource.Descending})
	require.Equal(t, []string{"id-04", "id-03", "id-02", "id-01", "id-00"}, ids(state.Items))
	require.Equal(t, resource.Sort{Key: "size", Direction: resource.Descending}, adapter.lastCall(t).Sort)
}

func TestLocalFilterSortPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 15, false, false)

	c := New(adapter, &Options{PageSize: 10})

	state := c.Fetch(ctx)
	require.Len(t, state.Items, 10)
	require.Equal(t, 15, state.Total)
	require.Equal(t, 0, adapter.lastCall(t).PageSize, "local mode must fetch everything")

	state = c.SetPage(ctx, 2, 10)
	require.Len(t, state.Items, 5)
	require.Equal(t, 2, state.PageIndex)

	// Everything still reaches page 2, so it is kept.
	state = c.SetFilters(ctx, map[string]string{"name": "name-"})
	require.Equal(t, 2, state.PageIndex)

	// 8 rows fit on one page, so back to page 1.
	state = c.SetFilters(ctx, map[string]string{"status": "ACTIVE"})
	require.Equal(t, 1, state.PageIndex)
	require.Equal(t, 8, state.Total)

	state = c.SetSort(ctx, resource.Sort{Key: "size", Direction: resource.Descending})
	require.Equal(t, "id-14", state.Items[0].Key("id"))

	require.Equal(t, 1, adapter.callCount(), "local changes must not hit the backend")
}

func TestMixedDelegation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 12, true, false)

	c := New(adapter, &Options{PageSize: 5})

	state := c.SetFilters(ctx, map[string]string{"status": "ACTIVE"})
	require.Equal(t, 6, state.Total)
	require.Len(t, state.Items, 5)

	call := adapter.lastCall(t)
	require.Equal(t, 0, call.PageSize)
	require.Equal(t, "ACTIVE", call.Filters["status"])

	calls := adapter.callCount()

	state = c.SetSort(ctx, resource.Sort{Key: "size", Direction: resource.Descending})
	require.Equal(t, "id-10", state.Items[0].Key("id"))
	require.Equal(t, calls, adapter.callCount())
}

func TestStaleResponseDiscarded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 3, true, true)

	releaseFirst := make(chan struct{})
	firstStarted := make(chan struct{})

	adapter.hook = func(ctx context.Context, call int, params resource.Params) (resource.Page, error) {
		if call == 1 {
			close(firstStarted)
			<-releaseFirst

			return resource.Page{Items: []resource.Row{{"id": "stale"}}, Total: 1}, nil
		}

		return resource.Page{Items: []resource.Row{{"id": "fresh"}}, Total: 1}, nil
	}

	c := New(adapter, nil)

	done := make(chan State)

	go func() {
		done <- c.Fetch(ctx)
	}()

	<-firstStarted

	state := c.Fetch(ctx)
	require.Equal(t, []string{"fresh"}, ids(state.Items))

	close(releaseFirst)
	<-done

	state = c.State()
	require.Equal(t, []string{"fresh"}, ids(state.Items))
	require.False(t, state.Loading)
	require.Nil(t, state.Error)
}

func TestErrorKeepsItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 3, true, true)

	c := New(adapter, nil)
	require.False(t, c.Loaded())

	state := c.Fetch(ctx)
	require.Len(t, state.Items, 3)
	require.True(t, c.Loaded())

	adapter.hook = func(context.Context, int, resource.Params) (resource.Page, error) {
		return resource.Page{}, goerrors.New("connection reset")
	}

	state = c.Fetch(ctx)
	require.Len(t, state.Items, 3)
	require.False(t, state.Loading)
	require.NotNil(t, state.Error)
	require.Equal(t, errors.KindInternal, state.Error.Kind)
	require.Equal(t, "connection reset", state.Error.Message)

	adapter.hook = nil

	state = c.Fetch(ctx)
	require.Nil(t, state.Error)
}

func TestSilentFetch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 3, true, true)

	var c *Controller

	var observed []bool

	adapter.hook = func(_ context.Context, _ int, params resource.Params) (resource.Page, error) {
		observed = append(observed, c.State().Loading)

		return adapter.serve(params), nil
	}

	c = New(adapter, nil)

	c.Fetch(ctx)
	c.Fetch(ctx, Silent())
	c.Refresh(ctx)

	require.Equal(t, []bool{true, false, false}, observed)
}

func TestCloseCancelsInFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 3, true, true)

	started := make(chan struct{})

	adapter.hook = func(ctx context.Context, _ int, _ resource.Params) (resource.Page, error) {
		close(started)
		<-ctx.Done()

		return resource.Page{}, ctx.Err()
	}

	c := New(adapter, nil)

	done := make(chan State)

	go func() {
		done <- c.Fetch(ctx)
	}()

	<-started
	c.Close()

	state := <-done
	require.Nil(t, state.Error, "late results after teardown are ignored")
	require.Empty(t, state.Items)
	require.True(t, c.Closed())

	// Further fetches are no-ops.
	c.Fetch(ctx)
	require.Equal(t, 1, adapter.callCount())
}

func TestDetailEmptyRelation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 3, true, true)

	related := func(context.Context) (map[string][]string, error) {
		return map[string][]string{"fixed_ip_address": nil}, nil
	}

	c := New(adapter, &Options{Related: related})

	state := c.Fetch(ctx)
	require.Empty(t, state.Items)
	require.Equal(t, 0, state.Total)
	require.False(t, state.Loading)
	require.Equal(t, 0, adapter.callCount())
}

func TestDetailRelation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 3, true, true)

	related := func(context.Context) (map[string][]string, error) {
		return map[string][]string{"fixed_ip_address": {"10.0.0.5"}}, nil
	}

	c := New(adapter, &Options{Related: related, Scope: resource.Scope{ProjectID: "p"}})

	c.Fetch(ctx)

	call := adapter.lastCall(t)
	require.Equal(t, []string{"10.0.0.5"}, call.Related["fixed_ip_address"])
	require.Equal(t, "p", call.Scope.ProjectID)
}

func TestInTransition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := newFakeAdapter(t, 3, false, false)

	c := New(adapter, nil)

	c.Fetch(ctx)
	require.False(t, c.InTransition())

	adapter.rows[1] = resource.Row{"id": "id-01", "name": "name-01", "status": "BUILD"}

	c.Fetch(ctx)
	require.True(t, c.InTransition())
}
