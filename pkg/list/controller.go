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

package list

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/resource"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// RelatedFunc returns the key sets a detail page list is constrained to,
// for example the fixed IP addresses of a server.
type RelatedFunc func(ctx context.Context) (map[string][]string, error)

// Options configure a controller.
type Options struct {
	// PageSize is the initial page size.
	PageSize int

	// Scope is the project scope of all fetches.
	Scope resource.Scope

	// Related, when set, makes this a detail page list.
	Related RelatedFunc
}

// State is what a page renders.
type State struct {
	Items     []resource.Row    `json:"items"`
	Total     int               `json:"total"`
	PageIndex int               `json:"page"`
	PageSize  int               `json:"pageSize"`
	Sort      resource.Sort     `json:"sort"`
	Filters   map[string]string `json:"filters"`
	Loading   bool              `json:"loading"`
	Error     *errors.Info      `json:"error,omitempty"`
}

func (s *State) clone() State {
	out := *s
	out.Items = slices.Clone(s.Items)
	out.Filters = maps.Clone(s.Filters)

	if out.Items == nil {
		out.Items = []resource.Row{}
	}

	if out.Filters == nil {
		out.Filters = map[string]string{}
	}

	return out
}

// Controller owns the list state of a single page for its lifetime.
type Controller struct {
	adapter resource.Adapter
	config  *resource.Config
	scope   resource.Scope
	related RelatedFunc

	// lifetime is cancelled on teardown, aborting fetches in flight.
	lifetime context.Context
	cancel   context.CancelFunc

	lock sync.Mutex

	state State

	// all is the last complete backend result, used when filtering or
	// sorting locally so changes don't need a round trip.
	all []resource.Row

	// markers are the keyset markers of delegated pages by index, learned
	// as pages are read and only valid for the current sort, filters and
	// page size.
	markers map[int]string

	// issued is the sequence number of the most recently issued fetch.
	issued uint64

	closed bool

	// loaded is set after the first successful fetch.
	loaded bool
}

// New returns a controller for the adapter.
func New(adapter resource.Adapter, options *Options) *Controller {
	if options == nil {
		options = &Options{}
	}

	config := adapter.Config()

	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}

	sort := config.DefaultSort
	if sort.Key != "" && sort.Direction == "" {
		sort.Direction = resource.Ascending
	}

	lifetime, cancel := context.WithCancel(context.Background())

	return &Controller{
		adapter:  adapter,
		config:   config,
		scope:    options.Scope,
		related:  options.Related,
		lifetime: lifetime,
		cancel:   cancel,
		markers:  map[int]string{},
		state: State{
			Items:     []resource.Row{},
			PageIndex: 1,
			PageSize:  pageSize,
			Sort:      sort,
			Filters:   map[string]string{},
		},
	}
}

// Config returns the adapter configuration.
func (c *Controller) Config() *resource.Config {
	return c.config
}

// Delegated reports whether paging is done by the backend, which is only
// possible when both filtering and sorting are.
func (c *Controller) Delegated() bool {
	return c.config.FilterByBackend && c.config.SortByBackend
}

func (c *Controller) mode() string {
	switch {
	case c.Delegated():
		return "backend"
	case c.config.FilterByBackend || c.config.SortByBackend:
		return "mixed"
	}

	return "local"
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.clone()
}

// InTransition reports whether any displayed row is in a status that will
// change without user interaction.
func (c *Controller) InTransition() bool {
	if c.config.StatusKey == "" || len(c.config.TransitionStatuses) == 0 {
		return false
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	for _, row := range c.state.Items {
		status := strings.ToLower(row.String(c.config.StatusKey))

		if slices.Contains(c.config.TransitionStatuses, status) {
			return true
		}
	}

	return false
}

// Loaded reports whether data has been successfully fetched.
func (c *Controller) Loaded() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.loaded
}

// Closed reports whether the controller has been torn down.
func (c *Controller) Closed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.closed
}

// Close tears down the controller, cancelling any fetches in flight.  Results
// that arrive afterwards are ignored.
func (c *Controller) Close() {
	c.lock.Lock()
	c.closed = true
	c.lock.Unlock()

	c.cancel()
}

type fetchOptions struct {
	silent    bool
	pageIndex *int
	pageSize  *int
	sort      *resource.Sort
	filters   map[string]string
}

// FetchOption overrides controller state for a fetch.
type FetchOption func(*fetchOptions)

// Silent suppresses the loading indicator, used for background refreshes.
func Silent() FetchOption {
	return func(o *fetchOptions) {
		o.silent = true
	}
}

// WithPage sets the page index.
func WithPage(index int) FetchOption {
	return func(o *fetchOptions) {
		o.pageIndex = &index
	}
}

// WithPageSize sets the page size.
func WithPageSize(size int) FetchOption {
	return func(o *fetchOptions) {
		o.pageSize = &size
	}
}

// WithSort sets the sort order.
func WithSort(sort resource.Sort) FetchOption {
	return func(o *fetchOptions) {
		o.sort = &sort
	}
}

// WithFilters replaces the filters.
func WithFilters(filters map[string]string) FetchOption {
	return func(o *fetchOptions) {
		o.filters = maps.Clone(filters)

		if o.filters == nil {
			o.filters = map[string]string{}
		}
	}
}

// issue merges overrides into the state and allocates a sequence number.
// It reports whether the filters changed.
// NOTE: you MUST hold the lock when calling this.
func (c *Controller) issue(o *fetchOptions) (uint64, resource.Params, bool) {
	refiltered := o.filters != nil && !maps.Equal(o.filters, c.state.Filters)

	if refiltered ||
		(o.sort != nil && *o.sort != c.state.Sort) ||
		(o.pageSize != nil && *o.pageSize > 0 && *o.pageSize != c.state.PageSize) {
		c.markers = map[int]string{}
	}

	if o.pageIndex != nil {
		c.state.PageIndex = max(*o.pageIndex, 1)
	}

	if o.pageSize != nil && *o.pageSize > 0 {
		c.state.PageSize = *o.pageSize
	}

	if o.sort != nil {
		c.state.Sort = *o.sort
	}

	if o.filters != nil {
		c.state.Filters = o.filters
	}

	c.issued++

	if !o.silent {
		c.state.Loading = true
	}

	params := resource.Params{
		PageIndex: 1,
		Sort:      c.state.Sort,
		Filters:   maps.Clone(c.state.Filters),
		Scope:     c.scope,
	}

	// Only let the backend page when it does all the work, otherwise we
	// need the full set to filter or sort over.
	if c.Delegated() {
		params.PageIndex = c.state.PageIndex
		params.PageSize = c.state.PageSize

		// A page is read on its own when we know where it starts,
		// otherwise the backend pages everything to us.
		if marker, ok := c.markers[c.state.PageIndex]; ok || c.state.PageIndex == 1 {
			params.Keyset = true
			params.Marker = marker
		}
	}

	return c.issued, params, refiltered
}

// Fetch gets data from the backend and replaces the list contents.  Errors
// are recorded in the state, leaving the previous items in place.
func (c *Controller) Fetch(ctx context.Context, opts ...FetchOption) State {
	o := &fetchOptions{}

	for _, opt := range opts {
		opt(o)
	}

	c.lock.Lock()

	if c.closed {
		defer c.lock.Unlock()

		return c.state.clone()
	}

	sequence, params, refiltered := c.issue(o)

	c.lock.Unlock()

	page, all, err := c.load(ctx, params)

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed || sequence != c.issued {
		staleResponsesMetric.WithLabelValues(c.config.Name).Inc()

		log.FromContext(ctx).V(1).Info("discarding list response", "resource", c.config.Name, "reason", errors.ErrStaleResponse, "sequence", sequence, "latest", c.issued, "closed", c.closed)

		return c.state.clone()
	}

	c.state.Loading = false

	if err != nil {
		info := errors.NewInfo(err)

		fetchErrorsMetric.WithLabelValues(c.config.Name, string(info.Kind)).Inc()

		log.FromContext(ctx).Info("list fetch failed", "resource", c.config.Name, "error", err)

		c.state.Error = info

		return c.state.clone()
	}

	c.state.Error = nil
	c.loaded = true

	if c.Delegated() {
		c.state.Items = page.Items
		c.state.Total = page.Total

		if page.Next != "" {
			c.markers[params.PageIndex+1] = page.Next
		}

		return c.state.clone()
	}

	c.all = all
	c.derive(refiltered)

	return c.state.clone()
}

// load performs the backend call, bound to both the caller's context and the
// controller lifetime.
func (c *Controller) load(ctx context.Context, params resource.Params) (resource.Page, []resource.Row, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(c.lifetime, cancel)
	defer stop()

	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "list "+c.config.Name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	span.SetAttributes(attribute.String("list.mode", c.mode()))

	timer := prometheus.NewTimer(fetchDurationMetric.WithLabelValues(c.config.Name, c.mode()))
	defer timer.ObserveDuration()

	if c.related != nil {
		related, err := c.related(ctx)
		if err != nil {
			return resource.Page{}, nil, err
		}

		// Nothing to relate to, nothing to show, and no need to ask.
		if emptyRelation(related) {
			return resource.Page{Items: []resource.Row{}}, []resource.Row{}, nil
		}

		params.Related = related
	}

	page, err := c.adapter.FetchPage(ctx, params)
	if err != nil {
		return resource.Page{}, nil, err
	}

	if page.Items == nil {
		page.Items = []resource.Row{}
	}

	return page, page.Items, nil
}

func emptyRelation(related map[string][]string) bool {
	for _, values := range related {
		if len(values) > 0 {
			return false
		}
	}

	return true
}

// derive recomputes the visible items from the last full backend result
// applying whatever isn't delegated.  When resetPage is set the page index
// is reset to 1 if the current page would be empty.
// NOTE: you MUST hold the lock when calling this.
func (c *Controller) derive(resetPage bool) {
	rows := c.all

	if !c.config.FilterByBackend {
		rows = resource.FilterRows(c.config, rows, c.state.Filters)
	}

	if !c.config.SortByBackend {
		rows = resource.SortRows(c.config, rows, c.state.Sort)
	}

	if resetPage && len(resource.Window(rows, c.state.PageIndex, c.state.PageSize)) == 0 {
		c.state.PageIndex = 1
	}

	c.state.Total = len(rows)
	c.state.Items = slices.Clone(resource.Window(rows, c.state.PageIndex, c.state.PageSize))
}

// rederive applies a local change, fetching first if nothing has been loaded.
func (c *Controller) rederive(ctx context.Context, resetPage bool, mutate func(*State)) State {
	c.lock.Lock()

	if c.closed {
		defer c.lock.Unlock()

		return c.state.clone()
	}

	mutate(&c.state)

	if c.all == nil {
		c.lock.Unlock()

		return c.Fetch(ctx)
	}

	defer c.lock.Unlock()

	c.derive(resetPage)

	return c.state.clone()
}

// SetFilters replaces the active filters.
func (c *Controller) SetFilters(ctx context.Context, filters map[string]string) State {
	if c.config.FilterByBackend {
		return c.Fetch(ctx, WithFilters(filters), WithPage(1))
	}

	return c.rederive(ctx, true, func(s *State) {
		s.Filters = maps.Clone(filters)

		if s.Filters == nil {
			s.Filters = map[string]string{}
		}
	})
}

// SetSort changes the sort order.
func (c *Controller) SetSort(ctx context.Context, sort resource.Sort) State {
	if sort.Direction == "" {
		sort.Direction = resource.Ascending
	}

	if c.config.SortByBackend {
		return c.Fetch(ctx, WithSort(sort))
	}

	return c.rederive(ctx, false, func(s *State) {
		s.Sort = sort
	})
}

// SetPage changes the page.
func (c *Controller) SetPage(ctx context.Context, index, size int) State {
	if c.Delegated() {
		return c.Fetch(ctx, WithPage(index), WithPageSize(size))
	}

	return c.rederive(ctx, false, func(s *State) {
		s.PageIndex = max(index, 1)

		if size > 0 {
			s.PageSize = size
		}
	})
}

// Refresh implements the action pipeline's refresher, it refetches keeping
// the current view and without a loading indicator.
func (c *Controller) Refresh(ctx context.Context) {
	c.Fetch(ctx, Silent())
}
