/*
Copyright 2022-2024 EscherCloud.
Copyright 2024-2025 the Unikorn Authors.

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

//nolint:revive
package handler

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/unikorn-cloud/console/pkg/action"
	consoleerrors "github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/list"
	"github.com/unikorn-cloud/console/pkg/openapi"
	"github.com/unikorn-cloud/console/pkg/resource"
	"github.com/unikorn-cloud/console/pkg/resources"
	"github.com/unikorn-cloud/console/pkg/server/authorization"
	"github.com/unikorn-cloud/console/pkg/server/errors"
	"github.com/unikorn-cloud/console/pkg/server/util"
	"github.com/unikorn-cloud/console/pkg/session"

	"k8s.io/utils/ptr"
)

type Handler struct {
	// sessions holds all user state.
	sessions *session.Manager

	// options allows behaviour to be defined on the CLI.
	options *Options
}

// Ensure the generated interface is implemented.
var _ openapi.ServerInterface = &Handler{}

func New(sessions *session.Manager, options *Options) (*Handler, error) {
	h := &Handler{
		sessions: sessions,
		options:  options,
	}

	return h, nil
}

// NotFound is called when no route matches.
func NotFound(w http.ResponseWriter, r *http.Request) {
	errors.HandleError(w, r, errors.HTTPNotFound("no route matches the request"))
}

// MethodNotAllowed is called when a route matches, but not the method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errors.HandleError(w, r, errors.HTTPMethodNotAllowed())
}

// HandleError is called when request parameters cannot be bound.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	errors.HandleError(w, r, errors.OAuth2InvalidRequest(err.Error()).WithError(err))
}

func (h *Handler) setCacheable(w http.ResponseWriter) {
	w.Header().Add("Cache-Control", fmt.Sprintf("max-age=%d", h.options.CacheMaxAge/time.Second))
	w.Header().Add("Cache-Control", "private")
}

func (h *Handler) setUncacheable(w http.ResponseWriter) {
	w.Header().Add("Cache-Control", "no-cache")
}

// handleError adds session specific mappings to the generic handler.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if goerrors.Is(err, session.ErrClosed) {
		err = errors.HTTPNotFound("session has been closed").WithError(err)
	}

	errors.HandleError(w, r, err)
}

// session returns the session, which must have been created with the same
// token as the request.  A mismatch is reported as not found so session IDs
// cannot be discovered by guessing.
func (h *Handler) session(r *http.Request, id string) (*session.Session, error) {
	token, err := authorization.TokenFromContext(r.Context())
	if err != nil {
		return nil, err
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		return nil, errors.HTTPNotFound("session not found").WithError(err)
	}

	if !s.Authorize(token) {
		return nil, errors.HTTPNotFound("session not found")
	}

	return s, nil
}

func convertSession(s *session.Session) *openapi.Session {
	details := s.Details()

	out := &openapi.Session{
		Id:        s.ID(),
		UserID:    details.UserID,
		ProjectID: details.ProjectID,
		Roles:     details.Roles,
		Admin:     s.Admin(),
	}

	if out.Roles == nil {
		out.Roles = []string{}
	}

	if details.UserName != "" {
		out.UserName = ptr.To(details.UserName)
	}

	if details.ProjectName != "" {
		out.ProjectName = ptr.To(details.ProjectName)
	}

	if !details.ExpiresAt.IsZero() {
		out.ExpiresAt = ptr.To(details.ExpiresAt)
	}

	return out
}

func (h *Handler) PostApiV1Sessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := authorization.TokenFromContext(ctx)
	if err != nil {
		errors.HandleError(w, r, err)
		return
	}

	s, err := h.sessions.Create(ctx, token)
	if err != nil {
		if consoleerrors.IsKind(err, consoleerrors.KindNotPermitted) {
			err = errors.OAuth2AccessDenied(consoleerrors.Classify(err).Message).WithError(err)
		}

		errors.HandleError(w, r, err)

		return
	}

	h.setUncacheable(w)
	util.WriteJSONResponse(w, r, http.StatusCreated, convertSession(s))
}

func (h *Handler) DeleteApiV1SessionsSessionID(w http.ResponseWriter, r *http.Request, sessionID openapi.SessionIDParameter) {
	s, err := h.session(r, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.sessions.Delete(s.ID()); err != nil {
		handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetApiV1Pages(w http.ResponseWriter, r *http.Request) {
	h.setCacheable(w)
	util.WriteJSONResponse(w, r, http.StatusOK, resources.Describe())
}

// listQuery is the common set of list page parameters.
type listQuery struct {
	pageIndex *int
	pageSize  *int
	sortKey   *string
	sortDir   *openapi.SortDirParameter
	filter    *[]string
	refresh   bool
}

// listResponse is the list state with the actions each row allows.
type listResponse struct {
	list.State

	RowActions map[string][]string `json:"rowActions"`
}

// parseFilters applies name:value pairs to the current filters, an empty
// value clears the filter.
func parseFilters(config *resource.Config, current map[string]string, filter []string) (map[string]string, error) {
	filters := maps.Clone(current)

	if filters == nil {
		filters = map[string]string{}
	}

	for _, f := range filter {
		name, value, ok := strings.Cut(f, ":")
		if !ok {
			return nil, errors.OAuth2InvalidRequest("filter must be of the form name:value")
		}

		if _, ok := config.Filter(name); !ok {
			return nil, errors.OAuth2InvalidRequest("unknown filter " + name)
		}

		if value == "" {
			delete(filters, name)
			continue
		}

		filters[name] = value
	}

	return filters, nil
}

// parseSort applies a new sort key and direction.  Changing the key without
// giving a direction sorts ascending.
func parseSort(config *resource.Config, current resource.Sort, key *string, dir *openapi.SortDirParameter) (resource.Sort, error) {
	sort := current

	if key != nil && *key != current.Key {
		column, ok := config.Column(*key)
		if !ok || !column.Sortable {
			return resource.Sort{}, errors.OAuth2InvalidRequest("column " + *key + " is not sortable")
		}

		sort.Key = *key
		sort.Direction = resource.Ascending
	}

	if dir != nil {
		direction, err := resource.ParseDirection(string(*dir))
		if err != nil {
			return resource.Sort{}, errors.OAuth2InvalidRequest(err.Error())
		}

		sort.Direction = direction
	}

	return sort, nil
}

// list applies any changes to the controller.  Where the backend needs to
// be consulted this is done with a single fetch, otherwise the change is
// applied locally to the data already held.
func (h *Handler) list(ctx context.Context, controller *list.Controller, q *listQuery) (list.State, error) {
	config := controller.Config()
	current := controller.State()

	filters := current.Filters

	if q.filter != nil {
		f, err := parseFilters(config, current.Filters, *q.filter)
		if err != nil {
			return list.State{}, err
		}

		filters = f
	}

	sort, err := parseSort(config, current.Sort, q.sortKey, q.sortDir)
	if err != nil {
		return list.State{}, err
	}

	filtersChanged := !maps.Equal(filters, current.Filters)
	sortChanged := sort != current.Sort

	// A backend filter starts again at page 1, locally the page is kept
	// while the filtered rows still reach it.
	pageIndex := current.PageIndex
	if q.pageIndex != nil {
		pageIndex = *q.pageIndex
	} else if filtersChanged && config.FilterByBackend {
		pageIndex = 1
	}

	pageSize := current.PageSize
	if q.pageSize != nil {
		pageSize = *q.pageSize
	}

	pageChanged := pageIndex != current.PageIndex || pageSize != current.PageSize

	fetch := q.refresh || !controller.Loaded() ||
		(filtersChanged && config.FilterByBackend) ||
		(sortChanged && config.SortByBackend) ||
		(pageChanged && controller.Delegated())

	if fetch {
		return controller.Fetch(ctx, list.WithFilters(filters), list.WithSort(sort), list.WithPage(pageIndex), list.WithPageSize(pageSize)), nil
	}

	state := current

	if filtersChanged {
		state = controller.SetFilters(ctx, filters)
	}

	if sortChanged {
		state = controller.SetSort(ctx, sort)
	}

	if pageChanged {
		state = controller.SetPage(ctx, pageIndex, pageSize)
	}

	return state, nil
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, view *session.View, q *listQuery) {
	state, err := h.list(r.Context(), view.Controller, q)
	if err != nil {
		handleError(w, r, err)
		return
	}

	rowKey := view.Controller.Config().RowKey

	response := &listResponse{
		State:      state,
		RowActions: map[string][]string{},
	}

	for _, row := range state.Items {
		response.RowActions[row.Key(rowKey)] = view.Pipeline.Available([]resource.Row{row})
	}

	h.setUncacheable(w)
	util.WriteJSONResponse(w, r, http.StatusOK, response)
}

func (h *Handler) GetApiV1SessionsSessionIDPagesPage(w http.ResponseWriter, r *http.Request, sessionID openapi.SessionIDParameter, page openapi.PageParameter, params openapi.GetApiV1SessionsSessionIDPagesPageParams) {
	s, err := h.session(r, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	view, err := s.Page(page, ptr.Deref(params.Admin, false))
	if err != nil {
		handleError(w, r, err)
		return
	}

	q := &listQuery{
		pageIndex: params.PageIndex,
		pageSize:  params.PageSize,
		sortKey:   params.SortKey,
		sortDir:   params.SortDir,
		filter:    params.Filter,
		refresh:   ptr.Deref(params.Refresh, false),
	}

	h.writeList(w, r, view, q)
}

// resolveRows maps row keys to the rows currently held by the list, an
// action may only target what the user can see.
func resolveRows(ctx context.Context, view *session.View, ids []string) ([]resource.Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	if !view.Controller.Loaded() {
		view.Controller.Fetch(ctx)
	}

	rowKey := view.Controller.Config().RowKey

	held := map[string]resource.Row{}

	for _, row := range view.Controller.State().Items {
		held[row.Key(rowKey)] = row
	}

	rows := make([]resource.Row, 0, len(ids))

	for _, id := range ids {
		row, ok := held[id]
		if !ok {
			return nil, consoleerrors.Invalid("%s %s is not on the current page", view.Name, id)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func (h *Handler) PostApiV1SessionsSessionIDPagesPageActionsAction(w http.ResponseWriter, r *http.Request, sessionID openapi.SessionIDParameter, page openapi.PageParameter, actionID openapi.ActionParameter, params openapi.PostApiV1SessionsSessionIDPagesPageActionsActionParams) {
	ctx := r.Context()

	s, err := h.session(r, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	view, err := s.Page(page, ptr.Deref(params.Admin, false))
	if err != nil {
		handleError(w, r, err)
		return
	}

	var request openapi.ActionInvocation

	if err := util.ReadJSONBody(r, &request); err != nil && !goerrors.Is(err, io.EOF) {
		errors.HandleError(w, r, err)
		return
	}

	rows, err := resolveRows(ctx, view, ptr.Deref(request.Ids, nil))
	if err != nil {
		handleError(w, r, err)
		return
	}

	var options []action.InvokeOption

	if request.Confirm != nil {
		options = append(options, action.Confirmed(*request.Confirm))
	}

	if request.Values != nil {
		options = append(options, action.WithValues(*request.Values))
	}

	outcome, err := view.Pipeline.Invoke(ctx, actionID, rows, options...)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.setUncacheable(w)
	util.WriteJSONResponse(w, r, http.StatusOK, outcome)
}

func (h *Handler) GetApiV1SessionsSessionIDServersServerIDFloatingips(w http.ResponseWriter, r *http.Request, sessionID openapi.SessionIDParameter, serverID openapi.ServerIDParameter, params openapi.GetApiV1SessionsSessionIDServersServerIDFloatingipsParams) {
	s, err := h.session(r, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	view, err := s.ServerFloatingIPs(serverID, ptr.Deref(params.Admin, false))
	if err != nil {
		handleError(w, r, err)
		return
	}

	q := &listQuery{
		pageIndex: params.PageIndex,
		pageSize:  params.PageSize,
		sortKey:   params.SortKey,
		sortDir:   params.SortDir,
		filter:    params.Filter,
		refresh:   ptr.Deref(params.Refresh, false),
	}

	h.writeList(w, r, view, q)
}

func (h *Handler) GetApiV1SessionsSessionIDSnapshotsSnapshotID(w http.ResponseWriter, r *http.Request, sessionID openapi.SessionIDParameter, snapshotID openapi.SnapshotIDParameter) {
	s, err := h.session(r, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	result, err := s.SnapshotDetail(r.Context(), snapshotID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.setUncacheable(w)
	util.WriteJSONResponse(w, r, http.StatusOK, result)
}
