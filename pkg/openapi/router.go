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

package openapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/deepmap/oapi-codegen/pkg/runtime"
	"github.com/go-chi/chi/v5"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {

	// (POST /api/v1/sessions)
	PostApiV1Sessions(w http.ResponseWriter, r *http.Request)

	// (DELETE /api/v1/sessions/{sessionID})
	DeleteApiV1SessionsSessionID(w http.ResponseWriter, r *http.Request, sessionID SessionIDParameter)

	// (GET /api/v1/pages)
	GetApiV1Pages(w http.ResponseWriter, r *http.Request)

	// (GET /api/v1/sessions/{sessionID}/pages/{page})
	GetApiV1SessionsSessionIDPagesPage(w http.ResponseWriter, r *http.Request, sessionID SessionIDParameter, page PageParameter, params GetApiV1SessionsSessionIDPagesPageParams)

	// (POST /api/v1/sessions/{sessionID}/pages/{page}/actions/{action})
	PostApiV1SessionsSessionIDPagesPageActionsAction(w http.ResponseWriter, r *http.Request, sessionID SessionIDParameter, page PageParameter, action ActionParameter, params PostApiV1SessionsSessionIDPagesPageActionsActionParams)

	// (GET /api/v1/sessions/{sessionID}/servers/{serverID}/floatingips)
	GetApiV1SessionsSessionIDServersServerIDFloatingips(w http.ResponseWriter, r *http.Request, sessionID SessionIDParameter, serverID ServerIDParameter, params GetApiV1SessionsSessionIDServersServerIDFloatingipsParams)

	// (GET /api/v1/sessions/{sessionID}/snapshots/{snapshotID})
	GetApiV1SessionsSessionIDSnapshotsSnapshotID(w http.ResponseWriter, r *http.Request, sessionID SessionIDParameter, snapshotID SnapshotIDParameter)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// InvalidParamFormatError is raised when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

func (siw *ServerInterfaceWrapper) serve(ctx context.Context, w http.ResponseWriter, r *http.Request, f http.HandlerFunc) {
	handler := http.Handler(f)

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r.WithContext(ctx))
}

func (siw *ServerInterfaceWrapper) pathParameter(w http.ResponseWriter, r *http.Request, name string, dest *string) bool {
	if err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}

	return true
}

func (siw *ServerInterfaceWrapper) queryParameter(w http.ResponseWriter, r *http.Request, name string, dest interface{}) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}

	return true
}

// PostApiV1Sessions operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1Sessions(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithValue(r.Context(), KeystoneTokenScopes, []string{})

	siw.serve(ctx, w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.PostApiV1Sessions(w, r)
	})
}

// DeleteApiV1SessionsSessionID operation middleware
func (siw *ServerInterfaceWrapper) DeleteApiV1SessionsSessionID(w http.ResponseWriter, r *http.Request) {
	var sessionID SessionIDParameter

	if !siw.pathParameter(w, r, "sessionID", &sessionID) {
		return
	}

	ctx := context.WithValue(r.Context(), KeystoneTokenScopes, []string{})

	siw.serve(ctx, w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteApiV1SessionsSessionID(w, r, sessionID)
	})
}

// GetApiV1Pages operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1Pages(w http.ResponseWriter, r *http.Request) {
	siw.serve(r.Context(), w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetApiV1Pages(w, r)
	})
}

// GetApiV1SessionsSessionIDPagesPage operation middleware
//
//nolint:cyclop
func (siw *ServerInterfaceWrapper) GetApiV1SessionsSessionIDPagesPage(w http.ResponseWriter, r *http.Request) {
	var sessionID SessionIDParameter

	var page PageParameter

	if !siw.pathParameter(w, r, "sessionID", &sessionID) || !siw.pathParameter(w, r, "page", &page) {
		return
	}

	ctx := context.WithValue(r.Context(), KeystoneTokenScopes, []string{})

	var params GetApiV1SessionsSessionIDPagesPageParams

	if !siw.queryParameter(w, r, "page_index", &params.PageIndex) ||
		!siw.queryParameter(w, r, "page_size", &params.PageSize) ||
		!siw.queryParameter(w, r, "sort_key", &params.SortKey) ||
		!siw.queryParameter(w, r, "sort_dir", &params.SortDir) ||
		!siw.queryParameter(w, r, "filter", &params.Filter) ||
		!siw.queryParameter(w, r, "refresh", &params.Refresh) ||
		!siw.queryParameter(w, r, "admin", &params.Admin) {
		return
	}

	siw.serve(ctx, w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetApiV1SessionsSessionIDPagesPage(w, r, sessionID, page, params)
	})
}

// PostApiV1SessionsSessionIDPagesPageActionsAction operation middleware
func (siw *ServerInterfaceWrapper) PostApiV1SessionsSessionIDPagesPageActionsAction(w http.ResponseWriter, r *http.Request) {
	var sessionID SessionIDParameter

	var page PageParameter

	var action ActionParameter

	if !siw.pathParameter(w, r, "sessionID", &sessionID) || !siw.pathParameter(w, r, "page", &page) || !siw.pathParameter(w, r, "action", &action) {
		return
	}

	ctx := context.WithValue(r.Context(), KeystoneTokenScopes, []string{})

	var params PostApiV1SessionsSessionIDPagesPageActionsActionParams

	if !siw.queryParameter(w, r, "admin", &params.Admin) {
		return
	}

	siw.serve(ctx, w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.PostApiV1SessionsSessionIDPagesPageActionsAction(w, r, sessionID, page, action, params)
	})
}

// GetApiV1SessionsSessionIDServersServerIDFloatingips operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1SessionsSessionIDServersServerIDFloatingips(w http.ResponseWriter, r *http.Request) {
	var sessionID SessionIDParameter

	var serverID ServerIDParameter

	if !siw.pathParameter(w, r, "sessionID", &sessionID) || !siw.pathParameter(w, r, "serverID", &serverID) {
		return
	}

	ctx := context.WithValue(r.Context(), KeystoneTokenScopes, []string{})

	var params GetApiV1SessionsSessionIDServersServerIDFloatingipsParams

	if !siw.queryParameter(w, r, "page_index", &params.PageIndex) ||
		!siw.queryParameter(w, r, "page_size", &params.PageSize) ||
		!siw.queryParameter(w, r, "sort_key", &params.SortKey) ||
		!siw.queryParameter(w, r, "sort_dir", &params.SortDir) ||
		!siw.queryParameter(w, r, "filter", &params.Filter) ||
		!siw.queryParameter(w, r, "refresh", &params.Refresh) ||
		!siw.queryParameter(w, r, "admin", &params.Admin) {
		return
	}

	siw.serve(ctx, w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetApiV1SessionsSessionIDServersServerIDFloatingips(w, r, sessionID, serverID, params)
	})
}

// GetApiV1SessionsSessionIDSnapshotsSnapshotID operation middleware
func (siw *ServerInterfaceWrapper) GetApiV1SessionsSessionIDSnapshotsSnapshotID(w http.ResponseWriter, r *http.Request) {
	var sessionID SessionIDParameter

	var snapshotID SnapshotIDParameter

	if !siw.pathParameter(w, r, "sessionID", &sessionID) || !siw.pathParameter(w, r, "snapshotID", &snapshotID) {
		return
	}

	ctx := context.WithValue(r.Context(), KeystoneTokenScopes, []string{})

	siw.serve(ctx, w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetApiV1SessionsSessionIDSnapshotsSnapshotID(w, r, sessionID, snapshotID)
	})
}

// ChiServerOptions configures the router.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching OpenAPI spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/v1/sessions", wrapper.PostApiV1Sessions)
		r.Delete(options.BaseURL+"/api/v1/sessions/{sessionID}", wrapper.DeleteApiV1SessionsSessionID)
		r.Get(options.BaseURL+"/api/v1/pages", wrapper.GetApiV1Pages)
		r.Get(options.BaseURL+"/api/v1/sessions/{sessionID}/pages/{page}", wrapper.GetApiV1SessionsSessionIDPagesPage)
		r.Post(options.BaseURL+"/api/v1/sessions/{sessionID}/pages/{page}/actions/{action}", wrapper.PostApiV1SessionsSessionIDPagesPageActionsAction)
		r.Get(options.BaseURL+"/api/v1/sessions/{sessionID}/servers/{serverID}/floatingips", wrapper.GetApiV1SessionsSessionIDServersServerIDFloatingips)
		r.Get(options.BaseURL+"/api/v1/sessions/{sessionID}/snapshots/{snapshotID}", wrapper.GetApiV1SessionsSessionIDSnapshotsSnapshotID)
	})

	return r
}
