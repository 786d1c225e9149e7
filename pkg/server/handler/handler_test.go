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
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/unikorn-cloud/console/pkg/action"
	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/openapi"
	"github.com/unikorn-cloud/console/pkg/policy"
	"github.com/unikorn-cloud/console/pkg/providers/openstack"
	"github.com/unikorn-cloud/console/pkg/resource"
	"github.com/unikorn-cloud/console/pkg/resources"
	"github.com/unikorn-cloud/console/pkg/server/authorization"
	"github.com/unikorn-cloud/console/pkg/session"
)

type fakeNetwork struct {
	resources.NetworkAPI

	queries []url.Values
	deleted []string
}

func (n *fakeNetwork) ListNetworks(_ context.Context, query url.Values) ([]resource.Row, error) {
	n.queries = append(n.queries, query)

	rows := []resource.Row{
		{"id": "n1", "name": "a", "project_id": "p1", "status": "ACTIVE"},
		{"id": "n2", "name": "b", "project_id": "p2", "status": "ACTIVE"},
		{"id": "n3", "name": "c", "project_id": "p1", "status": "DOWN"},
	}

	return rows, nil
}

func (n *fakeNetwork) DeleteNetwork(_ context.Context, id string) error {
	n.deleted = append(n.deleted, id)

	return nil
}

// fakeDatabase serves backups, a page filtered and sorted locally.
type fakeDatabase struct {
	resources.DatabaseAPI

	calls int
}

func (d *fakeDatabase) ListBackups(context.Context, url.Values) ([]resource.Row, error) {
	d.calls++

	rows := make([]resource.Row, 15)

	for i := range rows {
		status := "COMPLETED"
		if i%3 == 0 {
			status = "FAILED"
		}

		rows[i] = resource.Row{
			"id":      fmt.Sprintf("b%02d", i),
			"name":    fmt.Sprintf("backup-%02d", i),
			"status":  status,
			"created": fmt.Sprintf("2024-01-%02dT00:00:00", i+1),
		}
	}

	return rows, nil
}

type fakeServices struct {
	resources.Services

	network  *fakeNetwork
	database *fakeDatabase
}

func (s *fakeServices) Network(context.Context) (resources.NetworkAPI, error) {
	return s.network, nil
}

func (s *fakeServices) Database(context.Context) (resources.DatabaseAPI, error) {
	return s.database, nil
}

type fakeAuthenticator struct {
	network  *fakeNetwork
	database *fakeDatabase
}

func (a *fakeAuthenticator) Authenticate(_ context.Context, token string) (*session.Principal, error) {
	if token == "bad" {
		return nil, errors.NotPermitted("token is invalid or has expired")
	}

	principal := &session.Principal{
		Details: &openstack.TokenDetails{
			UserID:      "u1",
			UserName:    "alice",
			ProjectID:   "p1",
			ProjectName: "demo",
			Roles:       []string{"member"},
			ExpiresAt:   time.Now().Add(time.Hour),
		},
		Services: &fakeServices{network: a.network, database: a.database},
	}

	return principal, nil
}

// withToken stands in for the schema validation middleware.
func withToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := r.Header.Get(constants.SessionHeader); token != "" {
			r = r.WithContext(authorization.NewContextWithToken(r.Context(), token))
		}

		next.ServeHTTP(w, r)
	})
}

func fixture(t *testing.T) (http.Handler, *fakeNetwork) {
	t.Helper()

	handler, network, _ := fixtureWithDatabase(t)

	return handler, network
}

func fixtureWithDatabase(t *testing.T) (http.Handler, *fakeNetwork, *fakeDatabase) {
	t.Helper()

	engine, err := policy.Load(&policy.Options{})
	require.NoError(t, err)

	network := &fakeNetwork{}
	database := &fakeDatabase{}

	sessionOptions := &session.Options{
		MaxSessions: 4,
		IdleTimeout: time.Minute,
		AdminRole:   "admin",
	}

	manager, err := session.NewManager(sessionOptions, engine, &fakeAuthenticator{network: network, database: database}, resources.CloudOptions{})
	require.NoError(t, err)

	t.Cleanup(manager.Close)

	h, err := New(manager, &Options{CacheMaxAge: time.Hour})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.NotFound(NotFound)

	options := openapi.ChiServerOptions{
		BaseRouter:       router,
		ErrorHandlerFunc: HandleError,
		Middlewares:      []openapi.MiddlewareFunc{withToken},
	}

	return openapi.HandlerWithOptions(h, options), network, database
}

func do(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buffer bytes.Buffer

	if body != nil {
		require.NoError(t, json.NewEncoder(&buffer).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buffer)

	if token != "" {
		r.Header.Set(constants.SessionHeader, token)
	}

	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	return w
}

func createSession(t *testing.T, handler http.Handler, token string) string {
	t.Helper()

	w := do(t, handler, http.MethodPost, "/api/v1/sessions", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var result openapi.Session

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	return result.Id
}

type listResult struct {
	Items      []resource.Row      `json:"items"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	Sort       resource.Sort       `json:"sort"`
	Filters    map[string]string   `json:"filters"`
	RowActions map[string][]string `json:"rowActions"`
}

func getList(t *testing.T, handler http.Handler, path, token string) *listResult {
	t.Helper()

	w := do(t, handler, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result listResult

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	return &result
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	handler, _ := fixture(t)

	require.Equal(t, http.StatusUnauthorized, do(t, handler, http.MethodPost, "/api/v1/sessions", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, do(t, handler, http.MethodPost, "/api/v1/sessions", "bad", nil).Code)

	w := do(t, handler, http.MethodPost, "/api/v1/sessions", "good", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var result openapi.Session

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(t, result.Id)
	require.Equal(t, "u1", result.UserID)
	require.Equal(t, "p1", result.ProjectID)
	require.Equal(t, []string{"member"}, result.Roles)
	require.False(t, result.Admin)
	require.NotNil(t, result.ExpiresAt)

	// Another user's token cannot see or remove the session.
	require.Equal(t, http.StatusNotFound, do(t, handler, http.MethodDelete, "/api/v1/sessions/"+result.Id, "other", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, handler, http.MethodGet, "/api/v1/sessions/"+result.Id+"/pages/networks", "other", nil).Code)

	require.Equal(t, http.StatusNoContent, do(t, handler, http.MethodDelete, "/api/v1/sessions/"+result.Id, "good", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, handler, http.MethodGet, "/api/v1/sessions/"+result.Id+"/pages/networks", "good", nil).Code)
}

func TestPages(t *testing.T) {
	t.Parallel()

	handler, _ := fixture(t)

	w := do(t, handler, http.MethodGet, "/api/v1/pages", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Values("Cache-Control"), "max-age=3600")

	var pages []resources.Descriptor

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pages))

	names := make([]string, len(pages))

	for i := range pages {
		names[i] = pages[i].Name
	}

	require.Contains(t, names, "networks")
	require.Contains(t, names, "volumes")
}

func TestListPage(t *testing.T) {
	t.Parallel()

	handler, network := fixture(t)

	id := createSession(t, handler, "good")
	path := "/api/v1/sessions/" + id + "/pages/networks"

	result := getList(t, handler, path, "good")
	require.Len(t, result.Items, 3)
	require.Equal(t, 3, result.Total)
	require.Equal(t, resource.Sort{Key: "name", Direction: resource.Ascending}, result.Sort)
	require.Equal(t, []string{"create", "delete"}, result.RowActions["n1"])
	require.Equal(t, []string{"create"}, result.RowActions["n2"])
	require.Len(t, network.queries, 1)
	require.Equal(t, "name", network.queries[0].Get("sort_key"))

	// Nothing changed, nothing fetched.
	getList(t, handler, path, "good")
	require.Len(t, network.queries, 1)

	result = getList(t, handler, path+"?filter=status:ACTIVE&sort_key=status&sort_dir=desc", "good")
	require.Equal(t, map[string]string{"status": "ACTIVE"}, result.Filters)
	require.Equal(t, resource.Sort{Key: "status", Direction: resource.Descending}, result.Sort)
	require.Len(t, network.queries, 2)
	require.Equal(t, "ACTIVE", network.queries[1].Get("status"))
	require.Equal(t, "desc", network.queries[1].Get("sort_dir"))

	// An empty value clears the filter.
	result = getList(t, handler, path+"?filter=status:", "good")
	require.Empty(t, result.Filters)
	require.Len(t, network.queries, 3)

	getList(t, handler, path+"?refresh=true", "good")
	require.Len(t, network.queries, 4)
}

func TestListPageLocalFilterKeepsPage(t *testing.T) {
	t.Parallel()

	handler, _, database := fixtureWithDatabase(t)

	id := createSession(t, handler, "good")
	path := "/api/v1/sessions/" + id + "/pages/backups"

	result := getList(t, handler, path+"?page_index=2", "good")
	require.Equal(t, 2, result.Page)
	require.Equal(t, 15, result.Total)
	require.Len(t, result.Items, 5)

	// Every row still matches, so page 2 is still there.
	result = getList(t, handler, path+"?filter=name:backup-", "good")
	require.Equal(t, 2, result.Page)
	require.Equal(t, 15, result.Total)
	require.Len(t, result.Items, 5)

	// 10 completed backups fit on a single page.
	result = getList(t, handler, path+"?filter=status:COMPLETED", "good")
	require.Equal(t, 1, result.Page)
	require.Equal(t, 10, result.Total)

	require.Equal(t, 1, database.calls, "local filters must not hit the backend")
}

func TestListPageInvalid(t *testing.T) {
	t.Parallel()

	handler, _ := fixture(t)

	id := createSession(t, handler, "good")
	path := "/api/v1/sessions/" + id + "/pages/"

	require.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodGet, path+"networks?filter=nope:x", "good", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodGet, path+"networks?filter=status", "good", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodGet, path+"networks?sort_key=subnets", "good", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodGet, path+"networks?sort_dir=sideways", "good", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodGet, path+"networks?page_index=one", "good", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, handler, http.MethodGet, path+"nope", "good", nil).Code)
	require.Equal(t, http.StatusForbidden, do(t, handler, http.MethodGet, path+"networks?admin=true", "good", nil).Code)
	require.Equal(t, http.StatusForbidden, do(t, handler, http.MethodGet, path+"baremetal", "good", nil).Code)
	require.Equal(t, http.StatusForbidden, do(t, handler, http.MethodGet, "/api/v1/sessions/"+id+"/servers/s1/floatingips?admin=true", "good", nil).Code)
}

func TestAction(t *testing.T) {
	t.Parallel()

	handler, network := fixture(t)

	id := createSession(t, handler, "good")
	path := "/api/v1/sessions/" + id + "/pages/networks/actions/"

	invoke := func(actionID string, request *openapi.ActionInvocation) *action.Outcome {
		t.Helper()

		w := do(t, handler, http.MethodPost, path+actionID, "good", request)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var outcome action.Outcome

		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))

		return &outcome
	}

	ids := []string{"n1", "n2"}

	outcome := invoke("delete", &openapi.ActionInvocation{Ids: &ids})
	require.Equal(t, action.Cancelled, outcome.State)
	require.Empty(t, network.deleted)

	confirm := true

	outcome = invoke("delete", &openapi.ActionInvocation{Ids: &ids, Confirm: &confirm})
	require.Equal(t, action.Failed, outcome.State)
	require.Equal(t, 1, outcome.Succeeded)
	require.Equal(t, 1, outcome.Failed)
	require.Equal(t, []string{"n1"}, network.deleted)

	missing := []string{"n9"}

	require.Equal(t, http.StatusBadRequest, do(t, handler, http.MethodPost, path+"delete", "good", &openapi.ActionInvocation{Ids: &missing}).Code)
	require.Equal(t, http.StatusNotFound, do(t, handler, http.MethodPost, path+"explode", "good", nil).Code)
}
