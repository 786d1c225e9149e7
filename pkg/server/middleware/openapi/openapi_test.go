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
package openapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unikorn-cloud/console/pkg/constants"
	api "github.com/unikorn-cloud/console/pkg/openapi"
	"github.com/unikorn-cloud/console/pkg/server/authorization"
)

func validator(t *testing.T) (http.Handler, *string) {
	t.Helper()

	schema, err := NewSchema(api.GetSwagger)
	require.NoError(t, err)

	var seen string

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = authorization.TokenFromContext(r.Context())

		w.WriteHeader(http.StatusNoContent)
	})

	return Middleware(NewAuthorizer(), schema)(next), &seen
}

func serve(handler http.Handler, method, path, token string) int {
	r := httptest.NewRequest(method, path, nil)

	if token != "" {
		r.Header.Set(constants.SessionHeader, token)
	}

	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	return w.Code
}

func TestValidatorAuthorization(t *testing.T) {
	t.Parallel()

	handler, seen := validator(t)

	require.Equal(t, http.StatusUnauthorized, serve(handler, http.MethodDelete, "/api/v1/sessions/s1", ""))
	require.Empty(t, *seen)

	require.Equal(t, http.StatusNoContent, serve(handler, http.MethodDelete, "/api/v1/sessions/s1", "token"))
	require.Equal(t, "token", *seen)
}

func TestValidatorRouting(t *testing.T) {
	t.Parallel()

	handler, _ := validator(t)

	require.Equal(t, http.StatusNoContent, serve(handler, http.MethodGet, "/api/v1/pages", ""))
	require.Equal(t, http.StatusNotFound, serve(handler, http.MethodGet, "/api/v1/nope", ""))
	require.Equal(t, http.StatusMethodNotAllowed, serve(handler, http.MethodPut, "/api/v1/pages", ""))
}

func TestValidatorParameters(t *testing.T) {
	t.Parallel()

	handler, _ := validator(t)

	require.Equal(t, http.StatusNoContent, serve(handler, http.MethodGet, "/api/v1/sessions/s1/pages/networks?sort_dir=desc&filter=name:a", "token"))
	require.Equal(t, http.StatusBadRequest, serve(handler, http.MethodGet, "/api/v1/sessions/s1/pages/networks?sort_dir=sideways", "token"))
}
