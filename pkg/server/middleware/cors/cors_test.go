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
package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unikorn-cloud/console/pkg/constants"
	api "github.com/unikorn-cloud/console/pkg/openapi"
	"github.com/unikorn-cloud/console/pkg/server/middleware/openapi"
)

func middleware(t *testing.T, origins ...string) http.Handler {
	t.Helper()

	schema, err := openapi.NewSchema(api.GetSwagger)
	require.NoError(t, err)

	options := &Options{
		AllowedOrigins: origins,
		MaxAge:         600,
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return Middleware(schema, options)(next)
}

func preflight(handler http.Handler, origin, method, path string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodOptions, path, nil)
	r.Header.Set("Origin", origin)

	if method != "" {
		r.Header.Set("Access-Control-Request-Method", method)
	}

	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	return w
}

func TestPreflightWildcard(t *testing.T) {
	t.Parallel()

	handler := middleware(t, "*")

	w := preflight(handler, "https://console.example.com", http.MethodDelete, "/api/v1/sessions/s1")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	require.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), constants.SessionHeader)
	require.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	require.Empty(t, w.Header().Values("Vary"))
}

func TestPreflightOriginList(t *testing.T) {
	t.Parallel()

	handler := middleware(t, "https://console.example.com")

	w := preflight(handler, "https://console.example.com", http.MethodPost, "/api/v1/sessions")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://console.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "OPTIONS, POST", w.Header().Get("Access-Control-Allow-Methods"))
	require.Equal(t, "Origin", w.Header().Get("Vary"))

	w = preflight(handler, "https://evil.example.com", http.MethodPost, "/api/v1/sessions")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestPreflightInvalid(t *testing.T) {
	t.Parallel()

	handler := middleware(t, "*")

	require.Equal(t, http.StatusBadRequest, preflight(handler, "https://a", "", "/api/v1/sessions").Code)
	require.Equal(t, http.StatusNotFound, preflight(handler, "https://a", http.MethodGet, "/api/v1/nowhere").Code)
	require.Equal(t, http.StatusMethodNotAllowed, preflight(handler, "https://a", http.MethodPut, "/api/v1/sessions").Code)
}

func TestSimpleRequestPassesThrough(t *testing.T) {
	t.Parallel()

	handler := middleware(t, "https://console.example.com")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/pages", nil)
	r.Header.Set("Origin", "https://console.example.com")

	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "https://console.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
