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
package errors

import (
	"net/http"
	"testing"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/stretchr/testify/require"

	consoleerrors "github.com/unikorn-cloud/console/pkg/errors"
)

func TestFromConsoleErrorBackendStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		actual int
		status int
		kind   ErrorType
	}{
		{actual: http.StatusBadRequest, status: http.StatusBadRequest, kind: InvalidRequest},
		{actual: http.StatusUnauthorized, status: http.StatusUnauthorized, kind: AccessDenied},
		{actual: http.StatusForbidden, status: http.StatusForbidden, kind: InvalidScope},
		{actual: http.StatusNotFound, status: http.StatusNotFound, kind: NotFound},
		{actual: http.StatusConflict, status: http.StatusConflict, kind: Conflict},
		{actual: http.StatusServiceUnavailable, status: http.StatusBadGateway, kind: BadGateway},
	}

	for _, test := range tests {
		err := gophercloud.ErrUnexpectedResponseCode{
			Actual: test.actual,
		}

		e := FromConsoleError(err)
		require.Equal(t, test.status, e.status, test.actual)
		require.Equal(t, test.kind, e.code, test.actual)
		require.Equal(t, consoleerrors.KindBackendRejected, e.detail.Kind, test.actual)
	}
}

func TestFromConsoleErrorNotPermitted(t *testing.T) {
	t.Parallel()

	e := FromConsoleError(consoleerrors.NotPermitted("policy denied"))
	require.Equal(t, http.StatusForbidden, e.status)
	require.Equal(t, consoleerrors.KindNotPermitted, e.detail.Kind)
}
