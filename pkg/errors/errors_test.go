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
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/stretchr/testify/require"
)

func responseError(t *testing.T, code int, body string) error {
	t.Helper()

	return gophercloud.ErrUnexpectedResponseCode{
		URL:      "https://neutron.example.com/v2.0/networks",
		Method:   http.MethodPost,
		Expected: []int{http.StatusCreated},
		Actual:   code,
		Body:     []byte(body),
	}
}

func TestClassifyNeutronError(t *testing.T) {
	t.Parallel()

	err := responseError(t, http.StatusConflict, `{"NeutronError": {"type": "IpAddressGenerationFailure", "message": "No more IP addresses available", "detail": ""}}`)

	classified := Classify(fmt.Errorf("create failed: %w", err))
	require.Equal(t, KindBackendRejected, classified.Kind)
	require.Equal(t, "IpAddressGenerationFailure", classified.Type)
	require.Equal(t, "No more IP addresses available", classified.Message)
	require.Equal(t, http.StatusConflict, classified.StatusCode)
}

func TestClassifyNovaStyleError(t *testing.T) {
	t.Parallel()

	err := responseError(t, http.StatusBadRequest, `{"badRequest": {"message": "Invalid volume", "code": 400}}`)

	classified := Classify(err)
	require.Equal(t, KindBackendRejected, classified.Kind)
	require.Equal(t, "badRequest", classified.Type)
	require.Equal(t, "Invalid volume", classified.Message)
}

func TestClassifyIronicError(t *testing.T) {
	t.Parallel()

	err := responseError(t, http.StatusConflict, `{"error_message": "{\"faultstring\": \"Node is locked\", \"debuginfo\": null}"}`)

	classified := Classify(err)
	require.Equal(t, KindBackendRejected, classified.Kind)
	require.Equal(t, "Node is locked", classified.Message)
}

func TestClassifyPermission(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindNotPermitted, Classify(NotPermitted("policy")).Kind)
	require.Equal(t, KindNotPermitted, Classify(fmt.Errorf("%w: rule", ErrNotPermitted)).Kind)
}

func TestClassifyBackendDenied(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		err := responseError(t, code, "")

		classified := Classify(err)
		require.Equal(t, KindBackendRejected, classified.Kind)
		require.Equal(t, code, classified.StatusCode)
		require.Equal(t, http.StatusText(code), classified.Message)
		require.True(t, IsStatus(err, code))
		require.False(t, IsKind(err, KindNotPermitted))
	}

	require.False(t, IsStatus(NotPermitted("policy"), http.StatusForbidden))
	require.False(t, IsStatus(nil, http.StatusNotFound))
}

func TestClassifyNetwork(t *testing.T) {
	t.Parallel()

	err := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	require.Equal(t, KindNetworkError, Classify(err).Kind)
	require.Equal(t, KindNetworkError, Classify(context.DeadlineExceeded).Kind)
}

func TestClassifyInternal(t *testing.T) {
	t.Parallel()

	require.Nil(t, Classify(nil))
	require.Equal(t, KindInternal, Classify(errors.New("boom")).Kind)
}

func TestWithStep(t *testing.T) {
	t.Parallel()

	base := responseError(t, http.StatusBadRequest, `{"NeutronError": {"type": "InvalidInput", "message": "Invalid CIDR"}}`)

	err := WithStep("create_subnet", base)

	info := NewInfo(err)
	require.Equal(t, KindBackendRejected, info.Kind)
	require.Equal(t, "create_subnet", info.Step)
	require.Equal(t, "InvalidInput", info.Type)
	require.Equal(t, "Invalid CIDR", info.Message)
	require.NotEmpty(t, info.Raw)

	require.NoError(t, WithStep("create_subnet", nil))
}

func TestNewInfoNil(t *testing.T) {
	t.Parallel()

	require.Nil(t, NewInfo(nil))
}
