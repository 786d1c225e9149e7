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
package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/stretchr/testify/require"

	"github.com/unikorn-cloud/console/pkg/errors"

	"k8s.io/utils/ptr"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	require.NoError(t, json.NewEncoder(w).Encode(body))
}

// mustServiceClient returns a service client talking to a test server
// mounted under the given path.
func mustServiceClient(t *testing.T, server *httptest.Server, base string) *gophercloud.ServiceClient {
	t.Helper()

	return &gophercloud.ServiceClient{
		ProviderClient: &gophercloud.ProviderClient{
			TokenID:    "token",
			HTTPClient: *http.DefaultClient,
		},
		Endpoint:     server.URL + "/",
		ResourceBase: server.URL + base,
	}
}

func TestListRawLinks(t *testing.T) {
	t.Parallel()

	var server *httptest.Server

	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2.0/networks", r.URL.Path)
		require.Equal(t, "token", r.Header.Get("X-Auth-Token"))
		require.Equal(t, "p1", r.URL.Query().Get("project_id"))

		if r.URL.Query().Get("marker") == "" {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"networks": []any{map[string]any{"id": "a"}},
				"networks_links": []any{
					map[string]any{"rel": "next", "href": server.URL + "/v2.0/networks?project_id=p1&marker=a"},
				},
			})

			return
		}

		writeJSON(t, w, http.StatusOK, map[string]any{
			"networks": []any{map[string]any{"id": "b"}},
		})
	}))
	defer server.Close()

	query := url.Values{}
	query.Set("project_id", "p1")

	rows, err := listRaw(context.Background(), mustServiceClient(t, server, "/v2.0/"), "networks", query, "networks")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "a", rows[0].String("id"))
	require.Equal(t, "b", rows[1].String("id"))
}

func TestListRawLimitReadsOnePage(t *testing.T) {
	t.Parallel()

	var server *httptest.Server

	requests := 0

	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		require.Equal(t, "3", r.URL.Query().Get("limit"))
		require.Equal(t, "a", r.URL.Query().Get("marker"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"networks": []any{map[string]any{"id": "b"}, map[string]any{"id": "c"}, map[string]any{"id": "d"}},
			"networks_links": []any{
				map[string]any{"rel": "next", "href": server.URL + "/v2.0/networks?limit=3&marker=d"},
			},
		})
	}))
	defer server.Close()

	query := url.Values{}
	query.Set("limit", "3")
	query.Set("marker", "a")

	rows, err := listRaw(context.Background(), mustServiceClient(t, server, "/v2.0/"), "networks", query, "networks")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, 1, requests)
}

func TestListRawRelativeNext(t *testing.T) {
	t.Parallel()

	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++

		require.Equal(t, "/image/v2/images", r.URL.Path)

		if r.URL.Query().Get("marker") == "" {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"images": []any{map[string]any{"id": "a"}},
				"next":   "/v2/images?marker=a",
			})

			return
		}

		writeJSON(t, w, http.StatusOK, map[string]any{
			"images": []any{map[string]any{"id": "b"}},
		})
	}))
	defer server.Close()

	rows, err := listRaw(context.Background(), mustServiceClient(t, server, "/image/v2/"), "images", nil, "images")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 2, calls)
}

func TestListRawSelfLink(t *testing.T) {
	t.Parallel()

	calls := 0

	var server *httptest.Server

	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++

		writeJSON(t, w, http.StatusOK, map[string]any{
			"nodes": []any{map[string]any{"uuid": "a"}},
			"next":  server.URL + "/v1/nodes/detail",
		})
	}))
	defer server.Close()

	rows, err := listRaw(context.Background(), mustServiceClient(t, server, "/v1/"), "nodes", nil, "nodes", "detail")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, calls)
}

func TestListRawEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"backups": []any{}})
	}))
	defer server.Close()

	rows, err := listRaw(context.Background(), mustServiceClient(t, server, "/v1.0/p/"), "backups", nil, "backups")
	require.NoError(t, err)
	require.NotNil(t, rows)
	require.Empty(t, rows)
}

func TestCreateNetworkAdminFields(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]map[string]any

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		network := body["network"]

		require.Equal(t, "net", network["name"])
		require.Equal(t, true, network["router:external"])
		require.Equal(t, "vlan", network["provider:network_type"])
		require.InDelta(t, 100, network["provider:segmentation_id"], 0)
		require.NotContains(t, network, "shared")

		writeJSON(t, w, http.StatusCreated, map[string]any{
			"network": map[string]any{"id": "n1", "name": "net"},
		})
	}))
	defer server.Close()

	c := &NetworkClient{client: mustServiceClient(t, server, "/v2.0/")}

	opts := &NetworkCreateOpts{
		Name:           "net",
		External:       ptr.To(true),
		NetworkType:    "vlan",
		SegmentationID: ptr.To(100),
	}

	row, err := c.CreateNetwork(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, "n1", row.String("id"))
}

func TestDeleteNetworkRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusConflict, map[string]any{
			"NeutronError": map[string]any{
				"type":    "NetworkInUse",
				"message": "Unable to complete operation on network n1.",
			},
		})
	}))
	defer server.Close()

	c := &NetworkClient{client: mustServiceClient(t, server, "/v2.0/")}

	err := c.DeleteNetwork(context.Background(), "n1")
	require.Error(t, err)

	classified := errors.Classify(err)
	require.Equal(t, errors.KindBackendRejected, classified.Kind)
	require.Equal(t, "NetworkInUse", classified.Type)
	require.Equal(t, http.StatusConflict, classified.StatusCode)
}

func TestDisassociateFloatingIP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/v2.0/floatingips/f1", r.URL.Path)

		var body map[string]map[string]any

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Contains(t, body["floatingip"], "port_id")
		require.Empty(t, body["floatingip"]["port_id"])

		writeJSON(t, w, http.StatusOK, map[string]any{
			"floatingip": map[string]any{"id": "f1"},
		})
	}))
	defer server.Close()

	c := &NetworkClient{client: mustServiceClient(t, server, "/v2.0/")}

	require.NoError(t, c.DisassociateFloatingIP(context.Background(), "f1"))
}

func TestFixedAddresses(t *testing.T) {
	t.Parallel()

	addresses := map[string]any{
		"private": []any{
			map[string]any{"addr": "10.0.0.5", "OS-EXT-IPS:type": "fixed"},
			map[string]any{"addr": "172.24.4.10", "OS-EXT-IPS:type": "floating"},
		},
		"other": []any{
			map[string]any{"addr": "192.168.0.2", "OS-EXT-IPS:type": "fixed"},
			map[string]any{"addr": "10.0.0.5", "OS-EXT-IPS:type": "fixed"},
		},
	}

	require.Equal(t, []string{"10.0.0.5", "192.168.0.2"}, fixedAddresses(addresses))
	require.Empty(t, fixedAddresses(nil))
}

func TestTokenProvider(t *testing.T) {
	t.Parallel()

	var server *httptest.Server

	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/auth/tokens", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Subject-Token"))

		w.Header().Set("X-Subject-Token", "secret")

		writeJSON(t, w, http.StatusOK, map[string]any{
			"token": map[string]any{
				"expires_at": "2030-01-01T00:00:00.000000Z",
				"user": map[string]any{
					"id":     "u1",
					"name":   "alice",
					"domain": map[string]any{"id": "default", "name": "Default"},
				},
				"project": map[string]any{
					"id":     "p1",
					"name":   "demo",
					"domain": map[string]any{"id": "default", "name": "Default"},
				},
				"roles": []any{
					map[string]any{"id": "r1", "name": "member"},
					map[string]any{"id": "r2", "name": "reader"},
				},
				"catalog": []any{
					map[string]any{
						"type": "network",
						"name": "neutron",
						"endpoints": []any{
							map[string]any{"interface": "public", "region": "r", "region_id": "r", "url": server.URL + "/network"},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	provider := NewTokenProvider(server.URL+"/v3", "secret")

	details, err := provider.Details(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", details.UserID)
	require.Equal(t, "default", details.DomainID)
	require.Equal(t, "p1", details.ProjectID)
	require.True(t, details.HasRole("member"))
	require.False(t, details.HasRole("admin"))

	p := New(provider, &Options{Interface: "public"})

	network, err := p.Network(context.Background())
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%s/network/v2.0/", server.URL), network.client.ResourceBaseURL())
}

func TestCloudConfig(t *testing.T) {
	t.Parallel()

	credential := &ApplicationCredential{
		Cloud:     "openstack",
		AuthURL:   "https://keystone.example.com/v3",
		Region:    "RegionOne",
		Interface: "public",
		ID:        "ac1",
		Secret:    "s3cr3t",
	}

	cloudsYAML, err := GenerateCloudsYAML(credential)
	require.NoError(t, err)
	require.Contains(t, string(cloudsYAML), "auth_type: v3applicationcredential")

	cloudConfig, err := GenerateCloudConfig(cloudsYAML, "openstack")
	require.NoError(t, err)
	require.Contains(t, cloudConfig, "[Global]")
	require.Contains(t, cloudConfig, "application-credential-id")
	require.Contains(t, cloudConfig, "ac1")
	require.Contains(t, cloudConfig, "RegionOne")

	_, err = GenerateCloudConfig(cloudsYAML, "missing")
	require.ErrorIs(t, err, ErrCloudConfiguration)
}
