/*
Copyright 2022-2024 EscherCloud.
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

package openstack

import (
	"context"
	"slices"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
)

// ComputeClient wraps the generic client because gophercloud is unsafe.
type ComputeClient struct {
	client *gophercloud.ServiceClient
}

// NewComputeClient provides a simple one-liner to start computing.
func NewComputeClient(providerClient *gophercloud.ProviderClient, endpoint gophercloud.EndpointOpts) (*ComputeClient, error) {
	client, err := openstack.NewComputeV2(providerClient, endpoint)
	if err != nil {
		return nil, err
	}

	c := &ComputeClient{
		client: client,
	}

	return c, nil
}

// FixedAddresses returns the fixed IP addresses of a server across all of
// its networks, in a stable order.
func (c *ComputeClient) FixedAddresses(ctx context.Context, serverID string) ([]string, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/compute/v2/servers/"+serverID, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	server, err := servers.Get(ctx, c.client, serverID).Extract()
	if err != nil {
		return nil, err
	}

	return fixedAddresses(server.Addresses), nil
}

// fixedAddresses extracts fixed IPs from a server's address map, which is
// keyed by network name.
func fixedAddresses(addresses map[string]any) []string {
	result := []string{}

	for _, network := range addresses {
		entries, ok := network.([]any)
		if !ok {
			continue
		}

		for _, entry := range entries {
			address, ok := entry.(map[string]any)
			if !ok {
				continue
			}

			if kind, _ := address["OS-EXT-IPS:type"].(string); kind != "fixed" {
				continue
			}

			if addr, _ := address["addr"].(string); addr != "" && !slices.Contains(result, addr) {
				result = append(result, addr)
			}
		}
	}

	slices.Sort(result)

	return result
}
