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
	"net/url"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/resource"

	"k8s.io/utils/ptr"
)

// NetworkClient wraps the generic client because gophercloud is unsafe.
type NetworkClient struct {
	client *gophercloud.ServiceClient
}

// NewNetworkClient provides a simple one-liner to start networking.
func NewNetworkClient(providerClient *gophercloud.ProviderClient, endpoint gophercloud.EndpointOpts) (*NetworkClient, error) {
	client, err := openstack.NewNetworkV2(providerClient, endpoint)
	if err != nil {
		return nil, err
	}

	c := &NetworkClient{
		client: client,
	}

	return c, nil
}

// ListNetworks returns networks matching the query.
func (c *NetworkClient) ListNetworks(ctx context.Context, query url.Values) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/networking/v2.0/networks", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "networks", query, "networks")
}

// NetworkCreateOpts extends the basic options with the provider and
// external extensions, and project ownership, only admins may set these.
type NetworkCreateOpts struct {
	Name                  string   `json:"name"`
	Description           string   `json:"description,omitempty"`
	AdminStateUp          *bool    `json:"admin_state_up,omitempty"`
	PortSecurityEnabled   *bool    `json:"port_security_enabled,omitempty"`
	AvailabilityZoneHints []string `json:"availability_zone_hints,omitempty"`
	MTU                   int      `json:"mtu,omitempty"`
	Shared                *bool    `json:"shared,omitempty"`
	External              *bool    `json:"router:external,omitempty"`
	ProjectID             string   `json:"project_id,omitempty"`
	NetworkType           string   `json:"provider:network_type,omitempty"`
	PhysicalNetwork       string   `json:"provider:physical_network,omitempty"`
	SegmentationID        *int     `json:"provider:segmentation_id,omitempty"`
}

// Ensure the interface is implemented.
var _ networks.CreateOptsBuilder = &NetworkCreateOpts{}

// ToNetworkCreateMap implements networks.CreateOptsBuilder.
func (o *NetworkCreateOpts) ToNetworkCreateMap() (map[string]any, error) {
	return gophercloud.BuildRequestBody(o, "network")
}

// CreateNetwork creates a network and returns it.
func (c *NetworkClient) CreateNetwork(ctx context.Context, opts *NetworkCreateOpts) (resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/networking/v2.0/networks", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var result struct {
		Network resource.Row `json:"network"`
	}

	if err := networks.Create(ctx, c.client, opts).ExtractInto(&result); err != nil {
		return nil, err
	}

	return result.Network, nil
}

// DeleteNetwork deletes a network.
func (c *NetworkClient) DeleteNetwork(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/networking/v2.0/networks/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return networks.Delete(ctx, c.client, id).ExtractErr()
}

// CreateSubnet creates a subnet and returns it.
func (c *NetworkClient) CreateSubnet(ctx context.Context, opts *subnets.CreateOpts) (resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/networking/v2.0/subnets", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var result struct {
		Subnet resource.Row `json:"subnet"`
	}

	if err := subnets.Create(ctx, c.client, opts).ExtractInto(&result); err != nil {
		return nil, err
	}

	return result.Subnet, nil
}

// ListFloatingIPs returns floating IPs matching the query.
func (c *NetworkClient) ListFloatingIPs(ctx context.Context, query url.Values) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/networking/v2.0/floatingips", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "floatingips", query, "floatingips")
}

// DeleteFloatingIP releases a floating IP back to the pool.
func (c *NetworkClient) DeleteFloatingIP(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/networking/v2.0/floatingips/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return floatingips.Delete(ctx, c.client, id).ExtractErr()
}

// DisassociateFloatingIP detaches a floating IP from its port.
func (c *NetworkClient) DisassociateFloatingIP(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/networking/v2.0/floatingips/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// An empty port is sent as null.
	opts := floatingips.UpdateOpts{
		PortID: ptr.To(""),
	}

	return floatingips.Update(ctx, c.client, id, opts).Err
}
