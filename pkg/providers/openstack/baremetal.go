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

package openstack

import (
	"context"
	"net/url"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// BareMetalClient wraps the generic client because gophercloud is unsafe.
type BareMetalClient struct {
	client *gophercloud.ServiceClient
}

// NewBareMetalClient provides a simple one-liner to start bare metal.
func NewBareMetalClient(providerClient *gophercloud.ProviderClient, endpoint gophercloud.EndpointOpts) (*BareMetalClient, error) {
	client, err := openstack.NewBareMetalV1(providerClient, endpoint)
	if err != nil {
		return nil, err
	}

	// Need at least 1.50 for node owner.
	client.Microversion = "1.50"

	c := &BareMetalClient{
		client: client,
	}

	return c, nil
}

// ListNodes returns nodes with all their details.
func (c *BareMetalClient) ListNodes(ctx context.Context, query url.Values) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/baremetal/v1/nodes/detail", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "nodes", query, "nodes", "detail")
}

// PortCounts returns the number of ports attached to each node, keyed by
// node UUID.
func (c *BareMetalClient) PortCounts(ctx context.Context) (map[string]int, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/baremetal/v1/ports", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	query := url.Values{}
	query.Set("fields", "uuid,node_uuid")

	ports, err := listRaw(ctx, c.client, "ports", query, "ports")
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}

	for _, port := range ports {
		if node := port.String("node_uuid"); node != "" {
			counts[node]++
		}
	}

	return counts, nil
}

// SetPowerState powers a node on or off.
func (c *BareMetalClient) SetPowerState(ctx context.Context, id string, target nodes.TargetPowerState) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/baremetal/v1/nodes/"+id+"/states/power", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	opts := nodes.PowerStateOpts{
		Target: target,
	}

	return nodes.ChangePowerState(ctx, c.client, id, opts).ExtractErr()
}

// SetMaintenance puts a node into maintenance mode.
func (c *BareMetalClient) SetMaintenance(ctx context.Context, id, reason string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/baremetal/v1/nodes/"+id+"/maintenance", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body := map[string]any{}

	if reason != "" {
		body["reason"] = reason
	}

	_, err := c.client.Put(ctx, c.client.ServiceURL("nodes", id, "maintenance"), body, nil, &gophercloud.RequestOpts{
		OkCodes: []int{202},
	})

	return err
}

// ClearMaintenance takes a node out of maintenance mode.
func (c *BareMetalClient) ClearMaintenance(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/baremetal/v1/nodes/"+id+"/maintenance", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return deleteRaw(ctx, c.client, "nodes", id, "maintenance")
}
