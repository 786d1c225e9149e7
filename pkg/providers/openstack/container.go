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
	"github.com/gophercloud/gophercloud/v2/openstack/container/v1/capsules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// ContainerClient wraps the generic client because gophercloud is unsafe.
type ContainerClient struct {
	client *gophercloud.ServiceClient
}

// NewContainerClient provides a simple one-liner to start containers.
func NewContainerClient(providerClient *gophercloud.ProviderClient, endpoint gophercloud.EndpointOpts) (*ContainerClient, error) {
	client, err := openstack.NewContainerV1(providerClient, endpoint)
	if err != nil {
		return nil, err
	}

	// Capsules need at least 1.32.
	client.Microversion = "1.32"

	c := &ContainerClient{
		client: client,
	}

	return c, nil
}

// ListCapsules returns capsules.
func (c *ContainerClient) ListCapsules(ctx context.Context, query url.Values) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/container/v1/capsules", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "capsules", query, "capsules")
}

// DeleteCapsule deletes a capsule and its containers.
func (c *ContainerClient) DeleteCapsule(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/container/v1/capsules/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return capsules.Delete(ctx, c.client, id).ExtractErr()
}
