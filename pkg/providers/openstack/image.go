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
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// ImageClient wraps the generic client because gophercloud is unsafe.
type ImageClient struct {
	client *gophercloud.ServiceClient
}

// NewImageClient provides a simple one-liner to start imaging.
func NewImageClient(providerClient *gophercloud.ProviderClient, endpoint gophercloud.EndpointOpts) (*ImageClient, error) {
	client, err := openstack.NewImageV2(providerClient, endpoint)
	if err != nil {
		return nil, err
	}

	c := &ImageClient{
		client: client,
	}

	return c, nil
}

// ListImages returns images matching the query.  Glance pages with a
// relative next link, so this follows it until exhausted.
func (c *ImageClient) ListImages(ctx context.Context, query url.Values) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/image/v2/images", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "images", query, "images")
}

// DeleteImage deletes an image.
func (c *ImageClient) DeleteImage(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/image/v2/images/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return images.Delete(ctx, c.client, id).ExtractErr()
}
