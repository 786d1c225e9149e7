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
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/snapshots"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// BlockStorageClient wraps the generic client because gophercloud is unsafe.
type BlockStorageClient struct {
	client *gophercloud.ServiceClient
}

// NewBlockStorageClient provides a simple one-liner to start block storage.
func NewBlockStorageClient(providerClient *gophercloud.ProviderClient, endpoint gophercloud.EndpointOpts) (*BlockStorageClient, error) {
	client, err := openstack.NewBlockStorageV3(providerClient, endpoint)
	if err != nil {
		return nil, err
	}

	c := &BlockStorageClient{
		client: client,
	}

	return c, nil
}

// ListVolumes returns volumes matching the query.
func (c *BlockStorageClient) ListVolumes(ctx context.Context, query url.Values) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/blockstorage/v3/volumes/detail", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "volumes", query, "volumes", "detail")
}

// GetVolume returns a single volume.
func (c *BlockStorageClient) GetVolume(ctx context.Context, id string) (resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/blockstorage/v3/volumes/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return getRaw(ctx, c.client, "volume", "volumes", id)
}

// DeleteVolume deletes a volume.
func (c *BlockStorageClient) DeleteVolume(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/blockstorage/v3/volumes/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return volumes.Delete(ctx, c.client, id, volumes.DeleteOpts{}).ExtractErr()
}

// ListSnapshots returns snapshots matching the query.
func (c *BlockStorageClient) ListSnapshots(ctx context.Context, query url.Values) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/blockstorage/v3/snapshots/detail", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "snapshots", query, "snapshots", "detail")
}

// GetSnapshot returns a single snapshot.
func (c *BlockStorageClient) GetSnapshot(ctx context.Context, id string) (resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/blockstorage/v3/snapshots/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return getRaw(ctx, c.client, "snapshot", "snapshots", id)
}

// DeleteSnapshot deletes a snapshot.
func (c *BlockStorageClient) DeleteSnapshot(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/blockstorage/v3/snapshots/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return snapshots.Delete(ctx, c.client, id).ExtractErr()
}
