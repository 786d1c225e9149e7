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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// DatabaseClient wraps the generic client, gophercloud has no binding for
// Trove backups.
type DatabaseClient struct {
	client *gophercloud.ServiceClient
}

// NewDatabaseClient provides a simple one-liner to start databases.
func NewDatabaseClient(providerClient *gophercloud.ProviderClient, endpoint gophercloud.EndpointOpts) (*DatabaseClient, error) {
	client, err := openstack.NewDBV1(providerClient, endpoint)
	if err != nil {
		return nil, err
	}

	c := &DatabaseClient{
		client: client,
	}

	return c, nil
}

// ListBackups returns database backups.
func (c *DatabaseClient) ListBackups(ctx context.Context, query url.Values) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/database/v1.0/backups", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "backups", query, "backups")
}

// DeleteBackup deletes a database backup.
func (c *DatabaseClient) DeleteBackup(ctx context.Context, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/database/v1.0/backups/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return deleteRaw(ctx, c.client, "backups", id)
}
