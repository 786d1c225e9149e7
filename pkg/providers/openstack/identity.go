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
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/applicationcredentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// IdentityClient wraps up gophercloud identity management.
type IdentityClient struct {
	client *gophercloud.ServiceClient
}

// NewIdentityClient returns a new identity client.
func NewIdentityClient(providerClient *gophercloud.ProviderClient, endpoint gophercloud.EndpointOpts) (*IdentityClient, error) {
	identity, err := openstack.NewIdentityV3(providerClient, endpoint)
	if err != nil {
		return nil, err
	}

	client := &IdentityClient{
		client: identity,
	}

	return client, nil
}

// Endpoint returns the Keystone endpoint used, for client configuration.
func (c *IdentityClient) Endpoint() string {
	return c.client.Endpoint
}

// ListApplicationCredentials lists application credentials for the user.
func (c *IdentityClient) ListApplicationCredentials(ctx context.Context, userID string) ([]resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/identity/v3/users/"+userID+"/application_credentials", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return listRaw(ctx, c.client, "application_credentials", nil, "users", userID, "application_credentials")
}

// ApplicationCredentialOptions describe a new application credential.
type ApplicationCredentialOptions struct {
	Name        string
	Description string
	// RoleIDs to delegate, must be a subset of the token's roles.
	RoleIDs   []string
	ExpiresAt *time.Time
}

// CreateApplicationCredential creates an application credential for the user.
// The secret is only ever returned here.
func (c *IdentityClient) CreateApplicationCredential(ctx context.Context, userID string, options *ApplicationCredentialOptions) (resource.Row, error) {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/identity/v3/users/"+userID+"/application_credentials", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	applicationRoles := make([]applicationcredentials.Role, len(options.RoleIDs))

	for i, role := range options.RoleIDs {
		applicationRoles[i].ID = role
	}

	opts := &applicationcredentials.CreateOpts{
		Name:        options.Name,
		Description: options.Description,
		Roles:       applicationRoles,
		ExpiresAt:   options.ExpiresAt,
	}

	var result struct {
		ApplicationCredential resource.Row `json:"application_credential"`
	}

	if err := applicationcredentials.Create(ctx, c.client, userID, opts).ExtractInto(&result); err != nil {
		return nil, err
	}

	return result.ApplicationCredential, nil
}

// DeleteApplicationCredential deletes an application credential for the user.
func (c *IdentityClient) DeleteApplicationCredential(ctx context.Context, userID, id string) error {
	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/identity/v3/users/"+userID+"/application_credentials/"+id, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	return applicationcredentials.Delete(ctx, c.client, userID, id).ExtractErr()
}
