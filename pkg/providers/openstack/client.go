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
	"sync"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/tokens"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
)

// CredentialProvider abstracts authentication methods.
type CredentialProvider interface {
	// Client returns a new provider client.
	Client(ctx context.Context) (*gophercloud.ProviderClient, error)
}

// TokenDetails is what Keystone tells us about a token.
type TokenDetails struct {
	UserID      string
	UserName    string
	DomainID    string
	ProjectID   string
	ProjectName string
	Roles       []string
	ExpiresAt   time.Time
}

// HasRole checks whether the token carries the named role.
func (t *TokenDetails) HasRole(name string) bool {
	for _, role := range t.Roles {
		if role == name {
			return true
		}
	}

	return false
}

// TokenProvider creates a client from an endpoint and an existing token.
// The token is validated once, and the catalog it is scoped to is used to
// locate services, rather than reissuing a token.
type TokenProvider struct {
	// endpoint is the Keystone endpoint to hit to get access to tokens
	// and the service catalog.
	endpoint string

	// token is an Openstack authorization token.
	token string

	client  *gophercloud.ProviderClient
	details *TokenDetails
	lock    sync.Mutex
}

// Ensure the interface is implemented.
var _ CredentialProvider = &TokenProvider{}

// NewTokenProvider returns a new initialized provider.
func NewTokenProvider(endpoint, token string) *TokenProvider {
	return &TokenProvider{
		endpoint: endpoint,
		token:    token,
	}
}

// validate looks up the token, and configures the provider client.
// NOTE: you MUST get the lock before calling this function.
func (p *TokenProvider) validate(ctx context.Context) error {
	if p.client != nil {
		return nil
	}

	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "/identity/v3/auth/tokens", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	client, err := openstack.NewClient(p.endpoint)
	if err != nil {
		return err
	}

	client.SetToken(p.token)

	identity, err := openstack.NewIdentityV3(client, gophercloud.EndpointOpts{})
	if err != nil {
		return err
	}

	result := tokens.Get(ctx, identity, p.token)

	details, err := tokenDetails(result)
	if err != nil {
		return err
	}

	catalog, err := result.ExtractServiceCatalog()
	if err != nil {
		return err
	}

	client.EndpointLocator = func(opts gophercloud.EndpointOpts) (string, error) {
		return openstack.V3EndpointURL(catalog, opts)
	}

	p.client = client
	p.details = details

	return nil
}

func tokenDetails(result tokens.GetResult) (*TokenDetails, error) {
	token, err := result.ExtractToken()
	if err != nil {
		return nil, err
	}

	user, err := result.ExtractUser()
	if err != nil {
		return nil, err
	}

	roles, err := result.ExtractRoles()
	if err != nil {
		return nil, err
	}

	details := &TokenDetails{
		UserID:    user.ID,
		UserName:  user.Name,
		DomainID:  user.Domain.ID,
		ExpiresAt: token.ExpiresAt,
		Roles:     make([]string, len(roles)),
	}

	for i := range roles {
		details.Roles[i] = roles[i].Name
	}

	project, err := result.ExtractProject()
	if err != nil {
		return nil, err
	}

	if project != nil {
		details.ProjectID = project.ID
		details.ProjectName = project.Name
	}

	return details, nil
}

// Client implements the CredentialProvider interface.
func (p *TokenProvider) Client(ctx context.Context) (*gophercloud.ProviderClient, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if err := p.validate(ctx); err != nil {
		return nil, err
	}

	return p.client, nil
}

// Details returns information about the token's user and scope.
func (p *TokenProvider) Details(ctx context.Context) (*TokenDetails, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if err := p.validate(ctx); err != nil {
		return nil, err
	}

	return p.details, nil
}
