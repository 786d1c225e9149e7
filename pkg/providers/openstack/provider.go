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
	"sync"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/spf13/pflag"
)

// Options define how to talk to the cloud.
type Options struct {
	// Endpoint is the Keystone endpoint.
	Endpoint string

	// Region selects a region from the catalog.
	Region string

	// Interface selects the endpoint interface from the catalog.
	Interface string
}

// AddFlags registers option flags with pflag.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&o.Endpoint, "openstack-endpoint", "http://localhost:5000/v3", "Keystone endpoint.")
	f.StringVar(&o.Region, "openstack-region", "", "Region to use from the service catalog.")
	f.StringVar(&o.Interface, "openstack-interface", string(gophercloud.AvailabilityPublic), "Endpoint interface to use from the service catalog.")
}

// EndpointOpts returns catalog lookup options.
func (o *Options) EndpointOpts() gophercloud.EndpointOpts {
	return gophercloud.EndpointOpts{
		Region:       o.Region,
		Availability: gophercloud.Availability(o.Interface),
	}
}

// Provider creates service clients on demand, not all clouds have all
// services, so only those that are used are looked up in the catalog.
type Provider struct {
	credentials CredentialProvider
	endpoint    gophercloud.EndpointOpts

	// DO NOT USE DIRECTLY, CALL AN ACCESSOR.
	_identity     *IdentityClient
	_compute      *ComputeClient
	_image        *ImageClient
	_network      *NetworkClient
	_blockStorage *BlockStorageClient
	_baremetal    *BareMetalClient
	_database     *DatabaseClient
	_container    *ContainerClient

	lock sync.Mutex
}

// New returns a provider for the given credentials.
func New(credentials CredentialProvider, options *Options) *Provider {
	return &Provider{
		credentials: credentials,
		endpoint:    options.EndpointOpts(),
	}
}

// serviceClient lazily creates a service client.
func serviceClient[T any](ctx context.Context, p *Provider, cached **T, create func(*gophercloud.ProviderClient, gophercloud.EndpointOpts) (*T, error)) (*T, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if *cached != nil {
		return *cached, nil
	}

	providerClient, err := p.credentials.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := create(providerClient, p.endpoint)
	if err != nil {
		return nil, err
	}

	*cached = client

	return client, nil
}

// Identity returns the Keystone client.
func (p *Provider) Identity(ctx context.Context) (*IdentityClient, error) {
	return serviceClient(ctx, p, &p._identity, NewIdentityClient)
}

// Compute returns the Nova client.
func (p *Provider) Compute(ctx context.Context) (*ComputeClient, error) {
	return serviceClient(ctx, p, &p._compute, NewComputeClient)
}

// Image returns the Glance client.
func (p *Provider) Image(ctx context.Context) (*ImageClient, error) {
	return serviceClient(ctx, p, &p._image, NewImageClient)
}

// Network returns the Neutron client.
func (p *Provider) Network(ctx context.Context) (*NetworkClient, error) {
	return serviceClient(ctx, p, &p._network, NewNetworkClient)
}

// BlockStorage returns the Cinder client.
func (p *Provider) BlockStorage(ctx context.Context) (*BlockStorageClient, error) {
	return serviceClient(ctx, p, &p._blockStorage, NewBlockStorageClient)
}

// BareMetal returns the Ironic client.
func (p *Provider) BareMetal(ctx context.Context) (*BareMetalClient, error) {
	return serviceClient(ctx, p, &p._baremetal, NewBareMetalClient)
}

// Database returns the Trove client.
func (p *Provider) Database(ctx context.Context) (*DatabaseClient, error) {
	return serviceClient(ctx, p, &p._database, NewDatabaseClient)
}

// Container returns the Zun client.
func (p *Provider) Container(ctx context.Context) (*ContainerClient, error) {
	return serviceClient(ctx, p, &p._container, NewContainerClient)
}
