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

package resources

import (
	"context"
	"net/url"

	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"

	"github.com/unikorn-cloud/console/pkg/providers/openstack"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// NetworkAPI is the subset of Neutron used by pages.
type NetworkAPI interface {
	ListNetworks(ctx context.Context, query url.Values) ([]resource.Row, error)
	CreateNetwork(ctx context.Context, opts *openstack.NetworkCreateOpts) (resource.Row, error)
	DeleteNetwork(ctx context.Context, id string) error
	CreateSubnet(ctx context.Context, opts *subnets.CreateOpts) (resource.Row, error)
	ListFloatingIPs(ctx context.Context, query url.Values) ([]resource.Row, error)
	DeleteFloatingIP(ctx context.Context, id string) error
	DisassociateFloatingIP(ctx context.Context, id string) error
}

// ComputeAPI is the subset of Nova used by pages.
type ComputeAPI interface {
	FixedAddresses(ctx context.Context, serverID string) ([]string, error)
}

// BlockStorageAPI is the subset of Cinder used by pages.
type BlockStorageAPI interface {
	ListVolumes(ctx context.Context, query url.Values) ([]resource.Row, error)
	GetVolume(ctx context.Context, id string) (resource.Row, error)
	DeleteVolume(ctx context.Context, id string) error
	ListSnapshots(ctx context.Context, query url.Values) ([]resource.Row, error)
	GetSnapshot(ctx context.Context, id string) (resource.Row, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// ImageAPI is the subset of Glance used by pages.
type ImageAPI interface {
	ListImages(ctx context.Context, query url.Values) ([]resource.Row, error)
	DeleteImage(ctx context.Context, id string) error
}

// BareMetalAPI is the subset of Ironic used by pages.
type BareMetalAPI interface {
	ListNodes(ctx context.Context, query url.Values) ([]resource.Row, error)
	PortCounts(ctx context.Context) (map[string]int, error)
	SetPowerState(ctx context.Context, id string, target nodes.TargetPowerState) error
	SetMaintenance(ctx context.Context, id, reason string) error
	ClearMaintenance(ctx context.Context, id string) error
}

// IdentityAPI is the subset of Keystone used by pages.
type IdentityAPI interface {
	ListApplicationCredentials(ctx context.Context, userID string) ([]resource.Row, error)
	CreateApplicationCredential(ctx context.Context, userID string, options *openstack.ApplicationCredentialOptions) (resource.Row, error)
	DeleteApplicationCredential(ctx context.Context, userID, id string) error
}

// DatabaseAPI is the subset of Trove used by pages.
type DatabaseAPI interface {
	ListBackups(ctx context.Context, query url.Values) ([]resource.Row, error)
	DeleteBackup(ctx context.Context, id string) error
}

// ContainerAPI is the subset of Zun used by pages.
type ContainerAPI interface {
	ListCapsules(ctx context.Context, query url.Values) ([]resource.Row, error)
	DeleteCapsule(ctx context.Context, id string) error
}

// Services looks up service clients, they are created on first use.
type Services interface {
	Network(ctx context.Context) (NetworkAPI, error)
	Compute(ctx context.Context) (ComputeAPI, error)
	BlockStorage(ctx context.Context) (BlockStorageAPI, error)
	Image(ctx context.Context) (ImageAPI, error)
	BareMetal(ctx context.Context) (BareMetalAPI, error)
	Identity(ctx context.Context) (IdentityAPI, error)
	Database(ctx context.Context) (DatabaseAPI, error)
	Container(ctx context.Context) (ContainerAPI, error)
}

// providerServices adapts an OpenStack provider.
type providerServices struct {
	provider *openstack.Provider
}

// Ensure the interface is implemented.
var _ Services = &providerServices{}

// NewServices returns services backed by an OpenStack provider.
func NewServices(provider *openstack.Provider) Services {
	return &providerServices{
		provider: provider,
	}
}

func (s *providerServices) Network(ctx context.Context) (NetworkAPI, error) {
	client, err := s.provider.Network(ctx)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (s *providerServices) Compute(ctx context.Context) (ComputeAPI, error) {
	client, err := s.provider.Compute(ctx)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (s *providerServices) BlockStorage(ctx context.Context) (BlockStorageAPI, error) {
	client, err := s.provider.BlockStorage(ctx)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (s *providerServices) Image(ctx context.Context) (ImageAPI, error) {
	client, err := s.provider.Image(ctx)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (s *providerServices) BareMetal(ctx context.Context) (BareMetalAPI, error) {
	client, err := s.provider.BareMetal(ctx)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (s *providerServices) Identity(ctx context.Context) (IdentityAPI, error) {
	client, err := s.provider.Identity(ctx)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (s *providerServices) Database(ctx context.Context) (DatabaseAPI, error) {
	client, err := s.provider.Database(ctx)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (s *providerServices) Container(ctx context.Context) (ContainerAPI, error) {
	client, err := s.provider.Container(ctx)
	if err != nil {
		return nil, err
	}

	return client, nil
}
