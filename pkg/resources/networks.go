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
	"encoding/json"
	"fmt"
	"net/netip"
	"net/url"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"

	"github.com/unikorn-cloud/console/pkg/action"
	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/providers/openstack"
	"github.com/unikorn-cloud/console/pkg/resource"

	"k8s.io/utils/ptr"
)

// segmentationRanges are the valid segmentation IDs per network type.
//
//nolint:gochecknoglobals
var segmentationRanges = map[string][2]int64{
	"vxlan": {1, 16777215},
	"vlan":  {1, 4094},
	"gre":   {1, 4294967295},
}

// NewNetworks returns the networks page.
func NewNetworks(env *Environment) *Page {
	config := &resource.Config{
		Name:   "networks",
		Title:  "Networks",
		RowKey: "id",
		Columns: []resource.ColumnSpec{
			{Key: "name", Title: "Name", Sortable: true},
			{Key: "id", Title: "ID", Hidden: true},
			{Key: "project_id", Title: "Project", Sortable: true, Hidden: !env.Admin},
			{Key: "subnets", Title: "Subnets", Value: func(row resource.Row) any {
				subnets, _ := row["subnets"].([]any)

				return len(subnets)
			}},
			{Key: "shared", Title: "Shared", Sortable: true},
			{Key: "router:external", Title: "External", Sortable: true},
			{Key: "status", Title: "Status", Sortable: true},
			{Key: "admin_state_up", Title: "Admin State", Sortable: true},
			{Key: "availability_zones", Title: "Availability Zones", Hidden: true},
			{Key: "created_at", Title: "Created At", Sortable: true},
		},
		Filters: []resource.FilterSpec{
			{Name: "name", Label: "Name", Kind: resource.FilterText},
			{Name: "status", Label: "Status", Kind: resource.FilterSelect, Options: statusOptions("ACTIVE", "DOWN", "BUILD", "ERROR")},
		},
		DefaultSort:        resource.Sort{Key: "name", Direction: resource.Ascending},
		FilterByBackend:    true,
		SortByBackend:      true,
		Policy:             []string{"get_network"},
		StatusKey:          "status",
		TransitionStatuses: []string{"build"},
	}

	// Neutron rejects unknown filters, admins see everything anyway.
	query := &resource.QueryOptions{
		NoAllProjects: true,
	}

	fetch := func(ctx context.Context, query url.Values) ([]resource.Row, error) {
		network, err := env.Services.Network(ctx)
		if err != nil {
			return nil, err
		}

		return network.ListNetworks(ctx, query)
	}

	deleteNetwork := func(ctx context.Context, id string) error {
		network, err := env.Services.Network(ctx)
		if err != nil {
			return err
		}

		return network.DeleteNetwork(ctx, id)
	}

	return &Page{
		Adapter: &adapter{config: config, query: query, fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:         "create",
				Title:      "Create Network",
				Policy:     []string{"create_network", "create_subnet"},
				SubmitForm: (&networkCreator{env: env}).submit,
			},
			{
				ID:     "delete",
				Title:  "Delete",
				Policy: []string{"delete_network"},
				Danger: true,
				Batch:  true,
				Allowed: func(row resource.Row) bool {
					return env.ownerOrAdmin(row, "project_id")
				},
				Submit: byKey(config.RowKey, deleteNetwork),
			},
		},
	}
}

// allocationPool is an address range handed out by DHCP.
type allocationPool struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// hostRoute is a static route pushed to instances.
type hostRoute struct {
	Destination string `json:"destination"`
	NextHop     string `json:"nexthop"`
}

// subnetForm is the optional subnet part of network creation.
type subnetForm struct {
	Name            string           `json:"name"`
	CIDR            string           `json:"cidr"`
	IPVersion       int              `json:"ip_version"`
	GatewayIP       string           `json:"gateway_ip"`
	DisableGateway  bool             `json:"disable_gateway"`
	EnableDHCP      *bool            `json:"enable_dhcp"`
	IPv6AddressMode string           `json:"ipv6_address_mode"`
	IPv6RAMode      string           `json:"ipv6_ra_mode"`
	DNSNameservers  []string         `json:"dns_nameservers"`
	AllocationPools []allocationPool `json:"allocation_pools"`
	HostRoutes      []hostRoute      `json:"host_routes"`
}

// networkForm is the input to network creation.
type networkForm struct {
	Name                  string      `json:"name"`
	Description           string      `json:"description"`
	AdminStateUp          *bool       `json:"admin_state_up"`
	PortSecurityEnabled   *bool       `json:"port_security_enabled"`
	AvailabilityZoneHints []string    `json:"availability_zone_hints"`
	MTU                   int         `json:"mtu"`
	Shared                bool        `json:"shared"`
	External              bool        `json:"external"`
	ProjectID             string      `json:"project_id"`
	NetworkType           string      `json:"provider_network_type"`
	PhysicalNetwork       string      `json:"provider_physical_network"`
	SegmentationID        *int64      `json:"provider_segmentation_id"`
	CreateSubnet          bool        `json:"create_subnet"`
	Subnet                *subnetForm `json:"subnet"`
}

// decodeValues converts loosely typed action values into a form.
func decodeValues(values map[string]any, out any) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Invalid("malformed input: %v", err)
	}

	return nil
}

func (f *networkForm) validate() error {
	if f.Name == "" {
		return errors.Invalid("network name is required")
	}

	if f.SegmentationID != nil {
		bounds, ok := segmentationRanges[f.NetworkType]
		if !ok {
			return errors.Invalid("segmentation ID not supported for network type %q", f.NetworkType)
		}

		if *f.SegmentationID < bounds[0] || *f.SegmentationID > bounds[1] {
			return errors.Invalid("segmentation ID must be in the range %d-%d for %s", bounds[0], bounds[1], f.NetworkType)
		}
	}

	if !f.CreateSubnet {
		return nil
	}

	if f.Subnet == nil {
		return errors.Invalid("subnet details are required")
	}

	return f.Subnet.validate()
}

func parseAddr(prefix netip.Prefix, value, what string) error {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return errors.Invalid("%s %q is not an IP address", what, value)
	}

	if !prefix.Contains(addr) {
		return errors.Invalid("%s %s is not within %s", what, value, prefix)
	}

	return nil
}

func (s *subnetForm) validate() error {
	if s.Name == "" {
		return errors.Invalid("subnet name is required")
	}

	if s.IPVersion == 0 {
		s.IPVersion = 4
	}

	if s.IPVersion != 4 && s.IPVersion != 6 {
		return errors.Invalid("IP version must be 4 or 6")
	}

	prefix, err := netip.ParsePrefix(s.CIDR)
	if err != nil {
		return errors.Invalid("invalid CIDR %q", s.CIDR)
	}

	if prefix.Masked() != prefix {
		return errors.Invalid("CIDR %s has host bits set, did you mean %s", s.CIDR, prefix.Masked())
	}

	if (s.IPVersion == 4) != prefix.Addr().Is4() {
		return errors.Invalid("CIDR %s is not an IPv%d network", s.CIDR, s.IPVersion)
	}

	if s.GatewayIP != "" && !s.DisableGateway {
		if err := parseAddr(prefix, s.GatewayIP, "gateway"); err != nil {
			return err
		}
	}

	for _, pool := range s.AllocationPools {
		if err := parseAddr(prefix, pool.Start, "allocation pool start"); err != nil {
			return err
		}

		if err := parseAddr(prefix, pool.End, "allocation pool end"); err != nil {
			return err
		}

		if netip.MustParseAddr(pool.End).Less(netip.MustParseAddr(pool.Start)) {
			return errors.Invalid("allocation pool %s-%s is reversed", pool.Start, pool.End)
		}
	}

	for _, nameserver := range s.DNSNameservers {
		if _, err := netip.ParseAddr(nameserver); err != nil {
			return errors.Invalid("DNS nameserver %q is not an IP address", nameserver)
		}
	}

	return nil
}

// networkCreator creates a network, then optionally a subnet on it.  The
// network is left in place if the subnet fails, the error names the step.
type networkCreator struct {
	env *Environment
}

func (c *networkCreator) networkOpts(form *networkForm) *openstack.NetworkCreateOpts {
	opts := &openstack.NetworkCreateOpts{
		Name:                  form.Name,
		Description:           form.Description,
		AdminStateUp:          form.AdminStateUp,
		PortSecurityEnabled:   form.PortSecurityEnabled,
		AvailabilityZoneHints: form.AvailabilityZoneHints,
		MTU:                   form.MTU,
	}

	// Provider and ownership fields are only offered on admin pages.
	if c.env.Admin {
		if form.External {
			opts.External = ptr.To(true)
		}

		opts.ProjectID = form.ProjectID
		opts.NetworkType = form.NetworkType
		opts.PhysicalNetwork = form.PhysicalNetwork

		if form.SegmentationID != nil {
			opts.SegmentationID = ptr.To(int(*form.SegmentationID))
		}
	}

	if form.Shared && c.env.Policy.CheckPolicy([]string{constants.SystemAdminRule}, false) {
		opts.Shared = ptr.To(true)
	}

	return opts
}

func subnetOpts(networkID string, form *subnetForm) *subnets.CreateOpts {
	opts := &subnets.CreateOpts{
		NetworkID:       networkID,
		Name:            form.Name,
		CIDR:            form.CIDR,
		IPVersion:       gophercloud.IPVersion(form.IPVersion),
		EnableDHCP:      ptr.To(true),
		DNSNameservers:  form.DNSNameservers,
		IPv6AddressMode: form.IPv6AddressMode,
		IPv6RAMode:      form.IPv6RAMode,
	}

	if form.EnableDHCP != nil {
		opts.EnableDHCP = form.EnableDHCP
	}

	switch {
	case form.DisableGateway:
		opts.GatewayIP = ptr.To("")
	case form.GatewayIP != "":
		opts.GatewayIP = ptr.To(form.GatewayIP)
	}

	for _, pool := range form.AllocationPools {
		opts.AllocationPools = append(opts.AllocationPools, subnets.AllocationPool{
			Start: pool.Start,
			End:   pool.End,
		})
	}

	for _, route := range form.HostRoutes {
		opts.HostRoutes = append(opts.HostRoutes, subnets.HostRoute{
			DestinationCIDR: route.Destination,
			NextHop:         route.NextHop,
		})
	}

	return opts
}

func (c *networkCreator) submit(ctx context.Context, values map[string]any) (any, error) {
	form := &networkForm{
		NetworkType: "vxlan",
	}

	if err := decodeValues(values, form); err != nil {
		return nil, err
	}

	if err := form.validate(); err != nil {
		return nil, err
	}

	network, err := c.env.Services.Network(ctx)
	if err != nil {
		return nil, err
	}

	created, err := network.CreateNetwork(ctx, c.networkOpts(form))
	if err != nil {
		return nil, errors.WithStep("create_network", err)
	}

	result := map[string]any{
		"network": created,
	}

	if !form.CreateSubnet {
		return result, nil
	}

	subnet, err := network.CreateSubnet(ctx, subnetOpts(created.Key("id"), form.Subnet))
	if err != nil {
		tagged := errors.Classify(errors.WithStep("create_subnet", err))
		tagged.Message = fmt.Sprintf("Unable to create subnet, instance: %s: %s", form.Subnet.Name, tagged.Message)

		return nil, tagged
	}

	result["subnet"] = subnet

	return result, nil
}
