// Copyright 2021 Antrea Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package nexthop resolves the unicast next hop towards an address, which PIM
// uses as the RPF neighbor for sources and RPs.
package nexthop

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
)

type Nexthop struct {
	Interface *interfacestore.InterfaceConfig
	// Address is the next-hop router, or the destination itself when it is
	// directly connected.
	Address netip.Addr
	// Metric is the route priority reported by the kernel and is used as the
	// Assert metric.
	Metric uint32
}

type Resolver struct {
	ifaceStore interfacestore.InterfaceStore
	routeGet   func(destination net.IP) ([]netlink.Route, error)
}

func NewResolver(ifaceStore interfacestore.InterfaceStore) *Resolver {
	return &Resolver{ifaceStore: ifaceStore, routeGet: netlink.RouteGet}
}

// Lookup returns the next hop towards addr through one of the interfaces in
// the interface store.
func (r *Resolver) Lookup(addr netip.Addr) (*Nexthop, error) {
	routes, err := r.routeGet(net.IP(addr.AsSlice()))
	if err != nil {
		return nil, fmt.Errorf("failed to get route to %s: %w", addr, err)
	}
	for _, route := range routes {
		iface, found := r.ifaceStore.GetInterfaceByIfIndex(route.LinkIndex)
		if !found {
			continue
		}
		nh := &Nexthop{Interface: iface, Address: addr, Metric: uint32(route.Priority)}
		if gw, ok := netip.AddrFromSlice(route.Gw.To4()); ok && gw.IsValid() && !gw.IsUnspecified() {
			nh.Address = gw
		}
		return nh, nil
	}
	return nil, fmt.Errorf("no route to %s through a multicast interface", addr)
}
