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

// Package rp maps multicast groups to their Rendezvous Point from a static
// configuration and resolves the RPF information towards the RP.
package rp

import (
	"fmt"
	"net/netip"

	"github.com/gaissmai/bart"
	"k8s.io/klog/v2"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/nexthop"
)

var multicastRange = netip.MustParsePrefix("224.0.0.0/4")

// RPF is the reverse path towards the RP of a group.
type RPF struct {
	Address netip.Addr
	Nexthop *nexthop.Nexthop
}

// Interface returns the interface the RP is reached through.
func (r *RPF) Interface() *interfacestore.InterfaceConfig {
	return r.Nexthop.Interface
}

type nexthopResolver interface {
	Lookup(addr netip.Addr) (*nexthop.Nexthop, error)
}

type Resolver struct {
	rps        bart.Table[netip.Addr]
	ifaceStore interfacestore.InterfaceStore
	nexthops   nexthopResolver
}

func NewResolver(ifaceStore interfacestore.InterfaceStore, nexthops nexthopResolver) *Resolver {
	return &Resolver{ifaceStore: ifaceStore, nexthops: nexthops}
}

// AddRP configures rp as the Rendezvous Point of all groups in groupRange. The
// most specific range wins when ranges overlap.
func (r *Resolver) AddRP(groupRange netip.Prefix, rp netip.Addr) error {
	groupRange = groupRange.Masked()
	if !groupRange.Addr().Is4() || !multicastRange.Overlaps(groupRange) || groupRange.Bits() < multicastRange.Bits() {
		return fmt.Errorf("group range %s is not a multicast range", groupRange)
	}
	if !rp.Is4() || rp.IsMulticast() || rp.IsUnspecified() {
		return fmt.Errorf("RP address %s is not a unicast IPv4 address", rp)
	}
	r.rps.Insert(groupRange, rp)
	klog.InfoS("Configured static RP", "groupRange", groupRange, "rp", rp)
	return nil
}

func (r *Resolver) DeleteRP(groupRange netip.Prefix) {
	r.rps.Delete(groupRange.Masked())
}

// RPAddress returns the RP address configured for group.
func (r *Resolver) RPAddress(group netip.Addr) (netip.Addr, bool) {
	return r.rps.Lookup(group)
}

// IAmRP returns true if the RP of group is one of the local addresses.
func (r *Resolver) IAmRP(group netip.Addr) bool {
	rp, ok := r.RPAddress(group)
	if !ok {
		return false
	}
	_, local := r.ifaceStore.GetInterfaceByIP(rp)
	return local
}

// RP returns the RPF information of the RP of group. It returns false if no RP
// is configured for the group or the RP is not reachable through a multicast
// interface.
func (r *Resolver) RP(group netip.Addr) (*RPF, bool) {
	rp, ok := r.RPAddress(group)
	if !ok {
		return nil, false
	}
	// When this router is the RP, the RPF interface is the one owning the RP
	// address.
	if iface, local := r.ifaceStore.GetInterfaceByIP(rp); local {
		return &RPF{Address: rp, Nexthop: &nexthop.Nexthop{Interface: iface, Address: rp}}, true
	}
	nh, err := r.nexthops.Lookup(rp)
	if err != nil {
		klog.V(4).ErrorS(err, "RP is unreachable", "group", group, "rp", rp)
		return nil, false
	}
	return &RPF{Address: rp, Nexthop: nh}, true
}
