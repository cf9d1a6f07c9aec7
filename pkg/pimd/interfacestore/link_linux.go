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

package interfacestore

import (
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"
)

var (
	netlinkLinkByName = netlink.LinkByName
	netlinkAddrList   = netlink.AddrList
)

// NewPhysicalInterfaceFromLink looks up the kernel link called name and builds
// its InterfaceConfig with all the IPv4 prefixes configured on it.
func NewPhysicalInterfaceFromLink(name string, vif uint16, pim *PIMConfig) (*InterfaceConfig, error) {
	link, err := netlinkLinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find link %s: %w", name, err)
	}
	addrs, err := netlinkAddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses of link %s: %w", name, err)
	}
	prefixes := make([]netip.Prefix, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IPNet == nil {
			continue
		}
		ip, ok := netip.AddrFromSlice(addr.IPNet.IP.To4())
		if !ok {
			continue
		}
		ones, _ := addr.IPNet.Mask.Size()
		prefixes = append(prefixes, netip.PrefixFrom(ip, ones))
	}
	return NewPhysicalInterface(name, link.Attrs().Index, vif, prefixes, pim), nil
}
