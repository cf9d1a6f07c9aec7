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
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
)

func TestNewPhysicalInterfaceFromLink(t *testing.T) {
	defer func() {
		netlinkLinkByName = netlink.LinkByName
		netlinkAddrList = netlink.AddrList
	}()
	netlinkLinkByName = func(name string) (netlink.Link, error) {
		if name != "eth0" {
			return nil, fmt.Errorf("link not found")
		}
		return &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name, Index: 4}}, nil
	}
	netlinkAddrList = func(link netlink.Link, family int) ([]netlink.Addr, error) {
		return []netlink.Addr{
			{IPNet: &net.IPNet{IP: net.ParseIP("10.0.0.1"), Mask: net.CIDRMask(24, 32)}},
			{IPNet: nil},
		}, nil
	}

	iface, err := NewPhysicalInterfaceFromLink("eth0", 3, &PIMConfig{DesignatedRouter: true})
	require.NoError(t, err)
	assert.Equal(t, 4, iface.IfIndex)
	assert.Equal(t, uint16(3), iface.VIF)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.1/24")}, iface.Prefixes)
	assert.True(t, iface.IsDR())

	_, err = NewPhysicalInterfaceFromLink("eth9", 4, nil)
	assert.Error(t, err)
}
