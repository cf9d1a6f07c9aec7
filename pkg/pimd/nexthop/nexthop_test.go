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

package nexthop

import (
	"fmt"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
)

func TestLookup(t *testing.T) {
	store := interfacestore.NewInterfaceStore()
	store.Initialize([]*interfacestore.InterfaceConfig{
		interfacestore.NewPhysicalInterface("eth0", 2, 1, []netip.Prefix{netip.MustParsePrefix("10.0.0.1/24")}, &interfacestore.PIMConfig{}),
	})
	r := NewResolver(store)

	for _, tc := range []struct {
		name            string
		routes          []netlink.Route
		routeErr        error
		dst             netip.Addr
		expectedAddress netip.Addr
		expectedMetric  uint32
		expectedErr     bool
	}{
		{
			name:            "directly connected",
			routes:          []netlink.Route{{LinkIndex: 2}},
			dst:             netip.MustParseAddr("10.0.0.5"),
			expectedAddress: netip.MustParseAddr("10.0.0.5"),
		},
		{
			name:            "through gateway",
			routes:          []netlink.Route{{LinkIndex: 2, Gw: net.ParseIP("10.0.0.254"), Priority: 20}},
			dst:             netip.MustParseAddr("172.16.0.1"),
			expectedAddress: netip.MustParseAddr("10.0.0.254"),
			expectedMetric:  20,
		},
		{
			name:        "route through unknown interface",
			routes:      []netlink.Route{{LinkIndex: 9}},
			dst:         netip.MustParseAddr("172.16.0.1"),
			expectedErr: true,
		},
		{
			name:        "route lookup failure",
			routeErr:    fmt.Errorf("network is unreachable"),
			dst:         netip.MustParseAddr("172.16.0.1"),
			expectedErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r.routeGet = func(destination net.IP) ([]netlink.Route, error) {
				return tc.routes, tc.routeErr
			}
			nh, err := r.Lookup(tc.dst)
			if tc.expectedErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "eth0", nh.Interface.InterfaceName)
			assert.Equal(t, tc.expectedAddress, nh.Address)
			assert.Equal(t, tc.expectedMetric, nh.Metric)
		})
	}
}
