//go:build novififindex

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

package mroute

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	multicastsyscall "github.com/dukku1/quagga/pkg/pimd/util/syscall"
)

func TestSetVIFLocalAddr(t *testing.T) {
	iface := interfacestore.NewPhysicalInterface("eth0", 5, 1, nil, nil)
	for _, tc := range []struct {
		name        string
		localAddr   netip.Addr
		expectedErr error
	}{
		{name: "IPv4 address", localAddr: netip.MustParseAddr("10.0.0.1")},
		{name: "unnumbered interface", expectedErr: ErrUnsupportedConfiguration},
		{name: "unspecified address", localAddr: netip.IPv4Unspecified(), expectedErr: ErrUnsupportedConfiguration},
		{name: "IPv6 address", localAddr: netip.MustParseAddr("fe80::1"), expectedErr: ErrUnsupportedConfiguration},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vc := &multicastsyscall.Vifctl{Vifi: 1}
			err := setVIFLocal(vc, iface, tc.localAddr)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint8(0), vc.Flags&multicastsyscall.VIFF_USE_IFINDEX)
			assert.Equal(t, tc.localAddr.As4(), vc.Lcl)
		})
	}
}
