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
	"net"
	"net/netip"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukku1/quagga/pkg/pimd/types"
	multicastsyscall "github.com/dukku1/quagga/pkg/pimd/util/syscall"
)

// buildUpcall returns a struct igmpmsg, followed by pkt.
func buildUpcall(typ uint8, vif uint16, src, grp string, pkt []byte) []byte {
	msg := make([]byte, SizeofIgmpmsg, SizeofIgmpmsg+len(pkt))
	msg[0] = 0x45
	msg[8] = typ
	msg[10] = byte(vif)
	msg[11] = byte(vif >> 8)
	s := netip.MustParseAddr(src).As4()
	g := netip.MustParseAddr(grp).As4()
	copy(msg[12:16], s[:])
	copy(msg[16:20], g[:])
	return append(msg, pkt...)
}

// buildIPv4Packet serializes a UDP datagram from src to grp.
func buildIPv4Packet(t *testing.T, src, grp string, payload []byte) []byte {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      16,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(grp).To4(),
	}
	udp := &layers.UDP{SrcPort: 5000, DstPort: 5001}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestDecodeUpcall(t *testing.T) {
	sg := types.NewSG(netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("224.1.1.1"))
	pkt := buildIPv4Packet(t, "10.0.0.5", "224.1.1.1", []byte("multicast"))

	ordinary := buildUpcall(multicastsyscall.IGMPMSG_NOCACHE, 1, "10.0.0.5", "224.1.1.1", nil)
	ordinary[9] = byte(layers.IPProtocolIGMP)

	// The kernel leaves the source and group of whole packet upcalls unset.
	wholePkt := buildUpcall(multicastsyscall.IGMPMSG_WHOLEPKT, 0, "0.0.0.0", "0.0.0.0", pkt)
	// Bytes beyond the IP total length are not part of the packet.
	padded := buildUpcall(multicastsyscall.IGMPMSG_WRVIFWHOLE, 2, "0.0.0.0", "0.0.0.0", append(append([]byte{}, pkt...), 0xde, 0xad))

	for _, tc := range []struct {
		name           string
		msg            []byte
		wideVIF        bool
		expectedUpcall *upcall
		expectedErr    error
		expectErr      bool
	}{
		{
			name:        "truncated",
			msg:         make([]byte, SizeofIgmpmsg-1),
			expectedErr: errTruncatedUpcall,
			expectErr:   true,
		},
		{
			name: "ordinary packet",
			msg:  ordinary,
		},
		{
			name:           "NOCACHE",
			msg:            buildUpcall(multicastsyscall.IGMPMSG_NOCACHE, 0x0102, "10.0.0.5", "224.1.1.1", nil),
			expectedUpcall: &upcall{Type: upcallNoCache, VIF: 0x02, SG: sg},
		},
		{
			name:           "NOCACHE with wide VIF",
			msg:            buildUpcall(multicastsyscall.IGMPMSG_NOCACHE, 0x0102, "10.0.0.5", "224.1.1.1", nil),
			wideVIF:        true,
			expectedUpcall: &upcall{Type: upcallNoCache, VIF: 0x0102, SG: sg},
		},
		{
			name:           "WRONGVIF",
			msg:            buildUpcall(multicastsyscall.IGMPMSG_WRONGVIF, 3, "10.0.0.5", "224.1.1.1", nil),
			expectedUpcall: &upcall{Type: upcallWrongVIF, VIF: 3, SG: sg},
		},
		{
			name:           "WHOLEPKT",
			msg:            wholePkt,
			expectedUpcall: &upcall{Type: upcallWholePkt, VIF: 0, SG: sg, Packet: pkt},
		},
		{
			name:           "WRVIFWHOLE with trailing bytes",
			msg:            padded,
			expectedUpcall: &upcall{Type: upcallWrVIFWhole, VIF: 2, SG: sg, Packet: pkt},
		},
		{
			name:      "WHOLEPKT with short packet",
			msg:       buildUpcall(multicastsyscall.IGMPMSG_WHOLEPKT, 0, "0.0.0.0", "0.0.0.0", pkt[:10]),
			expectErr: true,
		},
		{
			name:        "WHOLEPKT with truncated payload",
			msg:         buildUpcall(multicastsyscall.IGMPMSG_WHOLEPKT, 0, "0.0.0.0", "0.0.0.0", pkt[:len(pkt)-4]),
			expectedErr: errTruncatedUpcall,
			expectErr:   true,
		},
		{
			name:           "unknown type",
			msg:            buildUpcall(7, 1, "10.0.0.5", "224.1.1.1", nil),
			expectedUpcall: &upcall{Type: 7, VIF: 1, SG: sg},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			u, err := decodeUpcall(tc.msg, tc.wideVIF)
			if tc.expectErr {
				require.Error(t, err)
				if tc.expectedErr != nil {
					assert.ErrorIs(t, err, tc.expectedErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedUpcall, u)
		})
	}
}

func TestDecodeUpcallCopiesPacket(t *testing.T) {
	pkt := buildIPv4Packet(t, "10.0.0.5", "224.1.1.1", []byte("multicast"))
	msg := buildUpcall(multicastsyscall.IGMPMSG_WHOLEPKT, 0, "0.0.0.0", "0.0.0.0", pkt)
	u, err := decodeUpcall(msg, false)
	require.NoError(t, err)
	// The receive buffer is reused for the next upcall.
	for i := range msg {
		msg[i] = 0
	}
	assert.Equal(t, pkt, u.Packet)
}

func TestUpcallTypeString(t *testing.T) {
	assert.Equal(t, "NOCACHE", upcallNoCache.String())
	assert.Equal(t, "WRONGVIF", upcallWrongVIF.String())
	assert.Equal(t, "WHOLEPKT", upcallWholePkt.String())
	assert.Equal(t, "WRVIFWHOLE", upcallWrVIFWhole.String())
	assert.Equal(t, "UNKNOWN", upcallType(0).String())
}
