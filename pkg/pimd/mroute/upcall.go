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
	"bytes"
	"errors"
	"fmt"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/dukku1/quagga/pkg/pimd/types"
	multicastsyscall "github.com/dukku1/quagga/pkg/pimd/util/syscall"
)

type upcallType uint8

const (
	upcallNoCache    upcallType = multicastsyscall.IGMPMSG_NOCACHE
	upcallWrongVIF   upcallType = multicastsyscall.IGMPMSG_WRONGVIF
	upcallWholePkt   upcallType = multicastsyscall.IGMPMSG_WHOLEPKT
	upcallWrVIFWhole upcallType = multicastsyscall.IGMPMSG_WRVIFWHOLE
)

func (t upcallType) String() string {
	switch t {
	case upcallNoCache:
		return "NOCACHE"
	case upcallWrongVIF:
		return "WRONGVIF"
	case upcallWholePkt:
		return "WHOLEPKT"
	case upcallWrVIFWhole:
		return "WRVIFWHOLE"
	}
	return "UNKNOWN"
}

var errTruncatedUpcall = errors.New("kernel upcall is truncated")

// upcall is a kernel upcall decoded from a struct igmpmsg.
type upcall struct {
	Type upcallType
	VIF  uint16
	SG   types.SG
	// Packet is a copy of the original packet, starting with its IP header,
	// for whole packet upcalls.
	Packet []byte
}

/*
struct igmpmsg overlays the IP header of the datagram read from the mroute
socket. im_mbz is at the offset of the IP protocol, which is never zero for a
real IP packet.

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                            unused                             |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                            unused                             |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|  im_msgtype   |    im_mbz     |    im_vif     |   im_vif_hi   |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                            im_src                             |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                            im_dst                             |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

// decodeUpcall decodes msg read from the mroute socket. It returns nil if msg
// is an ordinary IP packet. im_vif_hi is only set by kernels with wideVIF
// support.
func decodeUpcall(msg []byte, wideVIF bool) (*upcall, error) {
	if len(msg) < SizeofIgmpmsg {
		return nil, errTruncatedUpcall
	}
	if msg[9] != 0 {
		return nil, nil
	}
	u := &upcall{
		Type: upcallType(msg[8]),
		VIF:  uint16(msg[10]),
		SG: types.NewSG(
			netip.AddrFrom4([4]byte(msg[12:16])),
			netip.AddrFrom4([4]byte(msg[16:20])),
		),
	}
	if wideVIF {
		u.VIF |= uint16(msg[11]) << 8
	}
	if u.Type == upcallWholePkt || u.Type == upcallWrVIFWhole {
		pkt, sg, err := decodeWholePacket(msg[SizeofIgmpmsg:])
		if err != nil {
			return nil, fmt.Errorf("invalid %s upcall: %w", u.Type, err)
		}
		u.Packet = pkt
		u.SG = sg
	}
	return u, nil
}

// decodeWholePacket returns a copy of the IPv4 packet at the start of b,
// together with its source and destination.
func decodeWholePacket(b []byte) ([]byte, types.SG, error) {
	ip := &layers.IPv4{}
	if err := ip.DecodeFromBytes(b, gopacket.NilDecodeFeedback); err != nil {
		return nil, types.SG{}, err
	}
	if ip.Version != 4 {
		return nil, types.SG{}, fmt.Errorf("unexpected IP version %d", ip.Version)
	}
	n := int(ip.Length)
	if n > len(b) {
		return nil, types.SG{}, errTruncatedUpcall
	}
	src, _ := netip.AddrFromSlice(ip.SrcIP.To4())
	grp, _ := netip.AddrFromSlice(ip.DstIP.To4())
	return bytes.Clone(b[:n]), types.NewSG(src, grp), nil
}
