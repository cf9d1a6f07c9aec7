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

package pimmsg

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

var serializeOptions = gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

func serialize(msgType MessageType, body ...gopacket.SerializableLayer) ([]byte, error) {
	buffer := gopacket.NewSerializeBuffer()
	ls := append([]gopacket.SerializableLayer{&PIM{Type: msgType}}, body...)
	if err := gopacket.SerializeLayers(buffer, serializeOptions, ls...); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// NewRegister builds a Register message encapsulating the multicast packet
// pkt, which starts with its IP header.
func NewRegister(pkt []byte) ([]byte, error) {
	return serialize(TypeRegister, &Register{}, gopacket.Payload(pkt))
}

// NewNullRegister builds a Null-Register for (src, grp). It carries a dummy
// IP header only.
func NewNullRegister(src, grp netip.Addr) ([]byte, error) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      1,
		Protocol: layers.IPProtocol(IPProtocolPIM),
		SrcIP:    net.IP(src.AsSlice()),
		DstIP:    net.IP(grp.AsSlice()),
	}
	return serialize(TypeRegister, &Register{NullRegister: true}, ip)
}

func NewRegisterStop(src, grp netip.Addr) ([]byte, error) {
	return serialize(TypeRegisterStop, &RegisterStop{Group: grp, Source: src})
}

func NewAssert(a *Assert) ([]byte, error) {
	return serialize(TypeAssert, a)
}

// Decode decodes the PIM message msg, which starts with the PIM header.
func Decode(msg []byte) gopacket.Packet {
	return gopacket.NewPacket(msg, LayerTypePIM, gopacket.Default)
}
