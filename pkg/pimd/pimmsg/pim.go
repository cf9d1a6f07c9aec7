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

// Package pimmsg implements PIMv2 message encoding and decoding as gopacket
// layers. Only the messages exchanged by the register and assert machinery
// are supported.
package pimmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"gvisor.dev/gvisor/pkg/tcpip/checksum"
)

const (
	// IPProtocolPIM is the IP protocol number of PIM.
	IPProtocolPIM = 103
	Version       = 2

	headerLen         = 4
	registerHeaderLen = 4
	encodedUnicastLen = 6
	encodedGroupLen   = 8

	addressFamilyIPv4 = 1
	nativeEncoding    = 0

	registerBorderBit = 0x80000000
	registerNullBit   = 0x40000000
	assertRPTBit      = 0x80000000
)

// AllPIMRouters is the destination of multicast PIM messages.
var AllPIMRouters = netip.MustParseAddr("224.0.0.13")

type MessageType uint8

const (
	TypeHello        MessageType = 0
	TypeRegister     MessageType = 1
	TypeRegisterStop MessageType = 2
	TypeJoinPrune    MessageType = 3
	TypeBootstrap    MessageType = 4
	TypeAssert       MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case TypeHello:
		return "Hello"
	case TypeRegister:
		return "Register"
	case TypeRegisterStop:
		return "RegisterStop"
	case TypeJoinPrune:
		return "JoinPrune"
	case TypeBootstrap:
		return "Bootstrap"
	case TypeAssert:
		return "Assert"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

var (
	LayerTypePIM = gopacket.RegisterLayerType(1666, gopacket.LayerTypeMetadata{
		Name: "PIM", Decoder: gopacket.DecodeFunc(decodePIM)})
	LayerTypePIMRegister = gopacket.RegisterLayerType(1667, gopacket.LayerTypeMetadata{
		Name: "PIMRegister", Decoder: gopacket.DecodeFunc(decodeRegister)})
	LayerTypePIMRegisterStop = gopacket.RegisterLayerType(1668, gopacket.LayerTypeMetadata{
		Name: "PIMRegisterStop", Decoder: gopacket.DecodeFunc(decodeRegisterStop)})
	LayerTypePIMAssert = gopacket.RegisterLayerType(1669, gopacket.LayerTypeMetadata{
		Name: "PIMAssert", Decoder: gopacket.DecodeFunc(decodeAssert)})
)

var errTruncated = errors.New("PIM message is truncated")

/*
PIM Common Header

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|PIM Ver| Type  |   Reserved    |           Checksum            |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type PIM struct {
	layers.BaseLayer
	Version  uint8
	Type     MessageType
	Checksum uint16
}

func (p *PIM) LayerType() gopacket.LayerType { return LayerTypePIM }

func (p *PIM) CanDecode() gopacket.LayerClass { return LayerTypePIM }

func (p *PIM) NextLayerType() gopacket.LayerType {
	switch p.Type {
	case TypeRegister:
		return LayerTypePIMRegister
	case TypeRegisterStop:
		return LayerTypePIMRegisterStop
	case TypeAssert:
		return LayerTypePIMAssert
	}
	return gopacket.LayerTypePayload
}

func (p *PIM) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < headerLen {
		df.SetTruncated()
		return errTruncated
	}
	p.Version = data[0] >> 4
	p.Type = MessageType(data[0] & 0x0f)
	p.Checksum = binary.BigEndian.Uint16(data[2:4])
	if p.Version != Version {
		return fmt.Errorf("unsupported PIM version %d", p.Version)
	}
	p.BaseLayer = layers.BaseLayer{Contents: data[:headerLen], Payload: data[headerLen:]}
	return nil
}

// SerializeTo prepends the common header. It must be serialized after the
// message body, which is already in b.
func (p *PIM) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(headerLen)
	if err != nil {
		return err
	}
	bytes[0] = Version<<4 | uint8(p.Type)&0x0f
	bytes[1] = 0
	binary.BigEndian.PutUint16(bytes[2:4], p.Checksum)
	if opts.ComputeChecksums {
		binary.BigEndian.PutUint16(bytes[2:4], 0)
		p.Checksum = computeChecksum(p.Type, b.Bytes())
		binary.BigEndian.PutUint16(bytes[2:4], p.Checksum)
	}
	return nil
}

func decodePIM(data []byte, p gopacket.PacketBuilder) error {
	pim := &PIM{}
	if err := pim.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(pim)
	return p.NextDecoder(pim.NextLayerType())
}

// The checksum of a Register only covers the PIM header and the Register
// header, not the encapsulated packet.
func computeChecksum(t MessageType, msg []byte) uint16 {
	if t == TypeRegister && len(msg) > headerLen+registerHeaderLen {
		msg = msg[:headerLen+registerHeaderLen]
	}
	return ^checksum.Checksum(msg, 0)
}

// ValidChecksum verifies the checksum of the PIM message msg. Some
// implementations compute the checksum of a Register over the whole message,
// which is accepted as well.
func ValidChecksum(msg []byte) bool {
	if len(msg) < headerLen {
		return false
	}
	t := MessageType(msg[0] & 0x0f)
	if checksum.Checksum(msg, 0) == 0xffff {
		return true
	}
	return t == TypeRegister && len(msg) >= headerLen+registerHeaderLen &&
		checksum.Checksum(msg[:headerLen+registerHeaderLen], 0) == 0xffff
}

/*
Register

	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|B|N|                       Reserved2                           |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                                                               |
	.                     Multicast data packet                     .
	|                                                               |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type Register struct {
	layers.BaseLayer
	Border       bool
	NullRegister bool
}

func (r *Register) LayerType() gopacket.LayerType { return LayerTypePIMRegister }

func (r *Register) CanDecode() gopacket.LayerClass { return LayerTypePIMRegister }

func (r *Register) NextLayerType() gopacket.LayerType { return layers.LayerTypeIPv4 }

func (r *Register) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < registerHeaderLen {
		df.SetTruncated()
		return errTruncated
	}
	bits := binary.BigEndian.Uint32(data[:4])
	r.Border = bits&registerBorderBit != 0
	r.NullRegister = bits&registerNullBit != 0
	r.BaseLayer = layers.BaseLayer{Contents: data[:registerHeaderLen], Payload: data[registerHeaderLen:]}
	return nil
}

func (r *Register) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(registerHeaderLen)
	if err != nil {
		return err
	}
	var bits uint32
	if r.Border {
		bits |= registerBorderBit
	}
	if r.NullRegister {
		bits |= registerNullBit
	}
	binary.BigEndian.PutUint32(bytes, bits)
	return nil
}

func decodeRegister(data []byte, p gopacket.PacketBuilder) error {
	r := &Register{}
	if err := r.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(r)
	return p.NextDecoder(r.NextLayerType())
}

/*
Register-Stop

	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|             Group Address (Encoded-Group format)              |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|            Source Address (Encoded-Unicast format)            |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type RegisterStop struct {
	layers.BaseLayer
	Group  netip.Addr
	Source netip.Addr
}

func (r *RegisterStop) LayerType() gopacket.LayerType { return LayerTypePIMRegisterStop }

func (r *RegisterStop) CanDecode() gopacket.LayerClass { return LayerTypePIMRegisterStop }

func (r *RegisterStop) NextLayerType() gopacket.LayerType { return gopacket.LayerTypeZero }

func (r *RegisterStop) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < encodedGroupLen+encodedUnicastLen {
		df.SetTruncated()
		return errTruncated
	}
	var err error
	if r.Group, err = decodeEncodedGroup(data); err != nil {
		return err
	}
	if r.Source, err = decodeEncodedUnicast(data[encodedGroupLen:]); err != nil {
		return err
	}
	n := encodedGroupLen + encodedUnicastLen
	r.BaseLayer = layers.BaseLayer{Contents: data[:n], Payload: data[n:]}
	return nil
}

func (r *RegisterStop) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(encodedGroupLen + encodedUnicastLen)
	if err != nil {
		return err
	}
	if err := encodeGroup(bytes, r.Group); err != nil {
		return err
	}
	return encodeUnicast(bytes[encodedGroupLen:], r.Source)
}

func decodeRegisterStop(data []byte, p gopacket.PacketBuilder) error {
	r := &RegisterStop{}
	if err := r.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(r)
	return nil
}

/*
Assert

	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|            Group Address (Encoded-Group format)               |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|            Source Address (Encoded-Unicast format)            |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|R|                     Metric Preference                       |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                             Metric                            |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type Assert struct {
	layers.BaseLayer
	Group            netip.Addr
	Source           netip.Addr
	RPTBit           bool
	MetricPreference uint32
	Metric           uint32
}

const assertLen = encodedGroupLen + encodedUnicastLen + 8

func (a *Assert) LayerType() gopacket.LayerType { return LayerTypePIMAssert }

func (a *Assert) CanDecode() gopacket.LayerClass { return LayerTypePIMAssert }

func (a *Assert) NextLayerType() gopacket.LayerType { return gopacket.LayerTypeZero }

func (a *Assert) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < assertLen {
		df.SetTruncated()
		return errTruncated
	}
	var err error
	if a.Group, err = decodeEncodedGroup(data); err != nil {
		return err
	}
	if a.Source, err = decodeEncodedUnicast(data[encodedGroupLen:]); err != nil {
		return err
	}
	metrics := data[encodedGroupLen+encodedUnicastLen:]
	pref := binary.BigEndian.Uint32(metrics[0:4])
	a.RPTBit = pref&assertRPTBit != 0
	a.MetricPreference = pref &^ assertRPTBit
	a.Metric = binary.BigEndian.Uint32(metrics[4:8])
	a.BaseLayer = layers.BaseLayer{Contents: data[:assertLen], Payload: data[assertLen:]}
	return nil
}

func (a *Assert) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(assertLen)
	if err != nil {
		return err
	}
	if err := encodeGroup(bytes, a.Group); err != nil {
		return err
	}
	if err := encodeUnicast(bytes[encodedGroupLen:], a.Source); err != nil {
		return err
	}
	metrics := bytes[encodedGroupLen+encodedUnicastLen:]
	pref := a.MetricPreference &^ assertRPTBit
	if a.RPTBit {
		pref |= assertRPTBit
	}
	binary.BigEndian.PutUint32(metrics[0:4], pref)
	binary.BigEndian.PutUint32(metrics[4:8], a.Metric)
	return nil
}

func decodeAssert(data []byte, p gopacket.PacketBuilder) error {
	a := &Assert{}
	if err := a.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(a)
	return nil
}

func encodeUnicast(b []byte, addr netip.Addr) error {
	if !addr.Is4() {
		return fmt.Errorf("unsupported address %s", addr)
	}
	b[0] = addressFamilyIPv4
	b[1] = nativeEncoding
	a4 := addr.As4()
	copy(b[2:6], a4[:])
	return nil
}

func encodeGroup(b []byte, group netip.Addr) error {
	if !group.Is4() {
		return fmt.Errorf("unsupported group address %s", group)
	}
	b[0] = addressFamilyIPv4
	b[1] = nativeEncoding
	b[2] = 0
	b[3] = 32
	a4 := group.As4()
	copy(b[4:8], a4[:])
	return nil
}

func decodeEncodedUnicast(b []byte) (netip.Addr, error) {
	if b[0] != addressFamilyIPv4 || b[1] != nativeEncoding {
		return netip.Addr{}, fmt.Errorf("unsupported encoded unicast address family %d type %d", b[0], b[1])
	}
	return netip.AddrFrom4([4]byte(b[2:6])), nil
}

func decodeEncodedGroup(b []byte) (netip.Addr, error) {
	if b[0] != addressFamilyIPv4 || b[1] != nativeEncoding {
		return netip.Addr{}, fmt.Errorf("unsupported encoded group address family %d type %d", b[0], b[1])
	}
	if b[3] != 32 {
		return netip.Addr{}, fmt.Errorf("unsupported group mask length %d", b[3])
	}
	return netip.AddrFrom4([4]byte(b[4:8])), nil
}
