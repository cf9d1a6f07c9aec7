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
	"net/netip"
	"strconv"
)

const (
	// PhysicalInterface is used to mark an interface that carries multicast
	// data and PIM control traffic.
	PhysicalInterface InterfaceType = iota
	// RegisterInterface is used to mark the PIM register pseudo-interface.
	// The kernel creates it when a VIF with VIFF_REGISTER is added.
	RegisterInterface
)

// RegisterVIF is the VIF reserved for the register interface. The kernel
// programming path relies on it being 0.
const RegisterVIF uint16 = 0

type InterfaceType uint8

func (t InterfaceType) String() string {
	return strconv.Itoa(int(t))
}

type InterfaceMode uint8

const (
	ModeSparse InterfaceMode = iota
	ModeSSM
)

func (m InterfaceMode) String() string {
	switch m {
	case ModeSparse:
		return "sm"
	case ModeSSM:
		return "ssm"
	}
	return strconv.Itoa(int(m))
}

// PIMConfig is the PIM metadata of an interface. It is nil for interfaces on
// which PIM is not enabled.
type PIMConfig struct {
	Mode InterfaceMode
	// DesignatedRouter is true if this router is the DR on the link. DR
	// election is driven by Hello processing, which only updates this flag.
	DesignatedRouter bool
	// SSMRange is the group range treated as source-specific on this interface
	// regardless of Mode.
	SSMRange netip.Prefix
}

type InterfaceConfig struct {
	Type InterfaceType
	// Unique name of the interface.
	InterfaceName string
	IfIndex       int
	// VIF is the kernel multicast virtual interface index.
	VIF      uint16
	Prefixes []netip.Prefix
	*PIMConfig
}

// InterfaceStore is a service interface to look up the interfaces registered as
// VIFs with the kernel.
type InterfaceStore interface {
	Initialize(interfaces []*InterfaceConfig)
	GetInterfaceByVIF(vif uint16) (*InterfaceConfig, bool)
	GetInterfaceByIfIndex(ifIndex int) (*InterfaceConfig, bool)
	GetInterfaceByIP(ip netip.Addr) (*InterfaceConfig, bool)
}

// NewPhysicalInterface creates InterfaceConfig for a multicast capable
// interface. pim is nil when PIM is not enabled on it.
func NewPhysicalInterface(name string, ifIndex int, vif uint16, prefixes []netip.Prefix, pim *PIMConfig) *InterfaceConfig {
	return &InterfaceConfig{
		Type:          PhysicalInterface,
		InterfaceName: name,
		IfIndex:       ifIndex,
		VIF:           vif,
		Prefixes:      prefixes,
		PIMConfig:     pim,
	}
}

// NewRegisterInterface creates InterfaceConfig for the register interface.
func NewRegisterInterface(name string) *InterfaceConfig {
	return &InterfaceConfig{Type: RegisterInterface, InterfaceName: name, VIF: RegisterVIF}
}

func (c *InterfaceConfig) PIMEnabled() bool {
	return c.PIMConfig != nil
}

// IsDR returns true if PIM is enabled and this router is the DR on the
// interface.
func (c *InterfaceConfig) IsDR() bool {
	return c.PIMConfig != nil && c.PIMConfig.DesignatedRouter
}

// IsSSM returns true if group is handled in source-specific mode on the
// interface.
func (c *InterfaceConfig) IsSSM(group netip.Addr) bool {
	if c.PIMConfig == nil {
		return false
	}
	if c.Mode == ModeSSM {
		return true
	}
	return c.SSMRange.IsValid() && c.SSMRange.Contains(group)
}

// PrimaryAddress returns the first IPv4 address of the interface, or the zero
// Addr for unnumbered interfaces.
func (c *InterfaceConfig) PrimaryAddress() netip.Addr {
	for _, p := range c.Prefixes {
		if p.Addr().Is4() {
			return p.Addr()
		}
	}
	return netip.Addr{}
}

// ConnectedToSource returns true if src is on one of the subnets of the
// interface, or is one of its addresses.
func (c *InterfaceConfig) ConnectedToSource(src netip.Addr) bool {
	for _, p := range c.Prefixes {
		if p.Addr() == src || p.Masked().Contains(src) {
			return true
		}
	}
	return false
}
