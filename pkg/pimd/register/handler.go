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

// Package register implements the PIM-SM register machinery: sending
// Registers from the first-hop router, the register-stop state of the
// first-hop router, and the reception of Registers at the RP.
package register

import (
	"errors"
	"net/netip"
	"time"

	"github.com/gopacket/gopacket/layers"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/dukku1/quagga/pkg/pimd/channeloil"
	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/nexthop"
	"github.com/dukku1/quagga/pkg/pimd/pimmsg"
	"github.com/dukku1/quagga/pkg/pimd/pimsock"
	"github.com/dukku1/quagga/pkg/pimd/rp"
	"github.com/dukku1/quagga/pkg/pimd/types"
	"github.com/dukku1/quagga/pkg/pimd/upstream"
)

var (
	ErrInvalidChecksum = errors.New("invalid PIM checksum")
	ErrMalformed       = errors.New("malformed PIM message")
)

type rpResolver interface {
	RP(group netip.Addr) (*rp.RPF, bool)
	RPAddress(group netip.Addr) (netip.Addr, bool)
	IAmRP(group netip.Addr) bool
}

type nexthopResolver interface {
	Lookup(addr netip.Addr) (*nexthop.Nexthop, error)
}

type entryInstaller interface {
	InstallEntry(e *channeloil.Entry) error
}

type registerSender interface {
	SendNullRegister(sg types.SG, rpf *rp.RPF) error
	SendRegisterStop(iface *interfacestore.InterfaceConfig, sg types.SG, originator netip.Addr) error
}

type Config struct {
	KeepAliveTime time.Duration
	// RPKeepAlivePeriod is the keepalive time of flows for which the RP sent
	// a Register-Stop.
	RPKeepAlivePeriod time.Duration
}

// Handler processes the Register and Register-Stop messages received on the
// PIM socket and the expiry of register-stop timers. It must only be used
// from the event loop.
type Handler struct {
	config     Config
	ifaceStore interfacestore.InterfaceStore
	rps        rpResolver
	nexthops   nexthopResolver
	upstreams  *upstream.Table
	oils       *channeloil.Table
	installer  entryInstaller
	sender     registerSender
	clock      clock.PassiveClock
}

func NewHandler(
	config Config,
	ifaceStore interfacestore.InterfaceStore,
	rps rpResolver,
	nexthops nexthopResolver,
	upstreams *upstream.Table,
	oils *channeloil.Table,
	installer entryInstaller,
	sender registerSender,
	clock clock.PassiveClock,
) *Handler {
	h := &Handler{
		config:     config,
		ifaceStore: ifaceStore,
		rps:        rps,
		nexthops:   nexthops,
		upstreams:  upstreams,
		oils:       oils,
		installer:  installer,
		sender:     sender,
		clock:      clock,
	}
	upstreams.OnRegisterStopExpiry(h.registerStopTimerExpired)
	return h
}

// HandleMessage dispatches a received PIM message. Messages other than
// Register and Register-Stop are ignored.
func (h *Handler) HandleMessage(msg *pimsock.Message) error {
	if !pimmsg.ValidChecksum(msg.Payload) {
		return ErrInvalidChecksum
	}
	packet := pimmsg.Decode(msg.Payload)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return errors.Join(ErrMalformed, errLayer.Error())
	}
	pim := packet.Layer(pimmsg.LayerTypePIM).(*pimmsg.PIM)
	switch pim.Type {
	case pimmsg.TypeRegisterStop:
		stop := packet.Layer(pimmsg.LayerTypePIMRegisterStop).(*pimmsg.RegisterStop)
		h.handleRegisterStop(types.NewSG(stop.Source, stop.Group))
		return nil
	case pimmsg.TypeRegister:
		register := packet.Layer(pimmsg.LayerTypePIMRegister).(*pimmsg.Register)
		inner, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if !ok {
			return ErrMalformed
		}
		iface, found := h.ifaceStore.GetInterfaceByIfIndex(msg.IfIndex)
		if !found {
			klog.V(2).InfoS("Received Register on unknown interface", "ifIndex", msg.IfIndex, "src", msg.Src)
			return nil
		}
		src, _ := netip.AddrFromSlice(inner.SrcIP.To4())
		grp, _ := netip.AddrFromSlice(inner.DstIP.To4())
		h.handleRegister(iface, msg.Src, msg.Dst, types.NewSG(src, grp), register)
		return nil
	}
	klog.V(4).InfoS("Ignored PIM message", "type", pim.Type, "src", msg.Src)
	return nil
}

func (h *Handler) reinstall(oil *channeloil.Entry) {
	if !oil.Installed {
		return
	}
	if err := h.installer.InstallEntry(oil); err != nil {
		klog.ErrorS(err, "Failed to update forwarding cache entry", "sg", oil.SG)
	}
}

func (h *Handler) handleRegisterStop(sg types.SG) {
	klog.V(2).InfoS("Received Register-Stop", "sg", sg)
	up, found := h.upstreams.Find(sg)
	if !found {
		return
	}
	switch up.JoinState {
	case upstream.Joined:
		up.JoinState = upstream.Prune
		if oil, found := h.oils.Find(up.OilSG()); found {
			if oil.DelOIF(interfacestore.RegisterVIF, channeloil.OIFFlagProtoPIM) {
				h.reinstall(oil)
			}
		}
		h.upstreams.StartRegisterStopTimer(up, false)
	case upstream.JoinPending:
		up.JoinState = upstream.Prune
		h.upstreams.StartRegisterStopTimer(up, false)
	}
}

func (h *Handler) registerStopTimerExpired(up *upstream.Upstream) {
	switch up.JoinState {
	case upstream.Prune:
		up.JoinState = upstream.JoinPending
		if rpf, ok := h.rps.RP(up.SG.Grp); ok {
			if err := h.sender.SendNullRegister(up.SG, rpf); err != nil {
				klog.ErrorS(err, "Failed to send Null-Register", "sg", up.SG)
			}
		}
		h.upstreams.StartRegisterStopTimer(up, true)
	case upstream.JoinPending:
		up.JoinState = upstream.Joined
		if oil, found := h.oils.Find(up.OilSG()); found {
			if err := oil.AddOIF(interfacestore.RegisterVIF, channeloil.OIFFlagProtoPIM, h.clock.Now()); err == nil {
				h.reinstall(oil)
			}
		}
	}
}

// handleRegister processes a Register received on iface. outerSrc is the
// router which registered and outerDst the address it sent the Register to.
func (h *Handler) handleRegister(iface *interfacestore.InterfaceConfig, outerSrc, outerDst netip.Addr, sg types.SG, register *pimmsg.Register) {
	if _, local := h.ifaceStore.GetInterfaceByIP(outerDst); !local {
		klog.V(2).InfoS("Received Register for an address that is not local", "dst", outerDst, "sg", sg)
		return
	}
	klog.V(2).InfoS("Received Register", "sg", sg, "src", outerSrc, "interface", iface.InterfaceName, "null", register.NullRegister)
	rpAddr, ok := h.rps.RPAddress(sg.Grp)
	if !ok || rpAddr != outerDst || !h.rps.IAmRP(sg.Grp) {
		h.sendRegisterStop(iface, sg, outerSrc)
		return
	}
	if register.Border {
		klog.V(2).InfoS("Register has the border bit set", "sg", sg, "src", outerSrc)
	}
	up, found := h.upstreams.Find(sg)
	if !found {
		var err error
		up, err = h.upstreams.Add(sg, iface)
		if err != nil {
			klog.ErrorS(err, "Failed to create upstream for Register", "sg", sg)
			return
		}
		up.UpstreamRegister = outerSrc
		up.JoinState = upstream.Prune
		if nh, err := h.nexthops.Lookup(sg.Src); err == nil {
			up.RPF.Nexthop = nh.Address
		}
	}
	if up.SPTBit == upstream.SPTBitTrue {
		h.sendRegisterStop(iface, sg, outerSrc)
		h.upstreams.StartKeepAliveTimer(up, h.config.RPKeepAlivePeriod)
		return
	}
	// Inner packets are forwarded by the kernel through the register VIF.
	h.upstreams.StartKeepAliveTimer(up, h.config.KeepAliveTime)
}

func (h *Handler) sendRegisterStop(iface *interfacestore.InterfaceConfig, sg types.SG, originator netip.Addr) {
	if err := h.sender.SendRegisterStop(iface, sg, originator); err != nil {
		klog.ErrorS(err, "Failed to send Register-Stop", "sg", sg, "dst", originator)
	}
}
