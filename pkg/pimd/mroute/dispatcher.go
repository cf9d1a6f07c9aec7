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
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/dukku1/quagga/pkg/pimd/channeloil"
	"github.com/dukku1/quagga/pkg/pimd/ifchannel"
	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/metrics"
	"github.com/dukku1/quagga/pkg/pimd/types"
	"github.com/dukku1/quagga/pkg/pimd/upstream"
)

// HandleMessage processes one datagram read from the mroute socket. It must
// run on the event loop. The returned error only describes why an upcall
// was ignored, it is never fatal.
func (c *Controller) HandleMessage(buf []byte) error {
	msg, err := decodeUpcall(buf, c.socket.WideVIF())
	if err != nil {
		return err
	}
	if msg == nil {
		klog.V(4).InfoS("Ignored datagram which is not a kernel upcall", "length", len(buf))
		return nil
	}
	// A nil interface is passed on to the handlers.
	iface, _ := c.ifaceStore.GetInterfaceByVIF(msg.VIF)
	metrics.MrouteUpcalls.WithLabelValues(msg.Type.String()).Inc()
	klog.V(2).InfoS("Received kernel upcall", "type", msg.Type, "sg", msg.SG, "vif", msg.VIF)

	switch msg.Type {
	case upcallNoCache:
		return c.handleNoCache(iface, msg.SG)
	case upcallWrongVIF:
		return c.handleWrongVIF(iface, msg.SG)
	case upcallWholePkt:
		return c.handleWholePkt(msg.SG, msg.Packet)
	case upcallWrVIFWhole:
		return c.handleWrVIFWhole(iface, msg.SG, msg.Packet)
	}
	return nil
}

// canRegister returns true if the DR iface has to register the traffic of sg
// to the RP.
func (c *Controller) canRegister(iface *interfacestore.InterfaceConfig, sg types.SG) bool {
	if _, ok := c.rps.RP(sg.Grp); !ok {
		return false
	}
	return iface != nil && iface.IsDR() && !iface.IsSSM(sg.Grp)
}

// becomeFHR makes up register the traffic of its source to the RP through
// the register VIF.
func (c *Controller) becomeFHR(up *upstream.Upstream, oil *channeloil.Entry) bool {
	c.upstreams.StartKeepAliveTimer(up, c.config.KeepAliveTime)
	oil.Counters.PktCnt++
	up.FHR = true
	changed := !oil.HasOIF(interfacestore.RegisterVIF)
	if err := oil.AddOIF(interfacestore.RegisterVIF, channeloil.OIFFlagProtoPIM, c.loop.Clock().Now()); err != nil {
		klog.ErrorS(err, "Failed to add register VIF", "sg", up.SG)
	}
	up.JoinState = upstream.Joined
	return changed
}

// handleNoCache creates the state of a first-hop router when a directly
// connected source starts sending. The entry is installed once its outgoing
// interfaces are known.
func (c *Controller) handleNoCache(iface *interfacestore.InterfaceConfig, sg types.SG) error {
	if !c.canRegister(iface, sg) {
		return nil
	}
	if !iface.ConnectedToSource(sg.Src) {
		klog.V(4).InfoS("Received packet which does not originate from a connected source", "sg", sg, "interface", iface.InterfaceName)
		return nil
	}
	oil := c.oils.Add(sg, iface.VIF)
	up, err := c.upstreams.Add(sg, iface)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamCreateFailed, err)
	}
	c.becomeFHR(up, oil)
	klog.V(2).InfoS("Added first-hop router state", "sg", sg, "interface", iface.InterfaceName)
	return nil
}

// handleWholePkt encapsulates pkt in a Register to the RP unless the RP asked
// to stop registering.
func (c *Controller) handleWholePkt(sg types.SG, pkt []byte) error {
	up, found := c.upstreams.Find(sg)
	if !found {
		klog.V(4).InfoS("Unable to find upstream for whole packet", "sg", sg)
		return nil
	}
	if !c.canRegister(up.RPF.Interface, sg) {
		klog.V(2).InfoS("Not registering packet", "sg", sg)
		return nil
	}
	if up.RegisterStopTimerRunning() {
		return nil
	}
	rpf, _ := c.rps.RP(sg.Grp)
	if err := c.register.SendRegister(pkt, rpf); err != nil {
		return fmt.Errorf("failed to send Register for %s: %w", sg, err)
	}
	return nil
}

// handleWrongVIF sends an Assert when sg arrives on a downstream interface,
// see RFC 4601 4.6.1.
func (c *Controller) handleWrongVIF(iface *interfacestore.InterfaceConfig, sg types.SG) error {
	if iface == nil {
		return ErrNoInterface
	}
	if !iface.PIMEnabled() {
		return ErrPimNotEnabled
	}
	ch, found := c.ifChannels.Find(iface.InterfaceName, sg)
	if !found {
		return ErrChannelNotFound
	}
	if ch.AssertState != ifchannel.AssertNoInfo {
		return ErrNotInAssertNoInfo
	}
	if !ch.CouldAssert() {
		return ErrNotDownstream
	}
	if err := c.asserter.AssertActionA1(ch); err != nil {
		return fmt.Errorf("%w: %w", ErrAssertActionFailed, err)
	}
	metrics.AssertTriggered.Inc()
	return nil
}

// handleWrVIFWhole handles a packet which arrived on a VIF which is not the
// incoming VIF of its entry. At the RP it switches the flow to the shortest
// path tree, at a first-hop router it registers the first packet right away.
func (c *Controller) handleWrVIFWhole(iface *interfacestore.InterfaceConfig, sg types.SG, pkt []byte) error {
	if iface == nil {
		return ErrNoInterface
	}
	if _, found := c.ifChannels.Find(iface.InterfaceName, sg); found {
		return ErrAlreadyHasChannel
	}
	if up, found := c.upstreams.Find(sg); found {
		// A first-hop router receives these while the register VIF owns the
		// entry.
		if !up.FHR {
			c.switchToSPT(iface, up)
		}
		return nil
	}

	oil := c.oils.Add(sg, iface.VIF)
	if !oil.Installed {
		c.install(oil)
	}
	if !iface.ConnectedToSource(sg.Src) {
		return nil
	}
	up, err := c.upstreams.Add(sg, iface)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamCreateFailed, err)
	}
	changed := c.becomeFHR(up, oil)
	if c.updateInheritedOlist(up, oil) || changed {
		c.install(oil)
	}
	return c.handleWholePkt(sg, pkt)
}

// switchToSPT stops the registering of sg at the RP and forwards it natively.
func (c *Controller) switchToSPT(iface *interfacestore.InterfaceConfig, up *upstream.Upstream) {
	sg := up.SG
	if up.UpstreamRegister.IsValid() {
		if nh, err := c.nexthops.Lookup(up.UpstreamRegister); err != nil {
			klog.ErrorS(err, "Failed to look up next hop of registering router", "sg", sg, "router", up.UpstreamRegister)
		} else if err := c.register.SendRegisterStop(nh.Interface, sg, up.UpstreamRegister); err != nil {
			klog.ErrorS(err, "Failed to send Register-Stop", "sg", sg, "router", up.UpstreamRegister)
		}
	}
	oil, found := c.oils.Find(up.OilSG())
	if !found {
		parent := iface.VIF
		if rpf, ok := c.rps.RP(sg.Grp); ok && rpf.Interface() != nil {
			parent = rpf.Interface().VIF
		}
		oil = c.oils.Add(sg, parent)
	}
	if !oil.Installed {
		c.install(oil)
	}
	up.SPTBit = upstream.SPTBitTrue
	klog.V(2).InfoS("Switched to shortest path tree", "sg", sg)
}

// updateInheritedOlist makes the outgoing interfaces added by PIM match the
// interfaces which joined sg and did not lose the Assert for it. It returns
// true if the outgoing interfaces changed.
func (c *Controller) updateInheritedOlist(up *upstream.Upstream, oil *channeloil.Entry) bool {
	desired := sets.New[uint16]()
	current := sets.New[uint16]()
	for _, ch := range c.ifChannels.BySG(up.SG) {
		vif := ch.Interface.VIF
		if vif == oil.Parent {
			continue
		}
		if oil.OIFFlags[vif]&channeloil.OIFFlagProtoPIM != 0 {
			current.Insert(vif)
		}
		if ch.AssertState == ifchannel.AssertIAmLoser {
			continue
		}
		if ch.JoinState == ifchannel.JoinJoin || (ch.AssertState == ifchannel.AssertIAmWinner && ch.CouldAssert()) {
			desired.Insert(vif)
		}
	}
	now := c.loop.Clock().Now()
	for vif := range desired.Difference(current) {
		if err := oil.AddOIF(vif, channeloil.OIFFlagProtoPIM, now); err != nil {
			klog.ErrorS(err, "Failed to add outgoing interface", "sg", up.SG, "vif", vif)
		}
	}
	for vif := range current.Difference(desired) {
		oil.DelOIF(vif, channeloil.OIFFlagProtoPIM)
	}
	return !desired.Equal(current)
}

func (c *Controller) install(oil *channeloil.Entry) {
	if err := c.socket.InstallEntry(oil); err != nil {
		klog.ErrorS(err, "Failed to install forwarding cache entry", "sg", oil.SG)
	}
}
