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

package register

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/dukku1/quagga/pkg/pimd/channeloil"
	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/loop"
	"github.com/dukku1/quagga/pkg/pimd/nexthop"
	"github.com/dukku1/quagga/pkg/pimd/pimmsg"
	"github.com/dukku1/quagga/pkg/pimd/pimsock"
	"github.com/dukku1/quagga/pkg/pimd/rp"
	"github.com/dukku1/quagga/pkg/pimd/types"
	"github.com/dukku1/quagga/pkg/pimd/upstream"
)

var (
	sg       = types.NewSG(netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("224.1.1.1"))
	rpAddr   = netip.MustParseAddr("192.168.0.1")
	fhrAddr  = netip.MustParseAddr("172.16.0.2")
	eth0     = interfacestore.NewPhysicalInterface("eth0", 2, 1, []netip.Prefix{netip.MustParsePrefix("10.0.0.1/24")}, &interfacestore.PIMConfig{DesignatedRouter: true})
	eth1     = interfacestore.NewPhysicalInterface("eth1", 3, 2, []netip.Prefix{netip.MustParsePrefix("192.168.0.1/24"), netip.MustParsePrefix("172.16.0.1/24")}, &interfacestore.PIMConfig{DesignatedRouter: true})
	testConf = Config{KeepAliveTime: 210 * time.Second, RPKeepAlivePeriod: 185 * time.Second}
)

type fakeRPs struct {
	rp    netip.Addr
	iAmRP bool
}

func (r *fakeRPs) RP(group netip.Addr) (*rp.RPF, bool) {
	if !r.rp.IsValid() {
		return nil, false
	}
	return &rp.RPF{Address: r.rp, Nexthop: &nexthop.Nexthop{Interface: eth1, Address: r.rp}}, true
}

func (r *fakeRPs) RPAddress(group netip.Addr) (netip.Addr, bool) {
	return r.rp, r.rp.IsValid()
}

func (r *fakeRPs) IAmRP(group netip.Addr) bool {
	return r.iAmRP
}

type fakeNexthops struct{}

func (n *fakeNexthops) Lookup(addr netip.Addr) (*nexthop.Nexthop, error) {
	return &nexthop.Nexthop{Interface: eth1, Address: fhrAddr}, nil
}

type fakeInstaller struct {
	installed []types.SG
}

func (i *fakeInstaller) InstallEntry(e *channeloil.Entry) error {
	i.installed = append(i.installed, e.SG)
	e.Installed = true
	return nil
}

type registerStop struct {
	iface      string
	sg         types.SG
	originator netip.Addr
}

type fakeSender struct {
	nullRegisters []types.SG
	registerStops []registerStop
}

func (s *fakeSender) SendNullRegister(sg types.SG, rpf *rp.RPF) error {
	s.nullRegisters = append(s.nullRegisters, sg)
	return nil
}

func (s *fakeSender) SendRegisterStop(iface *interfacestore.InterfaceConfig, sg types.SG, originator netip.Addr) error {
	s.registerStops = append(s.registerStops, registerStop{iface: iface.InterfaceName, sg: sg, originator: originator})
	return nil
}

type testHandler struct {
	*Handler
	loop      *loop.Loop
	clock     *clocktesting.FakeClock
	rps       *fakeRPs
	installer *fakeInstaller
	sender    *fakeSender
}

func newTestHandler(t *testing.T) *testHandler {
	fakeClock := clocktesting.NewFakeClock(time.Now())
	l := loop.New(fakeClock)
	stopCh := make(chan struct{})
	t.Cleanup(func() { close(stopCh) })
	go l.Run(stopCh)

	ifaceStore := interfacestore.NewInterfaceStore()
	ifaceStore.Initialize([]*interfacestore.InterfaceConfig{interfacestore.NewRegisterInterface("pimreg"), eth0, eth1})
	upstreams := upstream.NewTable(upstream.Config{RegisterSuppressionTime: 60 * time.Second, RegisterProbeTime: 5 * time.Second}, l)
	h := &testHandler{
		loop:      l,
		clock:     fakeClock,
		rps:       &fakeRPs{rp: rpAddr},
		installer: &fakeInstaller{},
		sender:    &fakeSender{},
	}
	h.Handler = NewHandler(testConf, ifaceStore, h.rps, &fakeNexthops{}, upstreams, channeloil.NewTable(), h.installer, h.sender, fakeClock)
	return h
}

// fhrState creates the state of a first-hop router which registers sg.
func (h *testHandler) fhrState(t *testing.T, joinState upstream.JoinState) (*upstream.Upstream, *channeloil.Entry) {
	up, err := h.upstreams.Add(sg, eth0)
	require.NoError(t, err)
	up.FHR = true
	up.JoinState = joinState
	oil := h.oils.Add(sg, eth0.VIF)
	require.NoError(t, oil.AddOIF(interfacestore.RegisterVIF, channeloil.OIFFlagProtoPIM, h.clock.Now()))
	oil.Installed = true
	return up, oil
}

func registerStopMessage(t *testing.T) *pimsock.Message {
	payload, err := pimmsg.NewRegisterStop(sg.Src, sg.Grp)
	require.NoError(t, err)
	return &pimsock.Message{Payload: payload, Src: rpAddr, Dst: eth0.PrimaryAddress(), IfIndex: eth0.IfIndex}
}

func registerMessage(t *testing.T, dst netip.Addr) *pimsock.Message {
	buffer := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buffer, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		&layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IP(sg.Src.AsSlice()),
			DstIP:    net.IP(sg.Grp.AsSlice()),
		},
		&layers.UDP{SrcPort: 5000, DstPort: 5001},
		gopacket.Payload([]byte{1, 2, 3, 4}),
	))
	payload, err := pimmsg.NewRegister(buffer.Bytes())
	require.NoError(t, err)
	return &pimsock.Message{Payload: payload, Src: fhrAddr, Dst: dst, IfIndex: eth1.IfIndex}
}

func TestHandleRegisterStop(t *testing.T) {
	for _, tc := range []struct {
		name              string
		joinState         upstream.JoinState
		expectedJoinState upstream.JoinState
		expectedTimer     bool
		expectedRegVIF    bool
		expectedInstalls  int
	}{
		{
			name:              "joined",
			joinState:         upstream.Joined,
			expectedJoinState: upstream.Prune,
			expectedTimer:     true,
			expectedInstalls:  1,
		},
		{
			name:              "join pending",
			joinState:         upstream.JoinPending,
			expectedJoinState: upstream.Prune,
			expectedTimer:     true,
			expectedRegVIF:    true,
		},
		{
			name:              "not joined",
			joinState:         upstream.NotJoined,
			expectedJoinState: upstream.NotJoined,
			expectedRegVIF:    true,
		},
		{
			name:              "prune",
			joinState:         upstream.Prune,
			expectedJoinState: upstream.Prune,
			expectedRegVIF:    true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t)
			h.loop.Call(func() {
				up, oil := h.fhrState(t, tc.joinState)
				require.NoError(t, h.HandleMessage(registerStopMessage(t)))
				assert.Equal(t, tc.expectedJoinState, up.JoinState)
				assert.Equal(t, tc.expectedTimer, up.RegisterStopTimerRunning())
				assert.Equal(t, tc.expectedRegVIF, oil.HasOIF(interfacestore.RegisterVIF))
				assert.Len(t, h.installer.installed, tc.expectedInstalls)
			}, nil)
		})
	}
}

func TestHandleRegisterStopUnknownUpstream(t *testing.T) {
	h := newTestHandler(t)
	h.loop.Call(func() {
		require.NoError(t, h.HandleMessage(registerStopMessage(t)))
		assert.Equal(t, 0, h.upstreams.Len())
	}, nil)
}

func TestRegisterStopTimerExpiry(t *testing.T) {
	h := newTestHandler(t)
	var up *upstream.Upstream
	var oil *channeloil.Entry
	h.loop.Call(func() {
		up, oil = h.fhrState(t, upstream.Joined)
		require.NoError(t, h.HandleMessage(registerStopMessage(t)))
	}, nil)

	joinState := func() upstream.JoinState {
		var s upstream.JoinState
		h.loop.Call(func() { s = up.JoinState }, nil)
		return s
	}
	// The suppression period is at most 1.5 * 60s - 5s.
	h.clock.Step(85 * time.Second)
	require.Eventually(t, func() bool { return joinState() == upstream.JoinPending }, time.Second, 10*time.Millisecond)
	h.loop.Call(func() {
		assert.Equal(t, []types.SG{sg}, h.sender.nullRegisters)
		assert.True(t, up.RegisterStopTimerRunning())
		assert.False(t, oil.HasOIF(interfacestore.RegisterVIF))
	}, nil)

	h.clock.Step(5 * time.Second)
	require.Eventually(t, func() bool { return joinState() == upstream.Joined }, time.Second, 10*time.Millisecond)
	h.loop.Call(func() {
		assert.True(t, oil.HasOIF(interfacestore.RegisterVIF))
		assert.Equal(t, []types.SG{sg, sg}, h.installer.installed)
	}, nil)
}

func TestHandleRegister(t *testing.T) {
	for _, tc := range []struct {
		name                  string
		dst                   netip.Addr
		iAmRP                 bool
		sptBit                bool
		expectedRegisterStops []registerStop
		expectedUpstream      bool
	}{
		{
			name:             "at the RP",
			dst:              rpAddr,
			iAmRP:            true,
			expectedUpstream: true,
		},
		{
			name:                  "at the RP with SPT bit set",
			dst:                   rpAddr,
			iAmRP:                 true,
			sptBit:                true,
			expectedRegisterStops: []registerStop{{iface: "eth1", sg: sg, originator: fhrAddr}},
			expectedUpstream:      true,
		},
		{
			name:                  "not the RP",
			dst:                   netip.MustParseAddr("172.16.0.1"),
			expectedRegisterStops: []registerStop{{iface: "eth1", sg: sg, originator: fhrAddr}},
		},
		{
			name: "not a local address",
			dst:  netip.MustParseAddr("192.168.0.100"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t)
			h.rps.iAmRP = tc.iAmRP
			h.loop.Call(func() {
				if tc.sptBit {
					up, err := h.upstreams.Add(sg, eth1)
					require.NoError(t, err)
					up.SPTBit = upstream.SPTBitTrue
				}
				require.NoError(t, h.HandleMessage(registerMessage(t, tc.dst)))
				assert.Equal(t, tc.expectedRegisterStops, h.sender.registerStops)
				up, found := h.upstreams.Find(sg)
				require.Equal(t, tc.expectedUpstream, found)
				if !found {
					return
				}
				assert.True(t, up.KeepAliveTimerRunning())
				if !tc.sptBit {
					assert.Equal(t, fhrAddr, up.UpstreamRegister)
					assert.Equal(t, upstream.Prune, up.JoinState)
					assert.Equal(t, eth1, up.RPF.Interface)
				}
			}, nil)
		})
	}
}

func TestHandleMessageErrors(t *testing.T) {
	h := newTestHandler(t)
	msg := registerStopMessage(t)
	msg.Payload[2] ^= 0xff
	assert.ErrorIs(t, h.HandleMessage(msg), ErrInvalidChecksum)

	// A Hello is ignored.
	hello := []byte{0x20, 0x00, 0xdf, 0xff}
	assert.NoError(t, h.HandleMessage(&pimsock.Message{Payload: hello}))
}
