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

// Package mroute keeps the kernel multicast forwarding cache in sync with the
// PIM state and drives that state from the upcalls of the kernel.
package mroute

import (
	"net/netip"
	"sort"
	"time"

	"k8s.io/klog/v2"

	"github.com/dukku1/quagga/pkg/pimd/channeloil"
	"github.com/dukku1/quagga/pkg/pimd/ifchannel"
	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/loop"
	"github.com/dukku1/quagga/pkg/pimd/metrics"
	"github.com/dukku1/quagga/pkg/pimd/nexthop"
	"github.com/dukku1/quagga/pkg/pimd/rp"
	"github.com/dukku1/quagga/pkg/pimd/types"
	"github.com/dukku1/quagga/pkg/pimd/upstream"
)

// recvBufferSize bounds the size of the datagrams read from the mroute
// socket.
const recvBufferSize = 2000

type RPResolver interface {
	RP(group netip.Addr) (*rp.RPF, bool)
}

type NexthopResolver interface {
	Lookup(addr netip.Addr) (*nexthop.Nexthop, error)
}

// RegisterSender sends Registers to the RP and Register-Stops to registering
// routers.
type RegisterSender interface {
	SendRegister(pkt []byte, rpf *rp.RPF) error
	SendRegisterStop(iface *interfacestore.InterfaceConfig, sg types.SG, originator netip.Addr) error
}

type Asserter interface {
	AssertActionA1(ch *ifchannel.Channel) error
}

type Config struct {
	KeepAliveTime time.Duration
	// StatsInterval is the period of the forwarding cache counters refresh.
	StatsInterval time.Duration
}

// Controller processes the kernel upcalls read from the mroute socket. All
// the state it touches is owned by the event loop.
type Controller struct {
	config     Config
	socket     *Socket
	loop       *loop.Loop
	ifaceStore interfacestore.InterfaceStore
	rps        RPResolver
	nexthops   NexthopResolver
	upstreams  *upstream.Table
	oils       *channeloil.Table
	ifChannels *ifchannel.Table
	register   RegisterSender
	asserter   Asserter
}

func NewController(
	config Config,
	socket *Socket,
	l *loop.Loop,
	ifaceStore interfacestore.InterfaceStore,
	rps RPResolver,
	nexthops NexthopResolver,
	upstreams *upstream.Table,
	oils *channeloil.Table,
	ifChannels *ifchannel.Table,
	register RegisterSender,
	asserter Asserter,
) *Controller {
	c := &Controller{
		config:     config,
		socket:     socket,
		loop:       l,
		ifaceStore: ifaceStore,
		rps:        rps,
		nexthops:   nexthops,
		upstreams:  upstreams,
		oils:       oils,
		ifChannels: ifChannels,
		register:   register,
		asserter:   asserter,
	}
	upstreams.OnKeepAliveExpiry(c.keepAliveExpired)
	return c
}

// Run reads upcalls until stopCh is closed or reading fails, and refreshes
// the forwarding cache counters periodically. The socket must be enabled.
func (c *Controller) Run(stopCh <-chan struct{}) {
	klog.InfoS("Starting mroute controller")
	if c.config.StatsInterval > 0 {
		c.loop.Every(c.config.StatsInterval, c.refreshStats, stopCh)
	}
	go c.readUpcalls(stopCh)
	<-stopCh
	klog.InfoS("Stopping mroute controller")
}

// readUpcalls performs one read at a time and waits for the datagram to be
// processed on the loop before reading again. A read error stops it.
func (c *Controller) readUpcalls(stopCh <-chan struct{}) {
	buf := make([]byte, recvBufferSize)
	for {
		n, err := c.socket.Read(buf)
		if err != nil {
			select {
			case <-stopCh:
			default:
				klog.ErrorS(err, "Failed to read from mroute socket, no more upcalls will be processed")
			}
			return
		}
		msg := buf[:n]
		if !c.loop.Call(func() {
			if err := c.HandleMessage(msg); err != nil {
				klog.V(2).InfoS("Ignored kernel upcall", "reason", err)
			}
		}, stopCh) {
			return
		}
	}
}

func (c *Controller) refreshStats() {
	for _, oil := range c.oils.List() {
		if !oil.Installed {
			continue
		}
		if err := c.socket.RefreshCounters(oil); err != nil {
			klog.ErrorS(err, "Failed to refresh forwarding cache counters", "sg", oil.SG)
		}
	}
	metrics.ChannelOilCount.Set(float64(c.oils.Len()))
	metrics.UpstreamCount.Set(float64(c.upstreams.Len()))
}

// keepAliveExpired deletes up and its forwarding cache entry, unless the
// entry forwarded packets since the counters were last refreshed.
func (c *Controller) keepAliveExpired(up *upstream.Upstream) {
	oil, found := c.oils.Find(up.OilSG())
	if found && oil.Installed {
		if err := c.socket.RefreshCounters(oil); err == nil && oil.Counters.PktCnt != oil.Counters.OldPktCnt {
			klog.V(2).InfoS("Flow is still active, restarting keepalive timer", "sg", up.SG)
			c.upstreams.StartKeepAliveTimer(up, c.config.KeepAliveTime)
			return
		}
	}
	if found {
		if err := c.oils.Delete(oil.SG, c.socket); err != nil {
			klog.ErrorS(err, "Failed to delete forwarding cache entry", "sg", oil.SG)
		}
	}
	c.upstreams.Delete(up.SG)
	klog.InfoS("Deleted expired upstream", "sg", up.SG)
}

type MrouteInfo struct {
	Source    string   `json:"source"`
	Group     string   `json:"group"`
	Parent    uint16   `json:"parent"`
	OIFs      []uint16 `json:"oifs"`
	Installed bool     `json:"installed"`
	Packets   uint64   `json:"packets"`
	Bytes     uint64   `json:"bytes"`
	WrongIf   uint64   `json:"wrongIf"`
}

type UpstreamInfo struct {
	Source           string `json:"source"`
	Group            string `json:"group"`
	JoinState        string `json:"joinState"`
	SPTBit           bool   `json:"sptBit"`
	FHR              bool   `json:"fhr"`
	RPFInterface     string `json:"rpfInterface,omitempty"`
	UpstreamRegister string `json:"upstreamRegister,omitempty"`
	KeepAlive        bool   `json:"keepAliveTimer"`
	RegisterStop     bool   `json:"registerStopTimer"`
}

// Mroutes returns the forwarding cache entries sorted by (S,G). It must not
// be called from the event loop.
func (c *Controller) Mroutes(stopCh <-chan struct{}) []MrouteInfo {
	var infos []MrouteInfo
	if !c.loop.Call(func() {
		for _, oil := range c.oils.List() {
			infos = append(infos, MrouteInfo{
				Source:    oil.SG.Src.String(),
				Group:     oil.SG.Grp.String(),
				Parent:    oil.Parent,
				OIFs:      oil.OIFs(),
				Installed: oil.Installed,
				Packets:   oil.Counters.PktCnt,
				Bytes:     oil.Counters.ByteCnt,
				WrongIf:   oil.Counters.WrongIf,
			})
		}
	}, stopCh) {
		return nil
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Group != infos[j].Group {
			return infos[i].Group < infos[j].Group
		}
		return infos[i].Source < infos[j].Source
	})
	return infos
}

// Upstreams returns the upstream state sorted by (S,G). It must not be called
// from the event loop.
func (c *Controller) Upstreams(stopCh <-chan struct{}) []UpstreamInfo {
	var infos []UpstreamInfo
	if !c.loop.Call(func() {
		for _, up := range c.upstreams.List() {
			info := UpstreamInfo{
				Source:       up.SG.Src.String(),
				Group:        up.SG.Grp.String(),
				JoinState:    up.JoinState.String(),
				SPTBit:       up.SPTBit == upstream.SPTBitTrue,
				FHR:          up.FHR,
				KeepAlive:    up.KeepAliveTimerRunning(),
				RegisterStop: up.RegisterStopTimerRunning(),
			}
			if up.RPF.Interface != nil {
				info.RPFInterface = up.RPF.Interface.InterfaceName
			}
			if up.UpstreamRegister.IsValid() {
				info.UpstreamRegister = up.UpstreamRegister.String()
			}
			infos = append(infos, info)
		}
	}, stopCh) {
		return nil
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Group != infos[j].Group {
			return infos[i].Group < infos[j].Group
		}
		return infos[i].Source < infos[j].Source
	})
	return infos
}

// StatusInfo describes the mroute socket and the number of forwarding cache
// updates made through it.
type StatusInfo struct {
	Enabled      bool       `json:"enabled"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	WideVIF      bool       `json:"wideVIF"`
	AddEvents    uint64     `json:"addEvents"`
	LastAddEvent *time.Time `json:"lastAddEvent,omitempty"`
	DelEvents    uint64     `json:"delEvents"`
	LastDelEvent *time.Time `json:"lastDelEvent,omitempty"`
}

// Status returns the state of the mroute socket. It may be called from any
// goroutine.
func (c *Controller) Status() StatusInfo {
	addEvents, lastAdd := c.socket.AddEvents()
	delEvents, lastDel := c.socket.DelEvents()
	return StatusInfo{
		Enabled:      c.socket.Enabled(),
		CreatedAt:    timeOrNil(c.socket.CreatedAt()),
		WideVIF:      c.socket.WideVIF(),
		AddEvents:    addEvents,
		LastAddEvent: timeOrNil(lastAdd),
		DelEvents:    delEvents,
		LastDelEvent: timeOrNil(lastDel),
	}
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
