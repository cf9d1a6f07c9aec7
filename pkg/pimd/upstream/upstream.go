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

// Package upstream keeps the per-(S,G) upstream state of the PIM-SM router:
// join state, SPT bit, first-hop-router role and the keepalive and
// register-stop timers.
package upstream

import (
	"errors"
	"net/netip"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/tools/cache"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/types"
)

type JoinState uint8

const (
	NotJoined JoinState = iota
	Joined
	// JoinPending and Prune are the register states of a first-hop router
	// after a Register-Stop was received.
	JoinPending
	Prune
)

func (s JoinState) String() string {
	switch s {
	case NotJoined:
		return "NotJoined"
	case Joined:
		return "Joined"
	case JoinPending:
		return "JoinPending"
	case Prune:
		return "Prune"
	}
	return "Unknown"
}

type SPTBit uint8

const (
	SPTBitFalse SPTBit = iota
	SPTBitTrue
)

var ErrNoRPFInterface = errors.New("no RPF interface")

// RPF is the reverse path towards the source of the flow.
type RPF struct {
	Interface *interfacestore.InterfaceConfig
	Nexthop   netip.Addr
}

type Upstream struct {
	SG        types.SG
	JoinState JoinState
	SPTBit    SPTBit
	// FHR is true when this router is the first-hop router of the source and
	// registers its traffic to the RP.
	FHR bool
	RPF RPF
	// UpstreamRegister is the router which sent us Registers for this flow
	// while acting as RP.
	UpstreamRegister netip.Addr
	Created          time.Time

	keepAliveTimer    clock.Timer
	registerStopTimer clock.Timer
}

// OilSG returns the key of the channel oil of the upstream. The channel oil
// table owns the entry.
func (u *Upstream) OilSG() types.SG {
	return u.SG
}

func (u *Upstream) KeepAliveTimerRunning() bool {
	return u.keepAliveTimer != nil
}

func (u *Upstream) RegisterStopTimerRunning() bool {
	return u.registerStopTimer != nil
}

// Scheduler runs timer callbacks on the event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) clock.Timer
	Clock() clock.WithTickerAndDelayedExecution
}

// ExpiryHandler is invoked on the event loop when an upstream timer expires.
type ExpiryHandler func(up *Upstream)

type Config struct {
	RegisterSuppressionTime time.Duration
	RegisterProbeTime       time.Duration
}

// Table owns the upstream state. It must only be used from the event loop.
type Table struct {
	config    Config
	scheduler Scheduler
	upstreams cache.Indexer

	keepAliveExpired    ExpiryHandler
	registerStopExpired ExpiryHandler
}

func NewTable(config Config, scheduler Scheduler) *Table {
	return &Table{
		config:    config,
		scheduler: scheduler,
		upstreams: cache.NewIndexer(upstreamKeyFunc, cache.Indexers{}),
	}
}

func upstreamKeyFunc(obj interface{}) (string, error) {
	return obj.(*Upstream).SG.Key(), nil
}

func (t *Table) OnKeepAliveExpiry(handler ExpiryHandler) {
	t.keepAliveExpired = handler
}

func (t *Table) OnRegisterStopExpiry(handler ExpiryHandler) {
	t.registerStopExpired = handler
}

func (t *Table) Find(sg types.SG) (*Upstream, bool) {
	obj, found, _ := t.upstreams.GetByKey(sg.Key())
	if !found {
		return nil, false
	}
	return obj.(*Upstream), true
}

// Add returns the upstream of sg, creating it with iface as RPF interface if
// it does not exist yet.
func (t *Table) Add(sg types.SG, iface *interfacestore.InterfaceConfig) (*Upstream, error) {
	if up, found := t.Find(sg); found {
		return up, nil
	}
	if iface == nil {
		return nil, ErrNoRPFInterface
	}
	up := &Upstream{
		SG:      sg,
		RPF:     RPF{Interface: iface, Nexthop: sg.Src},
		Created: t.scheduler.Clock().Now(),
	}
	t.upstreams.Add(up)
	klog.V(2).InfoS("Created upstream", "sg", sg, "interface", iface.InterfaceName)
	return up, nil
}

// Delete stops the timers of the upstream of sg and drops it.
func (t *Table) Delete(sg types.SG) {
	up, found := t.Find(sg)
	if !found {
		return
	}
	stopTimer(&up.keepAliveTimer)
	stopTimer(&up.registerStopTimer)
	t.upstreams.Delete(up)
	klog.V(2).InfoS("Deleted upstream", "sg", sg)
}

func (t *Table) List() []*Upstream {
	objs := t.upstreams.List()
	ups := make([]*Upstream, 0, len(objs))
	for _, obj := range objs {
		ups = append(ups, obj.(*Upstream))
	}
	return ups
}

func (t *Table) Len() int {
	return len(t.upstreams.ListKeys())
}

// StartKeepAliveTimer (re)starts the keepalive timer of up.
func (t *Table) StartKeepAliveTimer(up *Upstream, d time.Duration) {
	stopTimer(&up.keepAliveTimer)
	var timer clock.Timer
	timer = t.scheduler.AfterFunc(d, func() {
		// The timer may have been restarted after this callback was queued.
		if up.keepAliveTimer != timer {
			return
		}
		up.keepAliveTimer = nil
		klog.V(2).InfoS("Keepalive timer expired", "sg", up.SG)
		if t.keepAliveExpired != nil {
			t.keepAliveExpired(up)
		}
	})
	up.keepAliveTimer = timer
}

// StartRegisterStopTimer (re)starts the register-stop timer of up. After a
// null Register was sent the timer runs for the probe time, otherwise for a
// randomized suppression period minus the probe time.
func (t *Table) StartRegisterStopTimer(up *Upstream, nullRegister bool) {
	stopTimer(&up.registerStopTimer)
	d := t.config.RegisterProbeTime
	if !nullRegister {
		// Uniformly distributed in [0.5, 1.5] * RegisterSuppressionTime.
		d = wait.Jitter(t.config.RegisterSuppressionTime/2, 2.0) - t.config.RegisterProbeTime
	}
	var timer clock.Timer
	timer = t.scheduler.AfterFunc(d, func() {
		if up.registerStopTimer != timer {
			return
		}
		up.registerStopTimer = nil
		klog.V(2).InfoS("Register-stop timer expired", "sg", up.SG, "joinState", up.JoinState)
		if t.registerStopExpired != nil {
			t.registerStopExpired(up)
		}
	})
	up.registerStopTimer = timer
	klog.V(4).InfoS("Started register-stop timer", "sg", up.SG, "duration", d)
}

func stopTimer(timer *clock.Timer) {
	if *timer != nil {
		(*timer).Stop()
		*timer = nil
	}
}
