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

package ifchannel

import (
	"fmt"
	"net/netip"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/nexthop"
	"github.com/dukku1/quagga/pkg/pimd/pimmsg"
)

type messageSender interface {
	Send(iface *interfacestore.InterfaceConfig, dst netip.Addr, msg []byte) error
}

type nexthopResolver interface {
	Lookup(addr netip.Addr) (*nexthop.Nexthop, error)
}

type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) clock.Timer
}

type AssertConfig struct {
	AssertTime             time.Duration
	AssertOverrideInterval time.Duration
	MetricPreference       uint32
}

// Asserter performs the actions of the (S,G) Assert state machine.
type Asserter struct {
	config    AssertConfig
	scheduler Scheduler
	sender    messageSender
	nexthops  nexthopResolver
}

func NewAsserter(config AssertConfig, scheduler Scheduler, sender messageSender, nexthops nexthopResolver) *Asserter {
	return &Asserter{config: config, scheduler: scheduler, sender: sender, nexthops: nexthops}
}

// sptAssertMetric returns the metric of this router for S on the interface
// of ch.
func (a *Asserter) sptAssertMetric(ch *Channel) (AssertMetric, error) {
	addr := ch.Interface.PrimaryAddress()
	if !addr.IsValid() {
		return AssertMetric{}, fmt.Errorf("interface %s has no address", ch.Interface.InterfaceName)
	}
	nh, err := a.nexthops.Lookup(ch.SG.Src)
	if err != nil {
		return AssertMetric{}, err
	}
	return AssertMetric{
		MetricPreference: a.config.MetricPreference,
		RouteMetric:      nh.Metric,
		Address:          addr,
	}, nil
}

func (a *Asserter) sendAssert(ch *Channel, metric AssertMetric) error {
	msg, err := pimmsg.NewAssert(&pimmsg.Assert{
		Group:            ch.SG.Grp,
		Source:           ch.SG.Src,
		RPTBit:           metric.RPTBit,
		MetricPreference: metric.MetricPreference,
		Metric:           metric.RouteMetric,
	})
	if err != nil {
		return err
	}
	return a.sender.Send(ch.Interface, pimmsg.AllPIMRouters, msg)
}

// AssertActionA1 moves ch to the I-am-Assert-Winner state: it sends an
// Assert, stores this router as winner and starts the assert timer. ch is
// left unchanged on failure.
func (a *Asserter) AssertActionA1(ch *Channel) error {
	metric, err := a.sptAssertMetric(ch)
	if err != nil {
		return fmt.Errorf("failed to compute assert metric for %s on %s: %w", ch.SG, ch.Interface.InterfaceName, err)
	}
	if err := a.sendAssert(ch, metric); err != nil {
		return fmt.Errorf("failed to send Assert for %s on %s: %w", ch.SG, ch.Interface.InterfaceName, err)
	}
	ch.AssertState = AssertIAmWinner
	ch.AssertWinner = metric.Address
	ch.AssertWinnerMetric = metric
	a.startAssertTimer(ch, a.config.AssertTime-a.config.AssertOverrideInterval)
	klog.V(2).InfoS("Became Assert winner", "interface", ch.Interface.InterfaceName, "sg", ch.SG, "metric", metric)
	return nil
}

func (a *Asserter) startAssertTimer(ch *Channel, d time.Duration) {
	if ch.assertTimer != nil {
		ch.assertTimer.Stop()
	}
	var timer clock.Timer
	timer = a.scheduler.AfterFunc(d, func() {
		if ch.assertTimer != timer {
			return
		}
		ch.assertTimer = nil
		a.assertTimerExpired(ch)
	})
	ch.assertTimer = timer
}

func (a *Asserter) assertTimerExpired(ch *Channel) {
	switch ch.AssertState {
	case AssertIAmWinner:
		// A3: refresh the Assert while still the winner.
		if err := a.sendAssert(ch, ch.AssertWinnerMetric); err != nil {
			klog.ErrorS(err, "Failed to refresh Assert", "interface", ch.Interface.InterfaceName, "sg", ch.SG)
		}
		a.startAssertTimer(ch, a.config.AssertTime-a.config.AssertOverrideInterval)
	case AssertIAmLoser:
		// A5: forget the winner.
		ch.AssertState = AssertNoInfo
		ch.AssertWinner = netip.Addr{}
		ch.AssertWinnerMetric = AssertMetric{}
		klog.V(2).InfoS("Assert loser state expired", "interface", ch.Interface.InterfaceName, "sg", ch.SG)
	}
}
