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

// Package ifchannel keeps the per-interface (S,G) state, the "interface
// channel", which holds the downstream join state and the Assert state
// machine of an interface.
package ifchannel

import (
	"net/netip"

	"k8s.io/client-go/tools/cache"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/types"
)

const sgIndexName = "sg"

type AssertState uint8

const (
	AssertNoInfo AssertState = iota
	AssertIAmWinner
	AssertIAmLoser
)

func (s AssertState) String() string {
	switch s {
	case AssertNoInfo:
		return "NoInfo"
	case AssertIAmWinner:
		return "Winner"
	case AssertIAmLoser:
		return "Loser"
	}
	return "Unknown"
}

type JoinState uint8

const (
	JoinNoInfo JoinState = iota
	JoinJoin
	JoinPrunePending
)

type Flag uint32

const (
	// FlagCouldAssert is set when the interface is in the (S,G) outgoing
	// interface list, i.e. CouldAssert(S,G,I) is true.
	FlagCouldAssert Flag = 1 << iota
)

// AssertMetric is the metric advertised in an Assert message. Lower is
// better, and the address breaks ties with higher winning.
type AssertMetric struct {
	RPTBit           bool
	MetricPreference uint32
	RouteMetric      uint32
	Address          netip.Addr
}

// Better returns true if m wins an Assert against other.
func (m AssertMetric) Better(other AssertMetric) bool {
	if m.RPTBit != other.RPTBit {
		return !m.RPTBit
	}
	if m.MetricPreference != other.MetricPreference {
		return m.MetricPreference < other.MetricPreference
	}
	if m.RouteMetric != other.RouteMetric {
		return m.RouteMetric < other.RouteMetric
	}
	return m.Address.Compare(other.Address) > 0
}

type Channel struct {
	Interface *interfacestore.InterfaceConfig
	SG        types.SG

	JoinState          JoinState
	AssertState        AssertState
	Flags              Flag
	AssertWinner       netip.Addr
	AssertWinnerMetric AssertMetric

	assertTimer clock.Timer
}

func (c *Channel) CouldAssert() bool {
	return c.Flags&FlagCouldAssert != 0
}

func (c *Channel) AssertTimerRunning() bool {
	return c.assertTimer != nil
}

func channelKey(ifName string, sg types.SG) string {
	return ifName + "/" + sg.Key()
}

func channelKeyFunc(obj interface{}) (string, error) {
	ch := obj.(*Channel)
	return channelKey(ch.Interface.InterfaceName, ch.SG), nil
}

func sgIndexFunc(obj interface{}) ([]string, error) {
	ch, ok := obj.(*Channel)
	if !ok {
		return []string{}, nil
	}
	return []string{ch.SG.Key()}, nil
}

// Table owns the interface channels. It must only be used from the event loop.
type Table struct {
	channels cache.Indexer
}

func NewTable() *Table {
	return &Table{channels: cache.NewIndexer(channelKeyFunc, cache.Indexers{sgIndexName: sgIndexFunc})}
}

func (t *Table) Find(ifName string, sg types.SG) (*Channel, bool) {
	obj, found, _ := t.channels.GetByKey(channelKey(ifName, sg))
	if !found {
		return nil, false
	}
	return obj.(*Channel), true
}

// Add returns the channel of sg on iface, creating it if needed.
func (t *Table) Add(iface *interfacestore.InterfaceConfig, sg types.SG) *Channel {
	if ch, found := t.Find(iface.InterfaceName, sg); found {
		return ch
	}
	ch := &Channel{Interface: iface, SG: sg}
	t.channels.Add(ch)
	klog.V(2).InfoS("Created interface channel", "interface", iface.InterfaceName, "sg", sg)
	return ch
}

func (t *Table) Delete(ch *Channel) {
	if ch.assertTimer != nil {
		ch.assertTimer.Stop()
		ch.assertTimer = nil
	}
	t.channels.Delete(ch)
	klog.V(2).InfoS("Deleted interface channel", "interface", ch.Interface.InterfaceName, "sg", ch.SG)
}

// BySG returns the channels of sg on all interfaces.
func (t *Table) BySG(sg types.SG) []*Channel {
	objs, _ := t.channels.ByIndex(sgIndexName, sg.Key())
	chs := make([]*Channel, 0, len(objs))
	for _, obj := range objs {
		chs = append(chs, obj.(*Channel))
	}
	return chs
}

func (t *Table) List() []*Channel {
	objs := t.channels.List()
	chs := make([]*Channel, 0, len(objs))
	for _, obj := range objs {
		chs = append(chs, obj.(*Channel))
	}
	return chs
}
