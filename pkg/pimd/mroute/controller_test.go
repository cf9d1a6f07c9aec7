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
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dukku1/quagga/pkg/pimd/channeloil"
	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/upstream"
	multicastsyscall "github.com/dukku1/quagga/pkg/pimd/util/syscall"
)

func (tc *testController) runLoop(t *testing.T) chan struct{} {
	stopCh := make(chan struct{})
	t.Cleanup(func() { close(stopCh) })
	go tc.loop.Run(stopCh)
	return stopCh
}

func (tc *testController) expectCounters(pktCnt uint64) {
	tc.conn.EXPECT().GetSGCount(gomock.Any()).DoAndReturn(func(req *multicastsyscall.SiocSgReq) error {
		req.Pktcnt = pktCnt
		return nil
	})
}

func TestKeepAliveExpired(t *testing.T) {
	for _, tt := range []struct {
		name           string
		installed      bool
		pktCnt         uint64
		expectDeletion bool
	}{
		{name: "idle flow", installed: true, pktCnt: 3, expectDeletion: true},
		{name: "active flow", installed: true, pktCnt: 8},
		{name: "entry not installed", expectDeletion: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestController(t)
			up, err := tc.upstreams.Add(testSG, eth0Iface)
			require.NoError(t, err)
			oil := tc.oils.Add(testSG, eth0Iface.VIF)
			oil.Installed = tt.installed
			oil.Counters.PktCnt = 3
			if tt.installed {
				tc.expectCounters(tt.pktCnt)
				if tt.expectDeletion {
					tc.conn.EXPECT().SetsockoptMfcctl(multicastsyscall.MRT_DEL_MFC, mfcctl(oil, oil.Parent)).Return(nil)
				}
			}

			tc.keepAliveExpired(up)
			_, oilFound := tc.oils.Find(testSG)
			_, upFound := tc.upstreams.Find(testSG)
			assert.Equal(t, !tt.expectDeletion, oilFound)
			assert.Equal(t, !tt.expectDeletion, upFound)
			assert.Equal(t, !tt.expectDeletion, up.KeepAliveTimerRunning())
		})
	}
}

func TestKeepAliveTimerExpiry(t *testing.T) {
	tc := newTestController(t)
	stopCh := tc.runLoop(t)
	var err error
	require.True(t, tc.loop.Call(func() {
		var up *upstream.Upstream
		if up, err = tc.upstreams.Add(testSG, eth0Iface); err == nil {
			tc.oils.Add(testSG, eth0Iface.VIF)
			tc.upstreams.StartKeepAliveTimer(up, testKeepAlive)
		}
	}, stopCh))
	require.NoError(t, err)

	tc.clock.Step(testKeepAlive)
	assert.Eventually(t, func() bool {
		var n int
		tc.loop.Call(func() {
			n = tc.upstreams.Len() + tc.oils.Len()
		}, stopCh)
		return n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestReadUpcalls(t *testing.T) {
	tc := newTestController(t)
	tc.expectRP()
	stopCh := tc.runLoop(t)
	msg := buildUpcall(multicastsyscall.IGMPMSG_NOCACHE, eth0Iface.VIF, "10.0.0.5", "224.1.1.1", nil)
	gomock.InOrder(
		tc.conn.EXPECT().Read(gomock.Any()).DoAndReturn(func(buf []byte) (int, error) {
			return copy(buf, msg), nil
		}),
		tc.conn.EXPECT().Read(gomock.Any()).Return(0, io.EOF),
	)

	// Returns once reading fails.
	tc.readUpcalls(stopCh)
	var found bool
	require.True(t, tc.loop.Call(func() {
		_, found = tc.upstreams.Find(testSG)
	}, stopCh))
	assert.True(t, found)
}

func TestRunRefreshesCounters(t *testing.T) {
	tc := newTestController(t)
	stopCh := make(chan struct{})
	defer close(stopCh)
	go tc.loop.Run(stopCh)
	tc.conn.EXPECT().Read(gomock.Any()).Return(0, io.EOF).AnyTimes()

	oil := newEntry("10.0.0.5", "224.1.1.1", eth0Iface.VIF)
	require.True(t, tc.loop.Call(func() {
		installed := tc.oils.Add(testSG, eth0Iface.VIF)
		installed.Installed = true
		tc.oils.Add(testRemoteSG, eth0Iface.VIF)
	}, stopCh))
	refreshed := make(chan struct{})
	// Only installed entries are refreshed.
	tc.conn.EXPECT().GetSGCount(gomock.Any()).DoAndReturn(func(req *multicastsyscall.SiocSgReq) error {
		assert.Equal(t, oil.SG.Src.As4(), req.Src)
		req.Pktcnt = 7
		close(refreshed)
		return nil
	})

	go tc.Run(stopCh)
	require.Eventually(t, tc.clock.HasWaiters, time.Second, 10*time.Millisecond)
	tc.clock.Step(10 * time.Second)
	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("Counters were not refreshed")
	}
	var pktCnt uint64
	require.True(t, tc.loop.Call(func() {
		e, _ := tc.oils.Find(testSG)
		pktCnt = e.Counters.PktCnt
	}, stopCh))
	assert.Equal(t, uint64(7), pktCnt)
}

func TestDumps(t *testing.T) {
	tc := newTestController(t)
	stopCh := tc.runLoop(t)
	var errs []error
	require.True(t, tc.loop.Call(func() {
		remote := tc.oils.Add(testRemoteSG, eth1Iface.VIF)
		remote.Counters.PktCnt = 2
		local := tc.oils.Add(testSG, eth0Iface.VIF)
		local.Installed = true
		errs = append(errs, local.AddOIF(interfacestore.RegisterVIF, channeloil.OIFFlagProtoPIM, tc.clock.Now()))

		up, err := tc.upstreams.Add(testSG, eth0Iface)
		errs = append(errs, err)
		up.FHR = true
		up.JoinState = upstream.Joined
		tc.upstreams.StartKeepAliveTimer(up, testKeepAlive)
		up, err = tc.upstreams.Add(testRemoteSG, eth1Iface)
		errs = append(errs, err)
		up.SPTBit = upstream.SPTBitTrue
		up.UpstreamRegister = testRegistrant
	}, stopCh))
	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, []MrouteInfo{
		{Source: "10.0.0.5", Group: "224.1.1.1", Parent: 1, OIFs: []uint16{0}, Installed: true},
		{Source: "10.1.0.5", Group: "224.1.1.1", Parent: 2, Packets: 2},
	}, tc.Mroutes(stopCh))
	assert.Equal(t, []UpstreamInfo{
		{Source: "10.0.0.5", Group: "224.1.1.1", JoinState: "Joined", FHR: true, RPFInterface: "eth0", KeepAlive: true},
		{Source: "10.1.0.5", Group: "224.1.1.1", JoinState: "NotJoined", SPTBit: true, RPFInterface: "eth1", UpstreamRegister: "172.16.0.2"},
	}, tc.Upstreams(stopCh))
}

func TestDumpsStopped(t *testing.T) {
	tc := newTestController(t)
	stopCh := make(chan struct{})
	close(stopCh)
	assert.Nil(t, tc.Mroutes(stopCh))
	assert.Nil(t, tc.Upstreams(stopCh))
}

func TestStatus(t *testing.T) {
	tc := newTestController(t)
	created := tc.clock.Now()
	tc.socket.createdAt = created
	assert.Equal(t, StatusInfo{Enabled: true, CreatedAt: &created, WideVIF: true}, tc.Status())

	tc.clock.Step(time.Second)
	added := tc.clock.Now()
	// An unresolved entry is installed through the register VIF first.
	tc.conn.EXPECT().SetsockoptMfcctl(multicastsyscall.MRT_ADD_MFC, gomock.Any()).Return(nil).Times(2)
	oil := tc.oils.Add(testSG, eth0Iface.VIF)
	require.NoError(t, tc.socket.InstallEntry(oil))
	tc.clock.Step(time.Second)
	deleted := tc.clock.Now()
	tc.conn.EXPECT().SetsockoptMfcctl(multicastsyscall.MRT_DEL_MFC, gomock.Any()).Return(nil)
	require.NoError(t, tc.socket.RemoveEntry(oil))

	assert.Equal(t, StatusInfo{
		Enabled:      true,
		CreatedAt:    &created,
		WideVIF:      true,
		AddEvents:    1,
		LastAddEvent: &added,
		DelEvents:    1,
		LastDelEvent: &deleted,
	}, tc.Status())

	tc.socket.conn = nil
	status := tc.Status()
	assert.False(t, status.Enabled)
	assert.Equal(t, uint64(1), status.AddEvents)
}
