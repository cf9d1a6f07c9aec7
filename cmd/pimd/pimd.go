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

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/dukku1/quagga/pkg/log"
	"github.com/dukku1/quagga/pkg/pimd/channeloil"
	"github.com/dukku1/quagga/pkg/pimd/ifchannel"
	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/loop"
	"github.com/dukku1/quagga/pkg/pimd/metrics"
	"github.com/dukku1/quagga/pkg/pimd/mroute"
	"github.com/dukku1/quagga/pkg/pimd/nexthop"
	"github.com/dukku1/quagga/pkg/pimd/pimsock"
	"github.com/dukku1/quagga/pkg/pimd/privs"
	"github.com/dukku1/quagga/pkg/pimd/register"
	"github.com/dukku1/quagga/pkg/pimd/rp"
	"github.com/dukku1/quagga/pkg/pimd/upstream"
	"github.com/dukku1/quagga/pkg/signals"
)

const shutdownTimeout = 5 * time.Second

// run starts pimd with the given options and waits for the termination
// signal.
func run(o *Options) error {
	klog.InfoS("Starting pimd")
	stopCh := signals.RegisterSignalHandlers()

	log.StartLogFileNumberMonitor(stopCh)
	metrics.InitializePrometheusMetrics()

	// The capabilities are only raised around socket creation.
	networkPrivs := privs.New(privs.NetworkCaps...)
	if err := networkPrivs.Drop(); err != nil {
		klog.ErrorS(err, "Failed to lower privileges")
	}

	ifaces, err := o.interfaceConfigs(interfacestore.NewPhysicalInterfaceFromLink)
	if err != nil {
		return err
	}
	ifaceStore := interfacestore.NewInterfaceStore()
	ifaceStore.Initialize(ifaces)

	nexthops := nexthop.NewResolver(ifaceStore)
	rps := rp.NewResolver(ifaceStore, nexthops)
	for _, r := range o.rps {
		if err := rps.AddRP(r.groupRange, r.address); err != nil {
			return err
		}
	}

	eventLoop := loop.New(clock.RealClock{})
	upstreams := upstream.NewTable(upstream.Config{
		RegisterSuppressionTime: o.registerSuppressionTime,
		RegisterProbeTime:       o.registerProbeTime,
	}, eventLoop)
	oils := channeloil.NewTable()
	ifChannels := ifchannel.NewTable()

	var stats mroute.StatsLookup
	if netlinkStats, err := mroute.NewNetlinkStats(); err != nil {
		klog.ErrorS(err, "Failed to open netlink socket, last use times of forwarding entries are not available")
	} else {
		stats = netlinkStats
	}
	socket := mroute.NewSocket(networkPrivs, stats, clock.RealClock{})
	if err := socket.Enable(); err != nil {
		return fmt.Errorf("failed to enable multicast forwarding: %w", err)
	}
	defer func() {
		if err := socket.Flush(); err != nil {
			klog.ErrorS(err, "Failed to flush the multicast forwarding cache")
		}
		if err := socket.Disable(); err != nil {
			klog.ErrorS(err, "Failed to disable multicast forwarding")
		}
	}()
	if err := addVIFs(socket, ifaces); err != nil {
		return err
	}

	var pimConn *pimsock.Conn
	if err := networkPrivs.Do(func() error {
		var err error
		pimConn, err = pimsock.Listen(context.Background())
		return err
	}); err != nil {
		return fmt.Errorf("failed to open PIM socket: %w", err)
	}
	defer pimConn.Close()
	for _, iface := range ifaces {
		if !iface.PIMEnabled() {
			continue
		}
		if err := pimConn.JoinAllPIMRouters(iface); err != nil {
			return err
		}
	}

	registerSender := register.NewSender(pimConn)
	asserter := ifchannel.NewAsserter(ifchannel.AssertConfig{
		AssertTime:             o.assertTime,
		AssertOverrideInterval: o.assertOverrideInterval,
		MetricPreference:       o.config.AssertPreference,
	}, eventLoop, pimConn, nexthops)
	registerHandler := register.NewHandler(register.Config{
		KeepAliveTime:     o.keepAliveTime,
		RPKeepAlivePeriod: 3*o.registerSuppressionTime + o.registerProbeTime,
	}, ifaceStore, rps, nexthops, upstreams, oils, socket, registerSender, clock.RealClock{})
	controller := mroute.NewController(mroute.Config{
		KeepAliveTime: o.keepAliveTime,
		StatsInterval: o.statsInterval,
	}, socket, eventLoop, ifaceStore, rps, nexthops, upstreams, oils, ifChannels, registerSender, asserter)

	go eventLoop.Run(stopCh)
	go controller.Run(stopCh)
	go receivePIMMessages(pimConn, eventLoop, registerHandler, stopCh)

	if len(o.configFile) > 0 {
		reloadCh, err := o.reloadNotifications(stopCh)
		if err != nil {
			return err
		}
		go reloadRendezvousPoints(o, eventLoop, rps, reloadCh, stopCh)
	}

	if addr := *o.config.MetricsBindAddress; addr != "" {
		server := &http.Server{
			Addr:              addr,
			Handler:           newHandler(controller),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			klog.InfoS("Starting HTTP server", "address", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				klog.ErrorS(err, "HTTP server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	<-stopCh
	klog.InfoS("Stopping pimd")
	return nil
}

// addVIFs registers the register interface and the configured interfaces
// with the kernel.
func addVIFs(socket *mroute.Socket, ifaces []*interfacestore.InterfaceConfig) error {
	for _, iface := range ifaces {
		var flags uint8
		if iface.Type == interfacestore.RegisterInterface {
			flags = mroute.VIFFlagRegister
		}
		if err := socket.AddVIF(iface, iface.PrimaryAddress(), flags); err != nil {
			return fmt.Errorf("failed to add VIF for interface %s: %w", iface.InterfaceName, err)
		}
	}
	return nil
}

type messageReceiver interface {
	Receive() (*pimsock.Message, error)
}

type messageHandler interface {
	HandleMessage(msg *pimsock.Message) error
}

// receivePIMMessages reads PIM messages and handles them on the loop, one at
// a time. It returns when reading fails, which happens once the socket is
// closed.
func receivePIMMessages(conn messageReceiver, l *loop.Loop, handler messageHandler, stopCh <-chan struct{}) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				klog.ErrorS(err, "Failed to receive PIM message")
			}
			return
		}
		var handleErr error
		if !l.Call(func() { handleErr = handler.HandleMessage(msg) }, stopCh) {
			return
		}
		if handleErr != nil {
			klog.V(2).ErrorS(handleErr, "Dropped PIM message", "src", msg.Src, "ifIndex", msg.IfIndex)
		}
	}
}

// reloadNotifications merges SIGHUP and the changes of the configuration
// file into a single channel.
func (o *Options) reloadNotifications(stopCh <-chan struct{}) (<-chan struct{}, error) {
	watcher, err := newConfigWatcher(o.configFile)
	if err != nil {
		return nil, err
	}
	ch := make(chan struct{}, 1)
	notify := func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	go watcher.run(stopCh, notify)
	hupCh := signals.RegisterReloadHandler(stopCh)
	go func() {
		for {
			select {
			case <-hupCh:
				notify()
			case <-stopCh:
				return
			}
		}
	}()
	return ch, nil
}

type rpConfigurator interface {
	AddRP(groupRange netip.Prefix, rp netip.Addr) error
	DeleteRP(groupRange netip.Prefix)
}

func reloadRendezvousPoints(o *Options, l *loop.Loop, rps rpConfigurator, reloadCh <-chan struct{}, stopCh <-chan struct{}) {
	current := o.rps
	for {
		select {
		case <-reloadCh:
			updated, err := o.reloadRendezvousPoints()
			if err != nil {
				klog.ErrorS(err, "Failed to reload RP configuration, keeping the current one")
				continue
			}
			l.Call(func() { current = applyRendezvousPoints(rps, current, updated) }, stopCh)
		case <-stopCh:
			return
		}
	}
}

// applyRendezvousPoints replaces the RPs in current by the ones in updated and
// returns the RPs now configured.
func applyRendezvousPoints(rps rpConfigurator, current, updated []staticRP) []staticRP {
	keep := make(map[netip.Prefix]bool, len(updated))
	for _, r := range updated {
		keep[r.groupRange] = true
	}
	for _, r := range current {
		if !keep[r.groupRange] {
			rps.DeleteRP(r.groupRange)
			klog.InfoS("Removed static RP", "groupRange", r.groupRange, "rp", r.address)
		}
	}
	applied := make([]staticRP, 0, len(updated))
	for _, r := range updated {
		if err := rps.AddRP(r.groupRange, r.address); err != nil {
			klog.ErrorS(err, "Failed to configure static RP", "groupRange", r.groupRange)
			continue
		}
		applied = append(applied, r)
	}
	return applied
}
