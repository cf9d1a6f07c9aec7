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

// Package pimsock provides the raw IP socket used to send and receive PIM
// control messages.
package pimsock

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/pimmsg"
)

const maxPIMMessageSize = 9000

// Message is a received PIM message with the addresses of its outer IP header.
type Message struct {
	Payload []byte
	Src     netip.Addr
	Dst     netip.Addr
	IfIndex int
}

type packetConn interface {
	ReadFrom(b []byte) (int, *ipv4.ControlMessage, net.Addr, error)
	WriteTo(b []byte, cm *ipv4.ControlMessage, dst net.Addr) (int, error)
	JoinGroup(ifi *net.Interface, group net.Addr) error
	LeaveGroup(ifi *net.Interface, group net.Addr) error
	Close() error
}

type Conn struct {
	conn packetConn
	buf  []byte
}

// Listen opens the raw PIM socket. It requires CAP_NET_RAW.
func Listen(ctx context.Context) (*Conn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) {
				// Only receive the groups joined on this socket.
				opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_ALL, 0)
			}); err != nil {
				return err
			}
			return opErr
		},
	}
	c, err := lc.ListenPacket(ctx, fmt.Sprintf("ip4:%d", pimmsg.IPProtocolPIM), "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("failed to open PIM socket: %w", err)
	}
	p := ipv4.NewPacketConn(c)
	if err := p.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set control message: %w", err)
	}
	if err := p.SetMulticastLoopback(false); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to disable multicast loopback: %w", err)
	}
	if err := p.SetMulticastTTL(1); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set multicast TTL: %w", err)
	}
	return newConn(p), nil
}

func newConn(conn packetConn) *Conn {
	return &Conn{conn: conn, buf: make([]byte, maxPIMMessageSize)}
}

func netInterface(iface *interfacestore.InterfaceConfig) *net.Interface {
	return &net.Interface{Index: iface.IfIndex, Name: iface.InterfaceName}
}

// JoinAllPIMRouters joins ALL-PIM-ROUTERS on iface.
func (c *Conn) JoinAllPIMRouters(iface *interfacestore.InterfaceConfig) error {
	group := &net.IPAddr{IP: net.IP(pimmsg.AllPIMRouters.AsSlice())}
	if err := c.conn.JoinGroup(netInterface(iface), group); err != nil {
		return fmt.Errorf("failed to join %s on %s: %w", pimmsg.AllPIMRouters, iface.InterfaceName, err)
	}
	return nil
}

func (c *Conn) LeaveAllPIMRouters(iface *interfacestore.InterfaceConfig) error {
	group := &net.IPAddr{IP: net.IP(pimmsg.AllPIMRouters.AsSlice())}
	return c.conn.LeaveGroup(netInterface(iface), group)
}

// Send sends the PIM message msg to dst out of iface.
func (c *Conn) Send(iface *interfacestore.InterfaceConfig, dst netip.Addr, msg []byte) error {
	cm := &ipv4.ControlMessage{IfIndex: iface.IfIndex}
	if src := iface.PrimaryAddress(); src.IsValid() {
		cm.Src = net.IP(src.AsSlice())
	}
	if _, err := c.conn.WriteTo(msg, cm, &net.IPAddr{IP: net.IP(dst.AsSlice())}); err != nil {
		return fmt.Errorf("failed to send PIM message to %s on %s: %w", dst, iface.InterfaceName, err)
	}
	klog.V(4).InfoS("Sent PIM message", "dst", dst, "interface", iface.InterfaceName, "length", len(msg))
	return nil
}

// Receive blocks until a PIM message is received. The returned payload is
// only valid until the next call.
func (c *Conn) Receive() (*Message, error) {
	n, cm, src, err := c.conn.ReadFrom(c.buf)
	if err != nil {
		return nil, err
	}
	msg := &Message{Payload: c.buf[:n]}
	if ipAddr, ok := src.(*net.IPAddr); ok {
		msg.Src, _ = netip.AddrFromSlice(ipAddr.IP.To4())
	}
	if cm != nil {
		msg.Dst, _ = netip.AddrFromSlice(cm.Dst.To4())
		msg.IfIndex = cm.IfIndex
	}
	return msg, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
