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
	"errors"
	"net/netip"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/blang/semver"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/dukku1/quagga/pkg/pimd/channeloil"
	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/metrics"
	multicastsyscall "github.com/dukku1/quagga/pkg/pimd/util/syscall"
)

const (
	MaxVIFs       = multicastsyscall.MAXVIFS
	SizeofIgmpmsg = multicastsyscall.SizeofIgmpmsg

	VIFFlagRegister = multicastsyscall.VIFF_REGISTER

	// minTTL is the TTL threshold of VIFs.
	minTTL = 1
)

// The igmpmsg VIF is 16 bits wide since Linux 5.10, see
// https://github.com/torvalds/linux/commit/c8715a8e9f38906e73d6d78764216742db13ba0e.
var wideVIFKernelVersion = semver.MustParse("5.10.0")

// KernelConn is the raw IGMP socket which owns the kernel multicast routing
// table. All socket options are set at level IPPROTO_IP.
type KernelConn interface {
	SetsockoptInt(opt, value int) error
	SetsockoptVifctl(opt int, vc *multicastsyscall.Vifctl) error
	SetsockoptMfcctl(opt int, mc *multicastsyscall.Mfcctl) error
	GetSGCount(req *multicastsyscall.SiocSgReq) error
	Read(buf []byte) (int, error)
	Close() error
}

type privileges interface {
	Do(fn func() error) error
}

// rawConn is a KernelConn on a non-blocking socket registered with the
// runtime poller, so that Close unblocks a pending Read.
type rawConn struct {
	file *os.File
}

func openRawConn() (KernelConn, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_IGMP)
	if err != nil {
		return nil, err
	}
	return &rawConn{file: os.NewFile(uintptr(fd), "mroute")}, nil
}

func (c *rawConn) control(fn func(fd int) error) error {
	sc, err := c.file.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := sc.Control(func(fd uintptr) {
		opErr = fn(int(fd))
	}); err != nil {
		return err
	}
	return opErr
}

func (c *rawConn) SetsockoptInt(opt, value int) error {
	return c.control(func(fd int) error {
		return unix.SetsockoptInt(fd, unix.IPPROTO_IP, opt, value)
	})
}

func (c *rawConn) SetsockoptVifctl(opt int, vc *multicastsyscall.Vifctl) error {
	return c.control(func(fd int) error {
		return multicastsyscall.SetsockoptVifctl(fd, unix.IPPROTO_IP, opt, vc)
	})
}

func (c *rawConn) SetsockoptMfcctl(opt int, mc *multicastsyscall.Mfcctl) error {
	return c.control(func(fd int) error {
		return multicastsyscall.SetsockoptMfcctl(fd, unix.IPPROTO_IP, opt, mc)
	})
}

func (c *rawConn) GetSGCount(req *multicastsyscall.SiocSgReq) error {
	return c.control(func(fd int) error {
		return multicastsyscall.IoctlGetSGCount(fd, req)
	})
}

func (c *rawConn) Read(buf []byte) (int, error) {
	return c.file.Read(buf)
}

func (c *rawConn) Close() error {
	return c.file.Close()
}

// Socket manages the kernel multicast forwarding state through the mroute
// socket. Forwarding is enabled while the socket is open.
type Socket struct {
	mutex sync.RWMutex
	conn  KernelConn
	// wideVIF is true if upcalls carry a 16 bit VIF.
	wideVIF   bool
	createdAt time.Time

	addEvents uint64
	lastAdd   time.Time
	delEvents uint64
	lastDel   time.Time

	privs       privileges
	stats       StatsLookup
	clock       clock.PassiveClock
	open        func() (KernelConn, error)
	wideVIFFunc func() bool
}

// NewSocket creates a Socket. stats may be nil, in which case only the
// SIOCGETSGCNT counters are collected.
func NewSocket(privs privileges, stats StatsLookup, clock clock.PassiveClock) *Socket {
	return &Socket{
		privs:       privs,
		stats:       stats,
		clock:       clock,
		open:        openRawConn,
		wideVIFFunc: kernelSupportsWideVIF,
	}
}

func kernelSupportsWideVIF() bool {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		klog.ErrorS(err, "Failed to get kernel version")
		return false
	}
	release := unix.ByteSliceToString(uts.Release[:])
	v, err := parseKernelVersion(release)
	if err != nil {
		klog.ErrorS(err, "Failed to parse kernel version", "release", release)
		return false
	}
	return v.GTE(wideVIFKernelVersion)
}

// parseKernelVersion parses the numeric prefix of a kernel release such as
// "5.15.0-91-generic".
func parseKernelVersion(release string) (semver.Version, error) {
	if i := strings.IndexFunc(release, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}); i >= 0 {
		release = release[:i]
	}
	return semver.ParseTolerant(strings.TrimSuffix(release, "."))
}

// Enable opens the mroute socket and enables multicast forwarding, with
// upcalls for whole packets arriving on the wrong VIF.
func (s *Socket) Enable() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.conn != nil {
		return ErrAlreadyEnabled
	}
	var conn KernelConn
	err := s.privs.Do(func() error {
		var err error
		if conn, err = s.open(); err != nil {
			return &SocketError{Op: "create", Err: err}
		}
		if err := conn.SetsockoptInt(multicastsyscall.MRT_INIT, 1); err != nil {
			return &SocketError{Op: "MRT_INIT", Err: err}
		}
		if err := conn.SetsockoptInt(multicastsyscall.MRT_PIM, multicastsyscall.IGMPMSG_WRVIFWHOLE); err != nil {
			return &SocketError{Op: "MRT_PIM", Err: err}
		}
		return nil
	})
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return err
	}
	s.conn = conn
	s.createdAt = s.clock.Now()
	s.wideVIF = s.wideVIFFunc()
	klog.InfoS("Enabled kernel multicast forwarding", "wideVIF", s.wideVIF)
	return nil
}

// Disable stops multicast forwarding and closes the socket. The socket is
// closed even if stopping forwarding fails.
func (s *Socket) Disable() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.conn == nil {
		return ErrForwardingDisabled
	}
	conn := s.conn
	s.conn = nil
	var errs []error
	if err := conn.SetsockoptInt(multicastsyscall.MRT_DONE, 1); err != nil {
		errs = append(errs, &SocketError{Op: "MRT_DONE", Err: err})
	}
	if err := conn.Close(); err != nil {
		errs = append(errs, &SocketError{Op: "close", Err: err})
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	klog.InfoS("Disabled kernel multicast forwarding")
	return nil
}

func (s *Socket) Enabled() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.conn != nil
}

// CreatedAt returns when forwarding was last enabled.
func (s *Socket) CreatedAt() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.createdAt
}

// WideVIF returns true if upcalls carry a 16 bit VIF.
func (s *Socket) WideVIF() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.wideVIF
}

// AddVIF registers iface as VIF iface.VIF. localAddr is only used when VIFs
// cannot be bound by interface index.
func (s *Socket) AddVIF(iface *interfacestore.InterfaceConfig, localAddr netip.Addr, flags uint8) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.conn == nil {
		return ErrForwardingDisabled
	}
	vc := &multicastsyscall.Vifctl{
		Vifi:      iface.VIF,
		Flags:     flags,
		Threshold: minTTL,
	}
	if flags&multicastsyscall.VIFF_REGISTER == 0 {
		if err := setVIFLocal(vc, iface, localAddr); err != nil {
			return err
		}
	}
	if err := s.conn.SetsockoptVifctl(multicastsyscall.MRT_ADD_VIF, vc); err != nil {
		return &KernelProgrammingError{Op: "MRT_ADD_VIF", Err: err}
	}
	klog.InfoS("Added VIF", "vif", iface.VIF, "interface", iface.InterfaceName, "flags", flags)
	return nil
}

func (s *Socket) DelVIF(vif uint16) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.conn == nil {
		return ErrForwardingDisabled
	}
	if err := s.conn.SetsockoptVifctl(multicastsyscall.MRT_DEL_VIF, &multicastsyscall.Vifctl{Vifi: vif}); err != nil {
		return &KernelProgrammingError{Op: "MRT_DEL_VIF", Err: err}
	}
	klog.InfoS("Deleted VIF", "vif", vif)
	return nil
}

func newMfcctl(e *channeloil.Entry) *multicastsyscall.Mfcctl {
	return &multicastsyscall.Mfcctl{
		Origin:   e.SG.Src.As4(),
		Mcastgrp: e.SG.Grp.As4(),
		Parent:   e.Parent,
		Ttls:     e.OIFTTL,
	}
}

// InstallEntry programs e into the kernel forwarding cache. The kernel
// request is built from a copy of e, so the adjustments below never leak
// into e:
//   - A (*,G) entry must list its incoming VIF in its outgoing interfaces.
//   - An (S,G) entry which is not installed yet is an unresolved cache entry
//     owned by the register VIF. It is first installed with the register VIF
//     as incoming interface so that the queued packets are forwarded, then
//     with its real incoming VIF.
//
// e.Installed is only set once the last call succeeded.
func (s *Socket) InstallEntry(e *channeloil.Entry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.conn == nil {
		return ErrForwardingDisabled
	}
	s.addEvents++
	s.lastAdd = s.clock.Now()
	err := s.installEntry(e)
	metrics.MrouteInstalls.WithLabelValues(metrics.ResultLabel(err)).Inc()
	if err != nil {
		return err
	}
	e.Installed = true
	klog.V(2).InfoS("Installed forwarding cache entry", "sg", e.SG, "parent", e.Parent, "oifs", e.OIFs())
	return nil
}

func (s *Socket) installEntry(e *channeloil.Entry) error {
	mc := newMfcctl(e)
	if e.SG.IsWildcard() {
		mc.Ttls[e.Parent] = 1
	}
	if !e.Installed && !e.SG.IsWildcard() && e.Parent != interfacestore.RegisterVIF {
		mc.Parent = interfacestore.RegisterVIF
		if err := s.conn.SetsockoptMfcctl(multicastsyscall.MRT_ADD_MFC, mc); err != nil {
			return &KernelProgrammingError{Op: "MRT_ADD_MFC", Err: err}
		}
		mc.Parent = e.Parent
	}
	if err := s.conn.SetsockoptMfcctl(multicastsyscall.MRT_ADD_MFC, mc); err != nil {
		return &KernelProgrammingError{Op: "MRT_ADD_MFC", Err: err}
	}
	return nil
}

// RemoveEntry deletes e from the kernel forwarding cache. e.Installed is left
// unchanged on failure.
func (s *Socket) RemoveEntry(e *channeloil.Entry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.conn == nil {
		return ErrForwardingDisabled
	}
	s.delEvents++
	s.lastDel = s.clock.Now()
	err := s.conn.SetsockoptMfcctl(multicastsyscall.MRT_DEL_MFC, newMfcctl(e))
	metrics.MrouteRemovals.WithLabelValues(metrics.ResultLabel(err)).Inc()
	if err != nil {
		return &KernelProgrammingError{Op: "MRT_DEL_MFC", Err: err}
	}
	e.Installed = false
	klog.V(2).InfoS("Removed forwarding cache entry", "sg", e.SG)
	return nil
}

// RefreshCounters saves the counters of e as previous snapshot and reads the
// current ones from the kernel. The current counters are left as they are if
// SIOCGETSGCNT fails.
func (s *Socket) RefreshCounters(e *channeloil.Entry) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.conn == nil {
		return ErrForwardingDisabled
	}
	c := &e.Counters
	c.OldPktCnt = c.PktCnt
	c.OldByteCnt = c.ByteCnt
	c.OldWrongIf = c.WrongIf
	c.OldLastUsed = c.LastUsed

	if s.stats != nil {
		if stats, err := s.stats.LookupSG(e.SG); err != nil {
			klog.V(4).ErrorS(err, "Failed to look up forwarding cache statistics", "sg", e.SG)
		} else {
			c.LastUsed = stats.LastUsed
		}
	}
	req := &multicastsyscall.SiocSgReq{Src: e.SG.Src.As4(), Grp: e.SG.Grp.As4()}
	if err := s.conn.GetSGCount(req); err != nil {
		return &KernelProgrammingError{Op: "SIOCGETSGCNT", Err: err}
	}
	c.PktCnt = req.Pktcnt
	c.ByteCnt = req.Bytecnt
	c.WrongIf = req.Wrong_if
	return nil
}

// Flush deletes all the VIFs and forwarding cache entries which were not
// added as static.
func (s *Socket) Flush() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.conn == nil {
		return ErrForwardingDisabled
	}
	klog.InfoS("Clearing multicast routing table entries")
	if err := s.conn.SetsockoptInt(multicastsyscall.MRT_FLUSH, multicastsyscall.MRT_FLUSH_MFC|multicastsyscall.MRT_FLUSH_VIFS); err != nil {
		return &KernelProgrammingError{Op: "MRT_FLUSH", Err: err}
	}
	return nil
}

// Read reads one datagram from the mroute socket.
func (s *Socket) Read(buf []byte) (int, error) {
	s.mutex.RLock()
	conn := s.conn
	s.mutex.RUnlock()
	if conn == nil {
		return 0, ErrForwardingDisabled
	}
	return conn.Read(buf)
}

// AddEvents returns the number of install attempts and the time of the last
// one.
func (s *Socket) AddEvents() (uint64, time.Time) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.addEvents, s.lastAdd
}

// DelEvents returns the number of remove attempts and the time of the last
// one.
func (s *Socket) DelEvents() (uint64, time.Time) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.delEvents, s.lastDel
}
