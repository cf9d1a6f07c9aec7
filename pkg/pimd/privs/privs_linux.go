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

// Package privs raises and lowers the effective capabilities needed to open
// the multicast routing sockets.
package privs

import (
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/moby/sys/capability"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

// NetworkCaps are the capabilities needed by the mroute and PIM sockets.
var NetworkCaps = []capability.Cap{capability.CAP_NET_ADMIN, capability.CAP_NET_RAW}

type Privileges struct {
	caps           []capability.Cap
	newCaps        func() (capability.Capabilities, error)
	dropAllThreads func(caps []capability.Cap) error
}

func New(caps ...capability.Cap) *Privileges {
	return &Privileges{
		caps: caps,
		newCaps: func() (capability.Capabilities, error) {
			// pid 0 selects the calling thread.
			return capability.NewPid2(0)
		},
		dropAllThreads: dropEffectiveAllThreads,
	}
}

// Drop lowers the capabilities of p in the effective set of every thread of
// the process. They stay permitted, so Do can still raise them.
func (p *Privileges) Drop() error {
	err := p.dropAllThreads(p.caps)
	if err == nil {
		klog.InfoS("Lowered effective capabilities", "capabilities", p.caps)
		return nil
	}
	if !errors.Is(err, syscall.ENOTSUP) {
		return fmt.Errorf("failed to lower capabilities: %w", err)
	}
	// The runtime cannot change the credentials of all the threads of a cgo
	// binary.
	klog.InfoS("Lowering effective capabilities of the calling thread only")
	c, err := p.newCaps()
	if err == nil {
		err = c.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load capabilities: %w", err)
	}
	c.Unset(capability.EFFECTIVE, p.caps...)
	if err := c.Apply(capability.CAPS); err != nil {
		return fmt.Errorf("failed to lower capabilities: %w", err)
	}
	return nil
}

func dropEffectiveAllThreads(caps []capability.Cap) error {
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return err
	}
	for _, c := range caps {
		data[c/32].Effective &^= 1 << (uint(c) % 32)
	}
	_, _, errno := syscall.AllThreadsSyscall(unix.SYS_CAPSET, uintptr(unsafe.Pointer(&hdr)), uintptr(unsafe.Pointer(&data[0])), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Do runs fn with the capabilities raised in the effective set. fn runs on a
// dedicated OS thread which is never reused, since capabilities are per
// thread. Failing to raise or lower privileges is logged and fn still runs.
func (p *Privileges) Do(fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		errCh <- p.do(fn)
	}()
	return <-errCh
}

func (p *Privileges) do(fn func() error) error {
	c, err := p.newCaps()
	if err == nil {
		err = c.Load()
	}
	if err != nil {
		klog.ErrorS(err, "Could not raise privileges")
		return fn()
	}
	var raised []capability.Cap
	for _, want := range p.caps {
		if c.Get(capability.EFFECTIVE, want) {
			continue
		}
		if !c.Get(capability.PERMITTED, want) {
			klog.InfoS("Capability is not permitted", "capability", want)
			continue
		}
		raised = append(raised, want)
	}
	if len(raised) == 0 {
		return fn()
	}
	c.Set(capability.EFFECTIVE, raised...)
	if err := c.Apply(capability.CAPS); err != nil {
		klog.ErrorS(err, "Could not raise privileges")
		return fn()
	}
	defer func() {
		c.Unset(capability.EFFECTIVE, raised...)
		if err := c.Apply(capability.CAPS); err != nil {
			klog.ErrorS(err, "Could not lower privileges")
		}
	}()
	return fn()
}
