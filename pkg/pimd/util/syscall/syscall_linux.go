//go:build linux && (amd64 || arm64)
// +build linux
// +build amd64 arm64

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

package syscall

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

// setsockopt is modified from https://github.com/golang/sys/blob/5a964db013201115fcba5c3d31ade965d0969335/unix/zsyscall_linux_amd64.go#L520.
// Note check differences of setsockopt in zsyscall_OS_ARCH.go first if you want to add new platforms support.
// Change of build tag directly may won't work.
func setsockopt(s int, level int, name int, val unsafe.Pointer, vallen uintptr) (err error) {
	_, _, e1 := unix.Syscall6(unix.SYS_SETSOCKOPT, uintptr(s), uintptr(level), uintptr(name), uintptr(val), vallen, 0)
	if e1 != 0 {
		return e1
	}
	return
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, e1 := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if e1 != 0 {
		return e1
	}
	return nil
}

// Please add your wrapped syscall functions below

func SetsockoptMfcctl(fd, level, opt int, mfcctl *Mfcctl) error {
	return setsockopt(fd, level, opt, unsafe.Pointer(mfcctl), SizeofMfcctl)
}

func SetsockoptVifctl(fd, level, opt int, vifctl *Vifctl) error {
	return setsockopt(fd, level, opt, unsafe.Pointer(vifctl), SizeofVifctl)
}

// IoctlGetSGCount fills req with the kernel packet, byte and wrong-interface
// counters of the (req.Src, req.Grp) forwarding cache entry.
func IoctlGetSGCount(fd int, req *SiocSgReq) error {
	return ioctl(fd, SIOCGETSGCNT, unsafe.Pointer(req))
}

// SetLclIfindex stores ifindex in the vifc_lcl_ifindex arm of the union. The
// caller must also set VIFF_USE_IFINDEX in Flags.
func (vc *Vifctl) SetLclIfindex(ifindex int) {
	binary.NativeEndian.PutUint32(vc.Lcl[:], uint32(int32(ifindex)))
}

// SetLclAddr stores addr in the vifc_lcl_addr arm of the union.
func (vc *Vifctl) SetLclAddr(addr [4]byte) {
	vc.Lcl = addr
}
