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

const (
	IGMPMSG_NOCACHE    = 0x1
	IGMPMSG_WRONGVIF   = 0x2
	IGMPMSG_WHOLEPKT   = 0x3
	IGMPMSG_WRVIFWHOLE = 0x4

	VIFF_REGISTER    = 0x4
	VIFF_USE_IFINDEX = 0x8

	MRT_INIT    = 0xc8
	MRT_DONE    = 0xc9
	MRT_ADD_VIF = 0xca
	MRT_DEL_VIF = 0xcb
	MRT_ADD_MFC = 0xcc
	MRT_DEL_MFC = 0xcd
	MRT_PIM     = 0xd0
	MRT_FLUSH   = 0xd4
	MAXVIFS     = 0x20

	MRT_FLUSH_MFC  = 0x1
	MRT_FLUSH_VIFS = 0x4

	SIOCGETSGCNT = 0x89e1
)

type Mfcctl struct {
	Origin   [4]byte /* in_addr */
	Mcastgrp [4]byte /* in_addr */
	Parent   uint16
	Ttls     [32]uint8
	Pkt_cnt  uint32
	Byte_cnt uint32
	Wrong_if uint32
	Expire   int32
}

type Vifctl struct {
	Vifi       uint16
	Flags      uint8
	Threshold  uint8
	Rate_limit uint32
	Lcl        [4]byte /* union of in_addr and ifindex */
	Rmt_addr   [4]byte /* in_addr */
}

type SiocSgReq struct {
	Src      [4]byte /* in_addr */
	Grp      [4]byte /* in_addr */
	Pktcnt   uint64
	Bytecnt  uint64
	Wrong_if uint64
}

const SizeofMfcctl = 0x3c
const SizeofVifctl = 0x10
const SizeofSiocSgReq = 0x20
const SizeofIgmpmsg = 0x14
