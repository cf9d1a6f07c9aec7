//go:build ignore
// +build ignore

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

// Input to "go tool cgo -godefs". ztypes_linux.go is generated from this file
// on linux/amd64 and must be regenerated if a new architecture is added.
package syscall

/*
#include <sys/ioctl.h>
#include <linux/mroute.h>

// vifctl from uapi/linux/mroute.h has a union of vifc_lcl_addr and
// vifc_lcl_ifindex. Both are 4 bytes wide, so it is exposed as a byte array
// and written through SetLclAddr or SetLclIfindex.
struct vifctl_lcl {
	vifi_t	vifc_vifi;
	unsigned char vifc_flags;
	unsigned char vifc_threshold;
	unsigned int vifc_rate_limit;
	unsigned char vifc_lcl[4];
	struct in_addr vifc_rmt_addr;
};
*/
import "C"

const (
	IGMPMSG_NOCACHE    = C.IGMPMSG_NOCACHE
	IGMPMSG_WRONGVIF   = C.IGMPMSG_WRONGVIF
	IGMPMSG_WHOLEPKT   = C.IGMPMSG_WHOLEPKT
	IGMPMSG_WRVIFWHOLE = C.IGMPMSG_WRVIFWHOLE

	VIFF_REGISTER    = C.VIFF_REGISTER
	VIFF_USE_IFINDEX = C.VIFF_USE_IFINDEX

	MRT_INIT    = C.MRT_INIT
	MRT_DONE    = C.MRT_DONE
	MRT_ADD_VIF = C.MRT_ADD_VIF
	MRT_DEL_VIF = C.MRT_DEL_VIF
	MRT_ADD_MFC = C.MRT_ADD_MFC
	MRT_DEL_MFC = C.MRT_DEL_MFC
	MRT_PIM     = C.MRT_PIM
	MRT_FLUSH   = C.MRT_FLUSH
	MAXVIFS     = C.MAXVIFS

	MRT_FLUSH_MFC  = C.MRT_FLUSH_MFC
	MRT_FLUSH_VIFS = C.MRT_FLUSH_VIFS

	SIOCGETSGCNT = C.SIOCGETSGCNT
)

type Mfcctl C.struct_mfcctl
type Vifctl C.struct_vifctl_lcl
type SiocSgReq C.struct_sioc_sg_req

const SizeofMfcctl = C.sizeof_struct_mfcctl
const SizeofVifctl = C.sizeof_struct_vifctl_lcl
const SizeofSiocSgReq = C.sizeof_struct_sioc_sg_req
const SizeofIgmpmsg = C.sizeof_struct_igmpmsg
