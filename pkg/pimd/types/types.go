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

package types

import (
	"fmt"
	"net/netip"
)

// AnySource is the wildcard source of a (*,G) entry.
var AnySource = netip.IPv4Unspecified()

// SG identifies a multicast flow by source and group address.
type SG struct {
	Src netip.Addr
	Grp netip.Addr
}

func NewSG(src, grp netip.Addr) SG {
	return SG{Src: src, Grp: grp}
}

// IsWildcard returns true for (*,G).
func (sg SG) IsWildcard() bool {
	return !sg.Src.IsValid() || sg.Src == AnySource
}

func (sg SG) String() string {
	src := "*"
	if !sg.IsWildcard() {
		src = sg.Src.String()
	}
	return fmt.Sprintf("(%s,%s)", src, sg.Grp)
}

// Key is used as the cache key of per-SG objects.
func (sg SG) Key() string {
	return sg.Src.String() + "/" + sg.Grp.String()
}

// AddrFrom4 converts the 4-byte in_addr representation used by the kernel.
func AddrFrom4(b []byte) netip.Addr {
	return netip.AddrFrom4([4]byte{b[0], b[1], b[2], b[3]})
}
