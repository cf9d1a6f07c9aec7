//go:build !novififindex

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
	"net/netip"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	multicastsyscall "github.com/dukku1/quagga/pkg/pimd/util/syscall"
)

// setVIFLocal binds vc to the interface by index, which also supports
// unnumbered interfaces.
func setVIFLocal(vc *multicastsyscall.Vifctl, iface *interfacestore.InterfaceConfig, _ netip.Addr) error {
	vc.Flags |= multicastsyscall.VIFF_USE_IFINDEX
	vc.SetLclIfindex(iface.IfIndex)
	return nil
}
