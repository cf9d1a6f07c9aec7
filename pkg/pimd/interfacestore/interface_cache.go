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

package interfacestore

import (
	"net/netip"
	"sync"
)

// Local cache for the interfaces registered with the kernel as VIFs. The
// `Type` field is used to differentiate the register pseudo-interface from
// physical ones.
// Interfaces are added during daemon initialization, after their VIF has been
// added to the mroute socket. Upcall processing only reads the cache.
type interfaceCache struct {
	sync.RWMutex
	cache map[string]*InterfaceConfig
}

func (c *interfaceCache) Initialize(interfaces []*InterfaceConfig) {
	c.Lock()
	defer c.Unlock()
	for _, intf := range interfaces {
		c.cache[intf.InterfaceName] = intf
	}
}

// GetInterfaceByVIF retrieves interface from local cache given the kernel VIF
// index carried in upcalls.
func (c *interfaceCache) GetInterfaceByVIF(vif uint16) (*InterfaceConfig, bool) {
	c.RLock()
	defer c.RUnlock()
	for _, v := range c.cache {
		if v.VIF == vif {
			return v, true
		}
	}
	return nil, false
}

func (c *interfaceCache) GetInterfaceByIfIndex(ifIndex int) (*InterfaceConfig, bool) {
	c.RLock()
	defer c.RUnlock()
	for _, v := range c.cache {
		if v.Type == PhysicalInterface && v.IfIndex == ifIndex {
			return v, true
		}
	}
	return nil, false
}

// GetInterfaceByIP retrieves the interface which owns the address ip.
func (c *interfaceCache) GetInterfaceByIP(ip netip.Addr) (*InterfaceConfig, bool) {
	c.RLock()
	defer c.RUnlock()
	for _, v := range c.cache {
		for _, p := range v.Prefixes {
			if p.Addr() == ip {
				return v, true
			}
		}
	}
	return nil, false
}

func NewInterfaceStore() InterfaceStore {
	return &interfaceCache{cache: map[string]*InterfaceConfig{}}
}
