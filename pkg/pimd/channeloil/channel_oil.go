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

// Package channeloil keeps the multicast forwarding cache entries ("channel
// oil") of the daemon, i.e. the (S,G) incoming VIF and outgoing interface list
// which is programmed into the kernel MFC.
package channeloil

import (
	"fmt"
	"time"

	"k8s.io/client-go/tools/cache"
	"k8s.io/klog/v2"

	"github.com/dukku1/quagga/pkg/pimd/types"
)

const (
	// MaxVIFs must match MAXVIFS of the kernel mroute ABI.
	MaxVIFs = 32
)

// OIFFlag records which protocol added an outgoing interface.
type OIFFlag uint32

const (
	OIFFlagProtoIGMP OIFFlag = 1 << iota
	OIFFlagProtoPIM
)

func (f OIFFlag) String() string {
	s := ""
	if f&OIFFlagProtoIGMP != 0 {
		s += "I"
	}
	if f&OIFFlagProtoPIM != 0 {
		s += "J"
	}
	return s
}

// Counters holds the kernel counters of an entry together with the previous
// snapshot, so that rates can be computed between two refreshes.
type Counters struct {
	PktCnt   uint64
	ByteCnt  uint64
	WrongIf  uint64
	LastUsed time.Duration

	OldPktCnt   uint64
	OldByteCnt  uint64
	OldWrongIf  uint64
	OldLastUsed time.Duration
}

// Entry is an (S,G) forwarding cache entry.
type Entry struct {
	SG types.SG
	// Parent is the incoming VIF.
	Parent     uint16
	OIFTTL     [MaxVIFs]uint8
	OIFFlags   [MaxVIFs]OIFFlag
	OIFCreated [MaxVIFs]time.Time
	// Installed is true once the entry has been programmed into the kernel.
	Installed bool
	Counters  Counters
}

// AddOIF adds vif to the outgoing interface list on behalf of the protocols in
// flags.
func (e *Entry) AddOIF(vif uint16, flags OIFFlag, now time.Time) error {
	if int(vif) >= MaxVIFs {
		return fmt.Errorf("VIF %d out of range", vif)
	}
	if e.OIFFlags[vif]&flags == flags && e.OIFTTL[vif] > 0 {
		return nil
	}
	if e.OIFTTL[vif] == 0 {
		e.OIFCreated[vif] = now
	}
	e.OIFFlags[vif] |= flags
	e.OIFTTL[vif] = 1
	klog.V(2).InfoS("Added outgoing interface to channel oil", "sg", e.SG, "vif", vif, "flags", flags)
	return nil
}

// DelOIF removes flags from vif. The interface leaves the outgoing list once
// no protocol references it anymore. It returns true if the outgoing list
// changed.
func (e *Entry) DelOIF(vif uint16, flags OIFFlag) bool {
	if int(vif) >= MaxVIFs || e.OIFFlags[vif]&flags == 0 {
		return false
	}
	e.OIFFlags[vif] &^= flags
	if e.OIFFlags[vif] != 0 {
		return false
	}
	e.OIFTTL[vif] = 0
	e.OIFCreated[vif] = time.Time{}
	klog.V(2).InfoS("Deleted outgoing interface from channel oil", "sg", e.SG, "vif", vif)
	return true
}

func (e *Entry) HasOIF(vif uint16) bool {
	return int(vif) < MaxVIFs && e.OIFTTL[vif] > 0
}

// OIFs returns the VIFs of the outgoing interface list in ascending order.
func (e *Entry) OIFs() []uint16 {
	var vifs []uint16
	for vif, ttl := range e.OIFTTL {
		if ttl > 0 {
			vifs = append(vifs, uint16(vif))
		}
	}
	return vifs
}

// Remover deletes an entry from the kernel.
type Remover interface {
	RemoveEntry(e *Entry) error
}

// Table owns all the forwarding cache entries, keyed by (S,G). Other state
// refers to entries by key only.
type Table struct {
	entries cache.Indexer
}

func NewTable() *Table {
	return &Table{
		entries: cache.NewIndexer(entryKeyFunc, cache.Indexers{}),
	}
}

func entryKeyFunc(obj interface{}) (string, error) {
	entry := obj.(*Entry)
	return entry.SG.Key(), nil
}

// Add returns the entry of sg, creating it with parent as incoming VIF if it
// does not exist yet. An existing entry keeps its incoming VIF.
func (t *Table) Add(sg types.SG, parent uint16) *Entry {
	if entry, found := t.Find(sg); found {
		return entry
	}
	entry := &Entry{SG: sg, Parent: parent}
	t.entries.Add(entry)
	klog.V(2).InfoS("Created channel oil", "sg", sg, "parent", parent)
	return entry
}

func (t *Table) Find(sg types.SG) (*Entry, bool) {
	obj, found, _ := t.entries.GetByKey(sg.Key())
	if !found {
		return nil, false
	}
	return obj.(*Entry), true
}

func (t *Table) List() []*Entry {
	objs := t.entries.List()
	entries := make([]*Entry, 0, len(objs))
	for _, obj := range objs {
		entries = append(entries, obj.(*Entry))
	}
	return entries
}

func (t *Table) Len() int {
	return len(t.entries.ListKeys())
}

// Delete drops the entry of sg. An installed entry is first deleted from the
// kernel, and kept if that fails.
func (t *Table) Delete(sg types.SG, remover Remover) error {
	entry, found := t.Find(sg)
	if !found {
		return nil
	}
	if entry.Installed {
		if err := remover.RemoveEntry(entry); err != nil {
			return fmt.Errorf("failed to remove %s from the kernel: %w", sg, err)
		}
	}
	t.entries.Delete(entry)
	klog.V(2).InfoS("Deleted channel oil", "sg", sg)
	return nil
}
