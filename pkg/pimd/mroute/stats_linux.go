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
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/dukku1/quagga/pkg/pimd/types"
)

const (
	rtnlFamilyIPMR = 128
	rtaMFCStats    = 0x11
	rtaExpires     = 0x17
	// RTA_EXPIRES of IPMR routes is reported in USER_HZ.
	userHZ = 100
)

// SGStats are the kernel statistics of a forwarding cache entry.
type SGStats struct {
	Packets uint64
	Bytes   uint64
	WrongIf uint64
	// LastUsed is the time elapsed since the entry last forwarded a packet.
	LastUsed time.Duration
}

// StatsLookup returns the kernel statistics of the forwarding cache entry of
// an (S,G).
type StatsLookup interface {
	LookupSG(sg types.SG) (*SGStats, error)
}

type netlinkConn interface {
	Execute(m netlink.Message) ([]netlink.Message, error)
	Close() error
}

// NetlinkStats looks up forwarding cache entries in the IPMR routing table
// over rtnetlink.
type NetlinkStats struct {
	conn netlinkConn
}

func NewNetlinkStats() (*NetlinkStats, error) {
	conn, err := netlink.Dial(unix.NETLINK_ROUTE, &netlink.Config{Strict: true})
	if err != nil {
		return nil, fmt.Errorf("failed to dial rtnetlink: %w", err)
	}
	return &NetlinkStats{conn: conn}, nil
}

func (s *NetlinkStats) LookupSG(sg types.SG) (*SGStats, error) {
	src, grp := sg.Src.As4(), sg.Grp.As4()
	ae := netlink.NewAttributeEncoder()
	ae.Bytes(unix.RTA_SRC, src[:])
	ae.Bytes(unix.RTA_DST, grp[:])
	attrs, err := ae.Encode()
	if err != nil {
		return nil, err
	}
	// struct rtmsg
	rtm := make([]byte, unix.SizeofRtMsg)
	rtm[0] = rtnlFamilyIPMR
	rtm[1] = 32
	rtm[2] = 32
	msgs, err := s.conn.Execute(netlink.Message{
		Header: netlink.Header{Type: unix.RTM_GETROUTE, Flags: netlink.Request},
		Data:   append(rtm, attrs...),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get IPMR route %s: %w", sg, err)
	}
	for _, msg := range msgs {
		if msg.Header.Type != unix.RTM_NEWROUTE {
			continue
		}
		return parseSGStats(msg.Data)
	}
	return nil, fmt.Errorf("no IPMR route for %s", sg)
}

func parseSGStats(data []byte) (*SGStats, error) {
	if len(data) < unix.SizeofRtMsg {
		return nil, errors.New("truncated rtmsg")
	}
	ad, err := netlink.NewAttributeDecoder(data[unix.SizeofRtMsg:])
	if err != nil {
		return nil, err
	}
	stats := &SGStats{}
	for ad.Next() {
		switch ad.Type() {
		case rtaMFCStats:
			// struct rta_mfc_stats
			b := ad.Bytes()
			if len(b) < 24 {
				return nil, errors.New("truncated RTA_MFC_STATS")
			}
			stats.Packets = binary.NativeEndian.Uint64(b[0:8])
			stats.Bytes = binary.NativeEndian.Uint64(b[8:16])
			stats.WrongIf = binary.NativeEndian.Uint64(b[16:24])
		case rtaExpires:
			stats.LastUsed = time.Duration(ad.Uint64()) * time.Second / userHZ
		}
	}
	if err := ad.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *NetlinkStats) Close() error {
	return s.conn.Close()
}
