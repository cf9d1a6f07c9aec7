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

package register

import (
	"fmt"
	"net/netip"

	"k8s.io/klog/v2"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/metrics"
	"github.com/dukku1/quagga/pkg/pimd/pimmsg"
	"github.com/dukku1/quagga/pkg/pimd/rp"
	"github.com/dukku1/quagga/pkg/pimd/types"
)

const (
	messageTypeRegister     = "register"
	messageTypeNullRegister = "null_register"
	messageTypeRegisterStop = "register_stop"
)

type messageSender interface {
	Send(iface *interfacestore.InterfaceConfig, dst netip.Addr, msg []byte) error
}

// Sender encapsulates multicast data packets in Registers towards the RP and
// sends Register-Stops to the routers registering to this RP.
type Sender struct {
	conn messageSender
}

func NewSender(conn messageSender) *Sender {
	return &Sender{conn: conn}
}

// SendRegister encapsulates the multicast packet pkt, which starts with its IP
// header, in a Register sent to the RP.
func (s *Sender) SendRegister(pkt []byte, rpf *rp.RPF) error {
	msg, err := pimmsg.NewRegister(pkt)
	if err != nil {
		return err
	}
	return s.send(messageTypeRegister, rpf.Interface(), rpf.Address, msg)
}

// SendNullRegister sends a Null-Register for sg to the RP, probing whether
// the RP still wants Registers to be suppressed.
func (s *Sender) SendNullRegister(sg types.SG, rpf *rp.RPF) error {
	msg, err := pimmsg.NewNullRegister(sg.Src, sg.Grp)
	if err != nil {
		return err
	}
	return s.send(messageTypeNullRegister, rpf.Interface(), rpf.Address, msg)
}

// SendRegisterStop sends a Register-Stop for sg to originator, the router
// which sent us Registers, out of iface.
func (s *Sender) SendRegisterStop(iface *interfacestore.InterfaceConfig, sg types.SG, originator netip.Addr) error {
	msg, err := pimmsg.NewRegisterStop(sg.Src, sg.Grp)
	if err != nil {
		return err
	}
	return s.send(messageTypeRegisterStop, iface, originator, msg)
}

func (s *Sender) send(msgType string, iface *interfacestore.InterfaceConfig, dst netip.Addr, msg []byte) error {
	if iface == nil {
		return fmt.Errorf("no interface to send %s to %s", msgType, dst)
	}
	if err := s.conn.Send(iface, dst, msg); err != nil {
		return err
	}
	metrics.RegisterSent.WithLabelValues(msgType).Inc()
	klog.V(2).InfoS("Sent PIM message", "type", msgType, "dst", dst, "interface", iface.InterfaceName)
	return nil
}
