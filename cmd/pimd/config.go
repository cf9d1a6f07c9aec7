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

package main

type InterfaceConfig struct {
	// Name of the kernel network interface.
	Name string `yaml:"name"`
	// Whether PIM runs on the interface. Multicast data is forwarded on
	// interfaces without PIM, but no PIM messages are sent or processed.
	// Defaults to true.
	PIM *bool `yaml:"pim,omitempty"`
	// PIM mode of the interface, "sm" (default) or "ssm".
	Mode string `yaml:"mode,omitempty"`
	// Whether this router is the Designated Router of the link. Defaults to
	// true.
	DesignatedRouter *bool `yaml:"designatedRouter,omitempty"`
}

type RPConfig struct {
	// Multicast group range served by the RP, e.g. 224.0.0.0/4.
	GroupRange string `yaml:"groupRange"`
	// Unicast address of the RP.
	Address string `yaml:"address"`
}

type PimdConfig struct {
	// Name of the PIM register interface created by the kernel. Defaults to
	// pimreg.
	RegisterInterface string `yaml:"registerInterface,omitempty"`
	// Interfaces registered as VIFs, in VIF order starting from VIF 1. VIF 0
	// is the register interface.
	Interfaces []InterfaceConfig `yaml:"interfaces"`
	// Static RP mappings. The most specific group range wins.
	RendezvousPoints []RPConfig `yaml:"rendezvousPoints,omitempty"`
	// Group range handled in source-specific mode. Defaults to 232.0.0.0/8.
	SSMRange string `yaml:"ssmRange,omitempty"`
	// Keepalive period of (S,G) state. Defaults to 210s.
	KeepAliveTime string `yaml:"keepAliveTime,omitempty"`
	// Register suppression time after a Register-Stop. Defaults to 60s.
	RegisterSuppressionTime string `yaml:"registerSuppressionTime,omitempty"`
	// Time before the end of register suppression at which a Null-Register
	// is sent. Defaults to 5s.
	RegisterProbeTime string `yaml:"registerProbeTime,omitempty"`
	// Assert state lifetime. Defaults to 180s.
	AssertTime string `yaml:"assertTime,omitempty"`
	// Time before the end of the Assert timer at which the winner resends its
	// Assert. Defaults to 3s.
	AssertOverrideInterval string `yaml:"assertOverrideInterval,omitempty"`
	// Metric preference advertised in Asserts. Defaults to 101.
	AssertPreference uint32 `yaml:"assertPreference,omitempty"`
	// Interval of the forwarding cache counters refresh. Defaults to 10s.
	StatsInterval string `yaml:"statsInterval,omitempty"`
	// Address of the HTTP server exposing metrics and debug dumps. Defaults
	// to :9190, empty disables the server.
	MetricsBindAddress *string `yaml:"metricsBindAddress,omitempty"`
}
