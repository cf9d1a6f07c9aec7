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

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/dukku1/quagga/pkg/pimd/interfacestore"
	"github.com/dukku1/quagga/pkg/pimd/mroute"
)

const (
	defaultRegisterInterface       = "pimreg"
	defaultSSMRange                = "232.0.0.0/8"
	defaultKeepAliveTime           = 210 * time.Second
	defaultRegisterSuppressionTime = 60 * time.Second
	defaultRegisterProbeTime       = 5 * time.Second
	defaultAssertTime              = 180 * time.Second
	defaultAssertOverrideInterval  = 3 * time.Second
	defaultAssertPreference        = 101
	defaultStatsInterval           = 10 * time.Second
	defaultMetricsBindAddress      = ":9190"

	modeSparse = "sm"
	modeSSM    = "ssm"
)

var multicastRange = netip.MustParsePrefix("224.0.0.0/4")

type staticRP struct {
	groupRange netip.Prefix
	address    netip.Addr
}

type Options struct {
	// The path of configuration file.
	configFile string
	// The configuration object
	config *PimdConfig

	keepAliveTime           time.Duration
	registerSuppressionTime time.Duration
	registerProbeTime       time.Duration
	assertTime              time.Duration
	assertOverrideInterval  time.Duration
	statsInterval           time.Duration
	ssmRange                netip.Prefix
	rps                     []staticRP
}

func newOptions() *Options {
	return &Options{
		config: new(PimdConfig),
	}
}

// addFlags adds flags to fs and binds them to options.
func (o *Options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configFile, "config", o.configFile, "The path to the configuration file")
}

// complete completes all the required options.
func (o *Options) complete(args []string) error {
	if len(o.configFile) > 0 {
		c, err := loadConfigFromFile(o.configFile)
		if err != nil {
			return err
		}
		o.config = c
	}
	o.setDefaults()
	return nil
}

// validate validates all the required options. It must be called after complete.
func (o *Options) validate(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("no positional arguments are supported")
	}
	if err := o.validateInterfaces(); err != nil {
		return err
	}

	var err error
	for _, d := range []struct {
		name  string
		value string
		out   *time.Duration
	}{
		{"keepAliveTime", o.config.KeepAliveTime, &o.keepAliveTime},
		{"registerSuppressionTime", o.config.RegisterSuppressionTime, &o.registerSuppressionTime},
		{"registerProbeTime", o.config.RegisterProbeTime, &o.registerProbeTime},
		{"assertTime", o.config.AssertTime, &o.assertTime},
		{"assertOverrideInterval", o.config.AssertOverrideInterval, &o.assertOverrideInterval},
		{"statsInterval", o.config.StatsInterval, &o.statsInterval},
	} {
		if *d.out, err = time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s %q is invalid: %w", d.name, d.value, err)
		}
		if *d.out <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	// The register-stop timer runs for a random time in [0.5, 1.5] times the
	// suppression time minus the probe time.
	if 2*o.registerProbeTime >= o.registerSuppressionTime {
		return fmt.Errorf("registerProbeTime must be less than half of registerSuppressionTime")
	}
	if o.assertOverrideInterval >= o.assertTime {
		return fmt.Errorf("assertOverrideInterval must be less than assertTime")
	}

	if o.ssmRange, err = parseGroupRange(o.config.SSMRange); err != nil {
		return fmt.Errorf("ssmRange is invalid: %w", err)
	}
	if o.rps, err = parseRendezvousPoints(o.config.RendezvousPoints); err != nil {
		return err
	}
	return nil
}

func (o *Options) validateInterfaces() error {
	if len(o.config.Interfaces) == 0 {
		return fmt.Errorf("at least one interface must be configured")
	}
	// VIF 0 is the register interface.
	if len(o.config.Interfaces) >= mroute.MaxVIFs {
		return fmt.Errorf("at most %d interfaces are supported", mroute.MaxVIFs-1)
	}
	names := sets.New[string](o.config.RegisterInterface)
	for _, iface := range o.config.Interfaces {
		if iface.Name == "" {
			return fmt.Errorf("interface name must not be empty")
		}
		if names.Has(iface.Name) {
			return fmt.Errorf("interface %s is configured more than once", iface.Name)
		}
		names.Insert(iface.Name)
		if iface.Mode != modeSparse && iface.Mode != modeSSM {
			return fmt.Errorf("mode %q of interface %s is unknown", iface.Mode, iface.Name)
		}
	}
	return nil
}

func parseGroupRange(s string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if !prefix.Addr().Is4() || prefix.Bits() < multicastRange.Bits() || !multicastRange.Contains(prefix.Addr()) {
		return netip.Prefix{}, fmt.Errorf("%s is not an IPv4 multicast range", s)
	}
	return prefix.Masked(), nil
}

func parseRendezvousPoints(configs []RPConfig) ([]staticRP, error) {
	rps := make([]staticRP, 0, len(configs))
	ranges := sets.New[netip.Prefix]()
	for _, c := range configs {
		groupRange, err := parseGroupRange(c.GroupRange)
		if err != nil {
			return nil, fmt.Errorf("RP group range is invalid: %w", err)
		}
		if ranges.Has(groupRange) {
			return nil, fmt.Errorf("more than one RP is configured for %s", groupRange)
		}
		ranges.Insert(groupRange)
		addr, err := netip.ParseAddr(c.Address)
		if err != nil {
			return nil, fmt.Errorf("RP address is invalid: %w", err)
		}
		if !addr.Is4() || addr.IsMulticast() || addr.IsUnspecified() {
			return nil, fmt.Errorf("RP address %s is not a unicast IPv4 address", addr)
		}
		rps = append(rps, staticRP{groupRange: groupRange, address: addr})
	}
	return rps, nil
}

// interfaceConfigs builds the store entries of the configured interfaces.
// newInterface looks up the kernel link of an interface.
func (o *Options) interfaceConfigs(newInterface func(name string, vif uint16, pim *interfacestore.PIMConfig) (*interfacestore.InterfaceConfig, error)) ([]*interfacestore.InterfaceConfig, error) {
	ifaces := []*interfacestore.InterfaceConfig{interfacestore.NewRegisterInterface(o.config.RegisterInterface)}
	for i, c := range o.config.Interfaces {
		var pim *interfacestore.PIMConfig
		if *c.PIM {
			pim = &interfacestore.PIMConfig{
				DesignatedRouter: *c.DesignatedRouter,
				SSMRange:         o.ssmRange,
			}
			if c.Mode == modeSSM {
				pim.Mode = interfacestore.ModeSSM
			}
		}
		iface, err := newInterface(c.Name, uint16(i+1), pim)
		if err != nil {
			return nil, err
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

func loadConfigFromFile(file string) (*PimdConfig, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var c PimdConfig
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// reloadRendezvousPoints reads the RP mappings from the configuration file
// again. The other settings only take effect on restart.
func (o *Options) reloadRendezvousPoints() ([]staticRP, error) {
	c, err := loadConfigFromFile(o.configFile)
	if err != nil {
		return nil, err
	}
	return parseRendezvousPoints(c.RendezvousPoints)
}

func (o *Options) setDefaults() {
	trueValue := true
	if o.config.RegisterInterface == "" {
		o.config.RegisterInterface = defaultRegisterInterface
	}
	for i := range o.config.Interfaces {
		iface := &o.config.Interfaces[i]
		if iface.PIM == nil {
			iface.PIM = &trueValue
		}
		if iface.DesignatedRouter == nil {
			iface.DesignatedRouter = &trueValue
		}
		if iface.Mode == "" {
			iface.Mode = modeSparse
		}
	}
	if o.config.SSMRange == "" {
		o.config.SSMRange = defaultSSMRange
	}
	setDefaultDuration(&o.config.KeepAliveTime, defaultKeepAliveTime)
	setDefaultDuration(&o.config.RegisterSuppressionTime, defaultRegisterSuppressionTime)
	setDefaultDuration(&o.config.RegisterProbeTime, defaultRegisterProbeTime)
	setDefaultDuration(&o.config.AssertTime, defaultAssertTime)
	setDefaultDuration(&o.config.AssertOverrideInterval, defaultAssertOverrideInterval)
	setDefaultDuration(&o.config.StatsInterval, defaultStatsInterval)
	if o.config.AssertPreference == 0 {
		o.config.AssertPreference = defaultAssertPreference
	}
	if o.config.MetricsBindAddress == nil {
		addr := defaultMetricsBindAddress
		o.config.MetricsBindAddress = &addr
	}
}

func setDefaultDuration(s *string, d time.Duration) {
	if *s == "" {
		*s = d.String()
	}
}
