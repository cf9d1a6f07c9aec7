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

package metrics

import (
	"sync"

	"k8s.io/component-base/metrics"
	"k8s.io/component-base/metrics/legacyregistry"
	"k8s.io/klog/v2"
)

const (
	metricNamespacePimd   = "pimd"
	metricSubsystemMroute = "mroute"

	LabelResultSuccess = "success"
	LabelResultFailure = "failure"
)

var (
	MrouteUpcalls = metrics.NewCounterVec(
		&metrics.CounterOpts{
			Namespace:      metricNamespacePimd,
			Subsystem:      metricSubsystemMroute,
			Name:           "upcalls_total",
			Help:           "Number of kernel upcalls received on the mroute socket. The upcall type is used as a label.",
			StabilityLevel: metrics.ALPHA,
		},
		[]string{"type"},
	)

	MrouteInstalls = metrics.NewCounterVec(
		&metrics.CounterOpts{
			Namespace:      metricNamespacePimd,
			Subsystem:      metricSubsystemMroute,
			Name:           "install_total",
			Help:           "Number of attempts to install a forwarding cache entry in the kernel.",
			StabilityLevel: metrics.ALPHA,
		},
		[]string{"result"},
	)

	MrouteRemovals = metrics.NewCounterVec(
		&metrics.CounterOpts{
			Namespace:      metricNamespacePimd,
			Subsystem:      metricSubsystemMroute,
			Name:           "remove_total",
			Help:           "Number of attempts to remove a forwarding cache entry from the kernel.",
			StabilityLevel: metrics.ALPHA,
		},
		[]string{"result"},
	)

	ChannelOilCount = metrics.NewGauge(
		&metrics.GaugeOpts{
			Namespace:      metricNamespacePimd,
			Subsystem:      metricSubsystemMroute,
			Name:           "channel_oil_count",
			Help:           "Number of forwarding cache entries.",
			StabilityLevel: metrics.ALPHA,
		},
	)

	UpstreamCount = metrics.NewGauge(
		&metrics.GaugeOpts{
			Namespace:      metricNamespacePimd,
			Name:           "upstream_count",
			Help:           "Number of (S,G) upstream states.",
			StabilityLevel: metrics.ALPHA,
		},
	)

	RegisterSent = metrics.NewCounterVec(
		&metrics.CounterOpts{
			Namespace:      metricNamespacePimd,
			Name:           "register_sent_total",
			Help:           "Number of Register, Null-Register and Register-Stop messages sent.",
			StabilityLevel: metrics.ALPHA,
		},
		[]string{"type"},
	)

	AssertTriggered = metrics.NewCounter(
		&metrics.CounterOpts{
			Namespace:      metricNamespacePimd,
			Name:           "assert_triggered_total",
			Help:           "Number of Assert negotiations started on a wrong incoming interface.",
			StabilityLevel: metrics.ALPHA,
		},
	)
)

var registerOnce sync.Once

// InitializePrometheusMetrics registers all the pimd metrics. It is safe to
// call it more than once.
func InitializePrometheusMetrics() {
	registerOnce.Do(func() {
		klog.InfoS("Initializing prometheus metrics")
		for _, c := range []metrics.Registerable{
			MrouteUpcalls,
			MrouteInstalls,
			MrouteRemovals,
			ChannelOilCount,
			UpstreamCount,
			RegisterSent,
			AssertTriggered,
		} {
			if err := legacyregistry.Register(c); err != nil {
				klog.ErrorS(err, "Failed to register metric with Prometheus", "metric", c.FQName())
			}
		}
	})
}

// ResultLabel returns the result label of an operation which returned err.
func ResultLabel(err error) string {
	if err != nil {
		return LabelResultFailure
	}
	return LabelResultSuccess
}
