/***
Copyright 2014 Cisco Systems Inc. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package l2switch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "l2switch"

// Forwarding decisions
const (
	DecisionFlood   = "flood"
	DecisionInstall = "install"
	DecisionDrop    = "drop"
)

var (
	framesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "frames_total",
			Help:      "Count of frames processed by the forwarding engines, by decision.",
		},
		[]string{"decision"},
	)
	rejectedFramesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "rejected_frames_total",
			Help:      "Count of malformed frames rejected before reaching a forwarding engine.",
		},
	)
	connectedSwitchesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "connected_switches",
			Help:      "Number of switches with a live forwarding engine.",
		},
	)
	learnedAddressesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "learned_addresses",
			Help:      "Number of hardware addresses in the learning table of a switch.",
		},
		[]string{"dpid"},
	)
)

var registerMetrics sync.Once

// RegisterMetrics registers all metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(framesCounter)
		reg.MustRegister(rejectedFramesCounter)
		reg.MustRegister(connectedSwitchesGauge)
		reg.MustRegister(learnedAddressesGauge)
	})
}

// RecordRejectedFrame counts a frame dropped by the transport adapter
func RecordRejectedFrame() {
	rejectedFramesCounter.Inc()
}
