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

// This file implements the per switch learning and forwarding engine.
// All methods must be called from a single goroutine; the event loop
// delivering notifications provides that guarantee.

import (
	"net"

	log "github.com/sirupsen/logrus"
)

// Counters of forwarding decisions made by an engine
type Counters struct {
	Floods   uint64
	Installs uint64
	Drops    uint64
}

// Engine turns one switch into an ethernet learning switch
type Engine struct {
	conn     Connection   // Channel to the switch
	table    *MacTable    // Mac address to port table
	config   Config       // Flow timeouts
	stats    StatsHandler // Stats polling extension point
	counters Counters     // Decision counters
	stopTick func()       // Stops the stats timer
	logger   *log.Entry   // Logger with switch context
	closed   bool
}

// NewEngine creates an engine for conn and subscribes it to the frame and
// stats notifications of the connection. A nil stats handler means no
// stats polling.
func NewEngine(conn Connection, config Config, sched Scheduler, stats StatsHandler) *Engine {
	if stats == nil {
		stats = NopStatsHandler{}
	}

	self := &Engine{
		conn:   conn,
		table:  NewMacTable(),
		config: config,
		stats:  stats,
		logger: log.WithField("dpid", conn.ID()),
	}

	conn.SubscribeFrames(self.FrameArrived)
	conn.SubscribeStats(self.statsReceived)

	if sched != nil && config.StatsInterval > 0 {
		self.stopTick = sched.Every(config.StatsInterval, self.statsTimer)
	}

	return self
}

// FrameArrived learns the source of the frame and decides what to do with it.
// At most one command is sent to the switch.
func (self *Engine) FrameArrived(frame *Frame) {
	if self.closed || frame == nil {
		return
	}

	// Learn the port of the source mac, even for multicast frames
	self.table.Record(frame.Src, frame.InPort)
	learnedAddressesGauge.WithLabelValues(self.conn.ID()).Set(float64(self.table.Size()))

	if frame.IsMulticast() {
		self.logger.Debugf("Flooding multicast frame %s -> %s from port %d", frame.Src, frame.Dst, frame.InPort)
		self.flood(frame)
		return
	}

	outPort, found := self.table.Lookup(frame.Dst)
	if !found {
		self.logger.Debugf("Flooding frame %s -> %s from port %d, destination unknown", frame.Src, frame.Dst, frame.InPort)
		self.flood(frame)
		return
	}

	// Destination is back out the port the frame came in on
	if outPort == frame.InPort {
		self.logger.Debugf("Dropping frame %s -> %s, destination is on input port %d", frame.Src, frame.Dst, frame.InPort)
		self.counters.Drops++
		framesCounter.WithLabelValues(DecisionDrop).Inc()
		return
	}

	self.logger.Debugf("Installing flow %s -> %s, port %d -> %d", frame.Src, frame.Dst, frame.InPort, outPort)
	self.counters.Installs++
	framesCounter.WithLabelValues(DecisionInstall).Inc()
	self.conn.Send(InstallRule{
		Match: RuleMatch{
			InPort: frame.InPort,
			Src:    frame.Src,
			Dst:    frame.Dst,
		},
		OutPort:     outPort,
		IdleTimeout: self.config.IdleTimeout,
		HardTimeout: self.config.HardTimeout,
		Payload:     frame.Payload,
	})
}

func (self *Engine) flood(frame *Frame) {
	self.counters.Floods++
	framesCounter.WithLabelValues(DecisionFlood).Inc()
	self.conn.Send(Flood{Payload: frame.Payload})
}

func (self *Engine) statsTimer() {
	if self.closed {
		return
	}
	self.stats.RequestStats(self.conn)
}

func (self *Engine) statsReceived(stats []PortStats) {
	if self.closed {
		return
	}
	self.stats.PortStatsReceived(self.conn, stats)
}

// ID returns the id of the switch this engine serves
func (self *Engine) ID() string {
	return self.conn.ID()
}

// Lookup returns the learned port of a mac address
func (self *Engine) Lookup(mac net.HardwareAddr) (uint32, bool) {
	return self.table.Lookup(mac)
}

// TableSize returns the number of learned addresses
func (self *Engine) TableSize() int {
	return self.table.Size()
}

// Counters returns the decision counters
func (self *Engine) Counters() Counters {
	return self.counters
}

// Close stops the stats timer. Notifications arriving after Close are ignored.
func (self *Engine) Close() {
	if self.closed {
		return
	}
	self.closed = true

	if self.stopTick != nil {
		self.stopTick()
	}
	learnedAddressesGauge.DeleteLabelValues(self.conn.ID())
}
