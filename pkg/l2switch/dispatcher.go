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

// This file implements the dispatcher that creates one forwarding engine
// per connected switch

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// EngineInfo is a point in time view of an engine
type EngineInfo struct {
	DPID             string
	LearnedAddresses int
	Counters
}

// Dispatcher owns the forwarding engines, keyed by connection id
type Dispatcher struct {
	config  Config
	sched   Scheduler
	stats   StatsHandler
	engines map[string]*Engine
}

// NewDispatcher creates a dispatcher. Engines are created with config and
// use sched for their stats timer.
func NewDispatcher(config Config, sched Scheduler) *Dispatcher {
	return &Dispatcher{
		config:  config,
		sched:   sched,
		stats:   NopStatsHandler{},
		engines: make(map[string]*Engine),
	}
}

// SetStatsHandler sets the stats handler for engines created from now on
func (self *Dispatcher) SetStatsHandler(stats StatsHandler) {
	self.stats = stats
}

// Register subscribes the dispatcher to switch connect and disconnect events
func (self *Dispatcher) Register(onConnected, onClosed ConnectionSubscriber) {
	onConnected(self.DeviceConnected)
	if onClosed != nil {
		onClosed(self.DeviceDisconnected)
	}
}

// DeviceConnected creates a forwarding engine bound to conn
func (self *Dispatcher) DeviceConnected(conn Connection) {
	id := conn.ID()

	if old, ok := self.engines[id]; ok {
		log.Warnf("Switch %s connected again, replacing its forwarding engine", id)
		old.Close()
	} else {
		connectedSwitchesGauge.Inc()
	}

	log.Infof("Creating forwarding engine for switch %s", id)
	self.engines[id] = NewEngine(conn, self.config, self.sched, self.stats)
}

// DeviceDisconnected discards the engine of conn and its learning table
func (self *Dispatcher) DeviceDisconnected(conn Connection) {
	id := conn.ID()

	engine, ok := self.engines[id]
	if !ok {
		log.Debugf("Disconnect for unknown switch %s", id)
		return
	}

	// The engine was already replaced by a newer connection
	if engine.conn != conn {
		log.Debugf("Ignoring disconnect of stale connection to switch %s", id)
		return
	}

	log.Infof("Removing forwarding engine for switch %s", id)
	engine.Close()
	delete(self.engines, id)
	connectedSwitchesGauge.Dec()
}

// Engine returns the engine of a switch
func (self *Dispatcher) Engine(id string) (*Engine, bool) {
	engine, ok := self.engines[id]
	return engine, ok
}

// Len returns the number of live engines
func (self *Dispatcher) Len() int {
	return len(self.engines)
}

// Snapshot returns info on all engines, sorted by dpid
func (self *Dispatcher) Snapshot() []EngineInfo {
	infos := make([]EngineInfo, 0, len(self.engines))
	for id, engine := range self.engines {
		infos = append(infos, EngineInfo{
			DPID:             id,
			LearnedAddresses: engine.TableSize(),
			Counters:         engine.Counters(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].DPID < infos[j].DPID
	})

	return infos
}
