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

package ofnet

// This file implements the learning agent which runs the openflow side of
// the learning switch. It assumes:
//      - Switches speak openflow 1.3 and connect to the controller
//      - Switch forwarding is fully controlled by the agent
//
// All controller callbacks are posted to a single event loop. Connection
// state below is only touched from that loop.

import (
	"github.com/contiv/l2switch/pkg/l2switch"
	"github.com/contiv/l2switch/pkg/ofctrl"
	"github.com/contiv/libOpenflow/openflow13"

	log "github.com/sirupsen/logrus"
)

// LearnAgent state
type LearnAgent struct {
	loop   Poster
	config AgentConfig
	conns  map[string]*switchConn // Connections indexed by dpid

	connectedHandlers    []func(l2switch.Connection)
	disconnectedHandlers []func(l2switch.Connection)
}

// Create a new learning agent. Callbacks run on loop.
func NewLearnAgent(loop Poster, config AgentConfig) *LearnAgent {
	if config.FlowPriority == 0 {
		config.FlowPriority = FLOW_MATCH_PRIORITY
	}

	return &LearnAgent{
		loop:   loop,
		config: config,
		conns:  make(map[string]*switchConn),
	}
}

// SubscribeConnected registers a handler for new switch connections. Must be
// called before switches connect.
func (self *LearnAgent) SubscribeConnected(handler func(l2switch.Connection)) {
	self.connectedHandlers = append(self.connectedHandlers, handler)
}

// SubscribeDisconnected registers a handler for closed switch connections
func (self *LearnAgent) SubscribeDisconnected(handler func(l2switch.Connection)) {
	self.disconnectedHandlers = append(self.disconnectedHandlers, handler)
}

// Run fn on the event loop
func (self *LearnAgent) post(event string, fn func()) {
	if err := self.loop.Post(fn); err != nil {
		log.Debugf("Dropping %s event. Err: %v", event, err)
	}
}

// Return the live connection of sw, nil if sw was replaced or is gone
func (self *LearnAgent) connOf(sw *ofctrl.OFSwitch) *switchConn {
	conn := self.conns[sw.DPID().String()]
	if conn == nil || conn.sw != sw {
		return nil
	}

	return conn
}

// Handle switch connected event
func (self *LearnAgent) SwitchConnected(sw *ofctrl.OFSwitch) {
	self.post("switch connected", func() {
		log.Infof("Switch %v connected", sw.DPID())

		// Init the Fgraph
		if err := self.initFgraph(sw); err != nil {
			log.Errorf("Failed to initialize switch %v. Err: %v", sw.DPID(), err)
		}

		conn := newSwitchConn(self, sw)
		self.conns[conn.ID()] = conn

		for _, handler := range self.connectedHandlers {
			handler(conn)
		}
	})
}

// Handle switch disconnect event
func (self *LearnAgent) SwitchDisconnected(sw *ofctrl.OFSwitch) {
	self.post("switch disconnected", func() {
		conn := self.connOf(sw)
		if conn == nil {
			log.Debugf("Ignoring disconnect of stale switch %v", sw.DPID())
			return
		}

		log.Infof("Switch %v disconnected", sw.DPID())
		delete(self.conns, conn.ID())

		for _, handler := range self.disconnectedHandlers {
			handler(conn)
		}
	})
}

// Receive a packet from the switch.
func (self *LearnAgent) PacketRcvd(sw *ofctrl.OFSwitch, pkt *openflow13.PacketIn) {
	frame, err := frameFromPacketIn(pkt)
	if err != nil {
		log.Warnf("Rejecting packet from switch %v. Err: %v", sw.DPID(), err)
		l2switch.RecordRejectedFrame()
		return
	}

	self.post("packet in", func() {
		conn := self.connOf(sw)
		if conn == nil || conn.frameFn == nil {
			return
		}

		conn.frameFn(frame)
	})
}

// Receive a multipart reply from the switch
func (self *LearnAgent) MultipartReply(sw *ofctrl.OFSwitch, rep *openflow13.MultipartReply) {
	if rep.Type != openflow13.MultipartType_Port {
		log.Debugf("Ignoring multipart reply type %d from switch %v", rep.Type, sw.DPID())
		return
	}

	stats := portStatsFromReply(rep)
	self.post("port stats", func() {
		conn := self.connOf(sw)
		if conn == nil || conn.statsFn == nil {
			return
		}

		conn.statsFn(stats)
	})
}

// initialize Fgraph on the switch
func (self *LearnAgent) initFgraph(sw *ofctrl.OFSwitch) error {
	// Send all packets that miss the mac flows to the controller.
	// This is installed at lowest priority so that learned flows win.
	missFlow, err := sw.DefaultTable().NewFlow(ofctrl.FlowMatch{
		Priority: FLOW_MISS_PRIORITY,
	})
	if err != nil {
		return err
	}

	return missFlow.Next(sw.SendToController())
}
