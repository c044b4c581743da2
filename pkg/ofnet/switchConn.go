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

// This file implements the connection handed to the forwarding engine.
// Commands are encoded as flow mods and packet outs.

import (
	"errors"
	"fmt"

	"github.com/contiv/l2switch/pkg/l2switch"
	"github.com/contiv/l2switch/pkg/ofctrl"
	"github.com/contiv/libOpenflow/openflow13"

	log "github.com/sirupsen/logrus"
)

var errNoPacket = errors.New("command has no packet-in payload")

type switchConn struct {
	agent   *LearnAgent
	sw      *ofctrl.OFSwitch
	logger  *log.Entry
	frameFn func(*l2switch.Frame)
	statsFn func([]l2switch.PortStats)
}

func newSwitchConn(agent *LearnAgent, sw *ofctrl.OFSwitch) *switchConn {
	return &switchConn{
		agent:  agent,
		sw:     sw,
		logger: log.WithField("dpid", sw.DPID().String()),
	}
}

func (self *switchConn) ID() string {
	return self.sw.DPID().String()
}

func (self *switchConn) SubscribeFrames(handler func(*l2switch.Frame)) {
	self.frameFn = handler
}

func (self *switchConn) SubscribeStats(handler func([]l2switch.PortStats)) {
	self.statsFn = handler
}

// Send encodes cmd for the switch. Failures are logged, a broken
// connection shows up as a disconnect.
func (self *switchConn) Send(cmd l2switch.Command) {
	var err error

	switch c := cmd.(type) {
	case l2switch.Flood:
		err = self.flood(c)
	case l2switch.InstallRule:
		err = self.installRule(c)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Kind())
	}

	if err != nil {
		self.logger.Errorf("Failed to send %s command. Err: %v", cmd.Kind(), err)
	}
}

func packetOf(payload interface{}) *openflow13.PacketIn {
	pkt, _ := payload.(*openflow13.PacketIn)
	return pkt
}

// Flood the packet out of all ports except the one it came in on
func (self *switchConn) flood(cmd l2switch.Flood) error {
	pkt := packetOf(cmd.Payload)
	if pkt == nil {
		return errNoPacket
	}

	inPort, err := inPortOf(pkt)
	if err != nil {
		return err
	}

	self.logger.Debugf("Flooding packet from port %d", inPort)
	return self.sw.PacketOut(inPort, pkt.BufferId, &pkt.Data, self.sw.FloodOutput())
}

// Install a mac flow and forward the triggering packet through it
func (self *switchConn) installRule(cmd l2switch.InstallRule) error {
	src := cmd.Match.Src
	dst := cmd.Match.Dst

	macFlow, err := self.sw.DefaultTable().NewFlow(ofctrl.FlowMatch{
		Priority:  self.agent.config.FlowPriority,
		InputPort: cmd.Match.InPort,
		MacSa:     &src,
		MacDa:     &dst,
	})
	if err != nil {
		return err
	}
	macFlow.SetTimeouts(cmd.IdleTimeout, cmd.HardTimeout)

	pkt := packetOf(cmd.Payload)
	if pkt != nil && pkt.BufferId != ofctrl.NoBuffer {
		// Switch releases the buffered packet through the new flow
		macFlow.SetBufferId(pkt.BufferId)
	}

	outPort, err := self.sw.NewOutputPort(cmd.OutPort)
	if err != nil {
		return err
	}

	self.logger.Debugf("Installing flow %v -> %v from port %d to port %d", src, dst, cmd.Match.InPort, cmd.OutPort)
	if err := macFlow.Next(outPort); err != nil {
		return err
	}

	// A flow mod does not carry packet data, send unbuffered packets separately
	if pkt != nil && pkt.BufferId == ofctrl.NoBuffer {
		return self.sw.PacketOut(cmd.Match.InPort, ofctrl.NoBuffer, &pkt.Data, outPort)
	}

	return nil
}
