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

package ofctrl

// This file implements the forwarding graph API for the flow

import (
	"fmt"
	"net"

	"github.com/contiv/libOpenflow/openflow13"

	log "github.com/sirupsen/logrus"
)

// Buffer id for packets not buffered on the switch
const NoBuffer uint32 = 0xffffffff

// Small subset of openflow fields we currently support
type FlowMatch struct {
	Priority  uint16            // Priority of the flow entry
	InputPort uint32            // Zero matches any port
	MacDa     *net.HardwareAddr // Destination mac
	MacSa     *net.HardwareAddr // Source mac
	Ethertype uint16            // Zero matches any ethertype
}

// State of a flow entry
type Flow struct {
	Table       *Table     // Table where this flow resides
	Match       FlowMatch  // Fields to be matched
	NextElem    FgraphElem // Next fw graph element
	IdleTimeout uint16     // Seconds without traffic before the switch removes the flow
	HardTimeout uint16     // Seconds after install before the switch removes the flow
	BufferId    uint32     // Buffered packet to apply the flow to
	isInstalled bool       // Is the flow installed in the switch
	flowId      uint64     // Unique ID for the flow
}

// Fgraph element type for the flow
func (self *Flow) Type() string {
	return "flow"
}

// A flow can not be the next element of another flow
func (self *Flow) GetFlowInstr() openflow13.Instruction {
	return nil
}

// SetTimeouts sets idle and hard timeouts, in seconds. Zero means no timeout.
func (self *Flow) SetTimeouts(idle, hard uint16) {
	self.IdleTimeout = idle
	self.HardTimeout = hard
}

// SetBufferId makes the switch run the buffered packet through the flow
// once it is installed
func (self *Flow) SetBufferId(bufferId uint32) {
	self.BufferId = bufferId
}

// Translate our match fields into openflow 1.3 match fields
func (self *Flow) xlateMatch() openflow13.Match {
	ofMatch := openflow13.NewMatch()

	if self.Match.InputPort != 0 {
		inportField := openflow13.NewInPortField(self.Match.InputPort)
		ofMatch.AddField(*inportField)
	}

	if self.Match.MacDa != nil {
		macDaField := openflow13.NewEthDstField(*self.Match.MacDa, nil)
		ofMatch.AddField(*macDaField)
	}

	if self.Match.MacSa != nil {
		macSaField := openflow13.NewEthSrcField(*self.Match.MacSa, nil)
		ofMatch.AddField(*macSaField)
	}

	if self.Match.Ethertype != 0 {
		etypeField := openflow13.NewEthTypeField(self.Match.Ethertype)
		ofMatch.AddField(*etypeField)
	}

	return *ofMatch
}

// FlowMod builds the flow mod message for the flow
func (self *Flow) FlowMod() (*openflow13.FlowMod, error) {
	if self.NextElem == nil {
		return nil, fmt.Errorf("flow %d has no next element", self.flowId)
	}

	// Create a flowmode entry
	flowMod := openflow13.NewFlowMod()
	flowMod.TableId = self.Table.TableId
	flowMod.Priority = self.Match.Priority
	flowMod.Cookie = self.flowId
	flowMod.IdleTimeout = self.IdleTimeout
	flowMod.HardTimeout = self.HardTimeout
	flowMod.BufferId = self.BufferId

	// Add or modify
	if !self.isInstalled {
		flowMod.Command = openflow13.FC_ADD
	} else {
		flowMod.Command = openflow13.FC_MODIFY
	}

	// convert match fields to openflow 1.3 format
	flowMod.Match = self.xlateMatch()

	// Based on the next elem, decide what to install
	switch self.NextElem.Type() {
	case "table", "output":
		// a nil instruction means drop action
		if instr := self.NextElem.GetFlowInstr(); instr != nil {
			flowMod.AddInstruction(instr)
		}
	default:
		return nil, fmt.Errorf("unknown fgraph element type %s", self.NextElem.Type())
	}

	return flowMod, nil
}

// Install a flow entry
func (self *Flow) install() error {
	flowMod, err := self.FlowMod()
	if err != nil {
		return err
	}

	log.Debugf("Sending flowmod: %+v", flowMod)

	// Send the message
	if err := self.Table.Switch.Send(flowMod); err != nil {
		return err
	}

	// Mark it as installed
	self.isInstalled = true

	return nil
}

// Set Next element in the Fgraph. This determines what actions will be
// part of the flow's instruction set
func (self *Flow) Next(elem FgraphElem) error {
	// Set the next element in the graph
	self.NextElem = elem

	// Install the flow entry
	return self.install()
}
