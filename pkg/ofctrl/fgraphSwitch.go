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

// This file implements the forwarding graph API for the switch

import (
	"errors"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
)

// Initialize the fgraph elements on the switch
func (self *OFSwitch) initFgraph() {
	// Create the table DB with table 0
	self.tableDb = make(map[uint8]*Table)
	self.tableDb[0] = &Table{Switch: self, TableId: 0}

	// Create drop action
	self.dropAction = &Output{outputType: "drop", portNo: openflow13.P_ANY}

	// create send to controller action
	self.sendToCtrler = &Output{outputType: "toController", portNo: openflow13.P_CONTROLLER}

	// Flood to all ports
	self.floodOutput = &Output{outputType: "flood", portNo: openflow13.P_FLOOD}
}

// Create a new table. return an error if it already exists
func (self *OFSwitch) NewTable(tableId uint8) (*Table, error) {
	// check if the table already exists
	if self.tableDb[tableId] != nil {
		return nil, errors.New("Table already exists")
	}

	table := &Table{Switch: self, TableId: tableId}
	self.tableDb[tableId] = table

	return table, nil
}

// Return table 0 which is the starting table for all packets
func (self *OFSwitch) DefaultTable() *Table {
	return self.tableDb[0]
}

// Create a new output graph element. portNo is a physical port or the
// local port of the bridge.
func (self *OFSwitch) NewOutputPort(portNo uint32) (*Output, error) {
	if portNo == 0 || (portNo > openflow13.P_MAX && portNo != openflow13.P_LOCAL) {
		return nil, errors.New("Invalid output port")
	}

	return &Output{outputType: "port", portNo: portNo}, nil
}

// Return the drop graph element
func (self *OFSwitch) DropAction() *Output {
	return self.dropAction
}

// Return send to controller graph element
func (self *OFSwitch) SendToController() *Output {
	return self.sendToCtrler
}

// Return the flood graph element
func (self *OFSwitch) FloodOutput() *Output {
	return self.floodOutput
}

// PacketOut sends a packet out of an output element. Buffered packets are
// referenced by bufferId, otherwise data carries the whole frame.
func (self *OFSwitch) PacketOut(inPort uint32, bufferId uint32, data util.Message, out *Output) error {
	act := out.GetOutAction()
	if act == nil {
		// Nothing to do for drop
		return nil
	}

	pktOut := openflow13.NewPacketOut()
	pktOut.InPort = inPort
	pktOut.BufferId = bufferId
	if bufferId == NoBuffer {
		if data == nil {
			return errors.New("packet out without buffer or data")
		}
		pktOut.Data = data
	}
	pktOut.AddAction(act)

	return self.Send(pktOut)
}
