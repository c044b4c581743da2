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

// This file implements the forwarding graph API for the table

import (
	"sync/atomic"

	"github.com/contiv/libOpenflow/openflow13"
)

// Fgraph table element
type Table struct {
	Switch  *OFSwitch // Switch where this table resides
	TableId uint8     // Openflow table id
	flowIds uint64    // Last flow id handed out
}

// Fgraph element type for the table
func (self *Table) Type() string {
	return "table"
}

// instruction set for table element
func (self *Table) GetFlowInstr() openflow13.Instruction {
	return openflow13.NewInstrGotoTable(self.TableId)
}

// NewFlow creates a flow in the table. The flow is installed when its
// next element is set.
func (self *Table) NewFlow(match FlowMatch) (*Flow, error) {
	flow := &Flow{
		Table:    self,
		Match:    match,
		BufferId: NoBuffer,
		flowId:   atomic.AddUint64(&self.flowIds, 1),
	}

	return flow, nil
}
