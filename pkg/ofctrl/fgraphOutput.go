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

// This file implements the forwarding graph API for the output element

import (
	"github.com/contiv/libOpenflow/openflow13"
)

type Output struct {
	outputType string // Output type: "drop", "toController", "flood" or "port"
	portNo     uint32 // Output port number
}

// Fgraph element type for the output
func (self *Output) Type() string {
	return "output"
}

// PortNo returns the openflow port number of the output
func (self *Output) PortNo() uint32 {
	return self.portNo
}

// GetOutAction returns the output action, nil for drop
func (self *Output) GetOutAction() openflow13.Action {
	switch self.outputType {
	case "toController":
		outputAct := openflow13.NewActionOutput(openflow13.P_CONTROLLER)
		// Dont buffer the packets being sent to controller
		outputAct.MaxLen = openflow13.OFPCML_NO_BUFFER
		return outputAct
	case "flood":
		return openflow13.NewActionOutput(openflow13.P_FLOOD)
	case "port":
		return openflow13.NewActionOutput(self.portNo)
	}

	return nil
}

// instruction set for output element
func (self *Output) GetFlowInstr() openflow13.Instruction {
	act := self.GetOutAction()
	if act == nil {
		// a nil instruction means drop action
		return nil
	}

	outputInstr := openflow13.NewInstrApplyActions()
	outputInstr.AddAction(act, false)

	return outputInstr
}
