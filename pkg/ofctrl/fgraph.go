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

// This file defines the forwarding graph API
//
// Forwarding graph is local to each switch. A flow in a table points at the
// next element in the graph, either another table or an output.
//
// Example usage
// inpTable := switch.DefaultTable() // table 0. i.e starting table
//
// missFlow, _ := inpTable.NewFlow(FlowMatch{Priority: 0})
// missFlow.Next(switch.SendToController())
//
// macFlow, _ := inpTable.NewFlow(FlowMatch{
//                                Priority: 100,
//                                InputPort: 3,
//                                MacSa: &srcMac,
//                                MacDa: &dstMac,
//                               })
// macFlow.SetTimeouts(5, 15)
// outPort, _ := switch.NewOutputPort(4)
// macFlow.Next(outPort)

import (
	"github.com/contiv/libOpenflow/openflow13"
)

type FgraphElem interface {
	Type() string                         // Returns the type of fw graph element
	GetFlowInstr() openflow13.Instruction // Returns the formatted instruction set
}
