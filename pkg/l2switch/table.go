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

// This file implements the mac learning table

import (
	"net"
)

// MacTable maps a hardware address to the port it was last seen on.
// It is owned by a single Engine and is not safe for concurrent use.
type MacTable struct {
	ports map[string]uint32 // raw mac bytes -> port number
}

// NewMacTable returns an empty table
func NewMacTable() *MacTable {
	return &MacTable{
		ports: make(map[string]uint32),
	}
}

// Lookup returns the port a mac address was last seen on
func (self *MacTable) Lookup(mac net.HardwareAddr) (uint32, bool) {
	port, ok := self.ports[string(mac)]
	return port, ok
}

// Record saves the port for a mac address, overwriting any older entry
func (self *MacTable) Record(mac net.HardwareAddr, port uint32) {
	self.ports[string(mac)] = port
}

// Size returns number of learned addresses
func (self *MacTable) Size() int {
	return len(self.ports)
}
