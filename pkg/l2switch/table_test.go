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

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMacTable(t *testing.T) {
	table := NewMacTable()

	_, ok := table.Lookup(macA)
	assert.False(t, ok)
	assert.Equal(t, 0, table.Size())

	table.Record(macA, 1)
	table.Record(macB, 2)
	table.Record(macA, 5)

	port, ok := table.Lookup(macA)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), port)
	assert.Equal(t, 2, table.Size())

	// Keys compare by value, not by slice identity
	copyB := net.HardwareAddr(append([]byte(nil), macB...))
	port, ok = table.Lookup(copyB)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), port)
}

func TestFrameIsMulticast(t *testing.T) {
	assert.True(t, (&Frame{Dst: bcastMac}).IsMulticast())
	assert.True(t, (&Frame{Dst: mcastMac}).IsMulticast())
	assert.False(t, (&Frame{Dst: macA}).IsMulticast())
	assert.False(t, (&Frame{}).IsMulticast())
}
