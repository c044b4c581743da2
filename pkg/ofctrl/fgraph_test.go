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

import (
	"net"
	"testing"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sender that remembers everything
type recordingSender struct {
	msgs []util.Message
}

func (r *recordingSender) Send(msg util.Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestNewTable(t *testing.T) {
	sw := NewSwitch(&recordingSender{}, testDpid)

	assert.Equal(t, uint8(0), sw.DefaultTable().TableId)

	table, err := sw.NewTable(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), table.TableId)

	_, err = sw.NewTable(1)
	assert.Error(t, err)
}

func TestNewOutputPort(t *testing.T) {
	sw := NewSwitch(&recordingSender{}, testDpid)

	out, err := sw.NewOutputPort(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), out.PortNo())

	_, err = sw.NewOutputPort(0)
	assert.Error(t, err)

	_, err = sw.NewOutputPort(openflow13.P_FLOOD)
	assert.Error(t, err)
}

func TestMacFlowInstall(t *testing.T) {
	sender := &recordingSender{}
	sw := NewSwitch(sender, testDpid)

	src, _ := net.ParseMAC("02:00:00:00:00:0a")
	dst, _ := net.ParseMAC("02:00:00:00:00:0b")

	flow, err := sw.DefaultTable().NewFlow(FlowMatch{
		Priority:  100,
		InputPort: 1,
		MacSa:     &src,
		MacDa:     &dst,
	})
	require.NoError(t, err)
	flow.SetTimeouts(5, 15)
	flow.SetBufferId(77)

	out, err := sw.NewOutputPort(2)
	require.NoError(t, err)
	require.NoError(t, flow.Next(out))

	require.Len(t, sender.msgs, 1)
	flowMod, ok := sender.msgs[0].(*openflow13.FlowMod)
	require.True(t, ok)

	assert.Equal(t, uint8(openflow13.FC_ADD), flowMod.Command)
	assert.Equal(t, uint16(100), flowMod.Priority)
	assert.Equal(t, uint16(5), flowMod.IdleTimeout)
	assert.Equal(t, uint16(15), flowMod.HardTimeout)
	assert.Equal(t, uint32(77), flowMod.BufferId)
	assert.Len(t, flowMod.Match.Fields, 3)

	require.Len(t, flowMod.Instructions, 1)
	instr, ok := flowMod.Instructions[0].(*openflow13.InstrActions)
	require.True(t, ok)
	require.Len(t, instr.Actions, 1)
	act, ok := instr.Actions[0].(*openflow13.ActionOutput)
	require.True(t, ok)
	assert.Equal(t, uint32(2), act.Port)

	// Re-installing the same flow modifies it
	require.NoError(t, flow.Next(out))
	require.Len(t, sender.msgs, 2)
	assert.Equal(t, uint8(openflow13.FC_MODIFY), sender.msgs[1].(*openflow13.FlowMod).Command)
}

func TestTableMissFlow(t *testing.T) {
	sw := NewSwitch(&recordingSender{}, testDpid)

	flow, err := sw.DefaultTable().NewFlow(FlowMatch{Priority: 0})
	require.NoError(t, err)
	flow.NextElem = sw.SendToController()

	flowMod, err := flow.FlowMod()
	require.NoError(t, err)

	assert.Equal(t, uint32(NoBuffer), flowMod.BufferId)
	assert.Empty(t, flowMod.Match.Fields)
	require.Len(t, flowMod.Instructions, 1)
	act := flowMod.Instructions[0].(*openflow13.InstrActions).Actions[0].(*openflow13.ActionOutput)
	assert.Equal(t, uint32(openflow13.P_CONTROLLER), act.Port)
	assert.Equal(t, uint16(openflow13.OFPCML_NO_BUFFER), act.MaxLen)
}

func TestDropFlowHasNoInstructions(t *testing.T) {
	sw := NewSwitch(&recordingSender{}, testDpid)

	flow, err := sw.DefaultTable().NewFlow(FlowMatch{Priority: 1})
	require.NoError(t, err)
	flow.NextElem = sw.DropAction()

	flowMod, err := flow.FlowMod()
	require.NoError(t, err)
	assert.Empty(t, flowMod.Instructions)
}

func TestFlowWithoutNextElem(t *testing.T) {
	sw := NewSwitch(&recordingSender{}, testDpid)

	flow, err := sw.DefaultTable().NewFlow(FlowMatch{Priority: 1})
	require.NoError(t, err)

	_, err = flow.FlowMod()
	assert.Error(t, err)
}

func TestPacketOut(t *testing.T) {
	sender := &recordingSender{}
	sw := NewSwitch(sender, testDpid)

	// Buffered packet, no data
	require.NoError(t, sw.PacketOut(openflow13.P_CONTROLLER, 9, nil, sw.FloodOutput()))
	require.Len(t, sender.msgs, 1)
	pktOut := sender.msgs[0].(*openflow13.PacketOut)
	assert.Equal(t, uint32(9), pktOut.BufferId)
	assert.Equal(t, uint32(openflow13.P_CONTROLLER), pktOut.InPort)
	assert.Nil(t, pktOut.Data)
	require.Len(t, pktOut.Actions, 1)
	assert.Equal(t, uint32(openflow13.P_FLOOD), pktOut.Actions[0].(*openflow13.ActionOutput).Port)

	// Unbuffered packet without data is rejected
	assert.Error(t, sw.PacketOut(1, NoBuffer, nil, sw.FloodOutput()))
	assert.Len(t, sender.msgs, 1)

	// Drop sends nothing
	assert.NoError(t, sw.PacketOut(1, 9, nil, sw.DropAction()))
	assert.Len(t, sender.msgs, 1)
}
