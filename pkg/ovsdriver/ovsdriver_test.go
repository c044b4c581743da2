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

package ovsdriver

import (
	"testing"

	"github.com/contiv/libovsdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOvsdb struct {
	transactions [][]libovsdb.Operation
	results      []libovsdb.OperationResult
	disconnected bool
}

func (f *fakeOvsdb) Transact(database string, ops ...libovsdb.Operation) ([]libovsdb.OperationResult, error) {
	f.transactions = append(f.transactions, ops)
	if f.results != nil {
		return f.results, nil
	}
	return make([]libovsdb.OperationResult, len(ops)), nil
}

func (f *fakeOvsdb) Disconnect() {
	f.disconnected = true
}

const (
	rootUuid   = "root-uuid"
	bridgeUuid = "bridge-uuid"
)

// Cache with the root row and one bridge
func populatedDriver(client ovsdbClient) *OvsDriver {
	drv := newOvsDriver(client, "l2br")
	drv.Update(nil, libovsdb.TableUpdates{
		Updates: map[string]libovsdb.TableUpdate{
			"Open_vSwitch": {Rows: map[string]libovsdb.RowUpdate{
				rootUuid: {New: libovsdb.Row{Fields: map[string]interface{}{"ovs_version": "2.17"}}},
			}},
			"Bridge": {Rows: map[string]libovsdb.RowUpdate{
				bridgeUuid: {New: libovsdb.Row{Fields: map[string]interface{}{"name": "l2br"}}},
			}},
		},
	})
	return drv
}

func TestCacheUpdates(t *testing.T) {
	drv := populatedDriver(&fakeOvsdb{})

	assert.True(t, drv.IsBridgePresent("l2br"))
	assert.False(t, drv.IsBridgePresent("other"))
	assert.Equal(t, rootUuid, drv.getRootUuid().GoUuid)

	// Empty new row removes the bridge
	drv.Update(nil, libovsdb.TableUpdates{
		Updates: map[string]libovsdb.TableUpdate{
			"Bridge": {Rows: map[string]libovsdb.RowUpdate{
				bridgeUuid: {Old: libovsdb.Row{Fields: map[string]interface{}{"name": "l2br"}}},
			}},
		},
	})
	assert.False(t, drv.IsBridgePresent("l2br"))
}

func TestEnsureBridgeExisting(t *testing.T) {
	client := &fakeOvsdb{}
	drv := populatedDriver(client)

	require.NoError(t, drv.EnsureBridge())
	assert.Empty(t, client.transactions)
}

func TestEnsureBridgeCreates(t *testing.T) {
	client := &fakeOvsdb{}
	drv := newOvsDriver(client, "newbr")

	require.NoError(t, drv.EnsureBridge())
	require.Len(t, client.transactions, 1)

	ops := client.transactions[0]
	require.Len(t, ops, 2)
	assert.Equal(t, "insert", ops[0].Op)
	assert.Equal(t, "Bridge", ops[0].Table)
	assert.Equal(t, "newbr", ops[0].Row["name"])
	assert.Equal(t, "mutate", ops[1].Op)
	assert.Equal(t, "Open_vSwitch", ops[1].Table)
}

func TestDeleteBridge(t *testing.T) {
	client := &fakeOvsdb{}
	drv := populatedDriver(client)

	require.NoError(t, drv.DeleteBridge("l2br"))
	require.Len(t, client.transactions, 1)
	assert.Equal(t, "delete", client.transactions[0][0].Op)

	assert.Error(t, drv.DeleteBridge("missing"))
	assert.Len(t, client.transactions, 1)
}

func TestSetController(t *testing.T) {
	client := &fakeOvsdb{}
	drv := populatedDriver(client)

	require.NoError(t, drv.SetController("tcp:127.0.0.1:6633"))
	require.Len(t, client.transactions, 1)

	ops := client.transactions[0]
	require.Len(t, ops, 2)
	assert.Equal(t, "Controller", ops[0].Table)
	assert.Equal(t, "tcp:127.0.0.1:6633", ops[0].Row["target"])
	assert.Equal(t, "update", ops[1].Op)
	assert.Equal(t, "secure", ops[1].Row["fail_mode"])
	assert.Contains(t, ops[1].Row, "protocols")
	assert.Contains(t, ops[1].Row, "controller")
}

func TestTransactErrors(t *testing.T) {
	client := &fakeOvsdb{results: []libovsdb.OperationResult{{}, {Error: "constraint violation", Details: "no root"}}}
	drv := populatedDriver(client)

	err := drv.SetController("tcp:127.0.0.1:6633")
	assert.ErrorIs(t, err, ErrTransactFailed)

	// Short reply
	client.results = []libovsdb.OperationResult{{}}
	err = drv.CreateBridge("br1")
	assert.ErrorIs(t, err, ErrTransactFailed)
}

func TestClose(t *testing.T) {
	client := &fakeOvsdb{}
	drv := newOvsDriver(client, "l2br")

	drv.Close()
	assert.True(t, client.disconnected)
}
