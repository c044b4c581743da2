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

// This package points a local OVS bridge at the openflow controller

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/contiv/libovsdb"
	"github.com/golang/glog"
)

const (
	ovsDatabase    = "Open_vSwitch"
	ofProtocol     = "OpenFlow13"
	secureFailMode = "secure"
)

// ErrTransactFailed is returned when OVS rejects a transaction
var ErrTransactFailed = errors.New("OVS transaction failed")

// Subset of the ovsdb client used by the driver
type ovsdbClient interface {
	Transact(database string, operation ...libovsdb.Operation) ([]libovsdb.OperationResult, error)
	Disconnect()
}

// OVS driver state
type OvsDriver struct {
	// OVS client
	ovsClient ovsdbClient

	// Name of the OVS bridge
	ovsBridgeName string

	// OVSDB cache, updated from the client's notification goroutine
	cacheLock  sync.Mutex
	ovsdbCache map[string]map[string]libovsdb.Row
}

// Create a new OVS driver for bridgeName. The local cache is populated
// before returning.
func NewOvsDriver(addr string, port int, bridgeName string) (*OvsDriver, error) {
	// connect to OVS
	ovs, err := libovsdb.Connect(addr, port)
	if err != nil {
		return nil, fmt.Errorf("connecting to ovsdb at %s:%d: %w", addr, port, err)
	}

	ovsDriver := newOvsDriver(ovs, bridgeName)

	// Register for notifications
	ovs.Register(ovsDriver)

	// Populate initial state into cache
	initial, err := ovs.MonitorAll(ovsDatabase, "")
	if err != nil {
		ovs.Disconnect()
		return nil, fmt.Errorf("monitoring ovsdb: %w", err)
	}
	ovsDriver.populateCache(*initial)

	return ovsDriver, nil
}

func newOvsDriver(client ovsdbClient, bridgeName string) *OvsDriver {
	return &OvsDriver{
		ovsClient:     client,
		ovsBridgeName: bridgeName,
		ovsdbCache:    make(map[string]map[string]libovsdb.Row),
	}
}

// Close the ovsdb connection
func (self *OvsDriver) Close() {
	self.ovsClient.Disconnect()
}

// BridgeName returns the bridge managed by the driver
func (self *OvsDriver) BridgeName() string {
	return self.ovsBridgeName
}

// Populate local cache of ovs state
func (self *OvsDriver) populateCache(updates libovsdb.TableUpdates) {
	self.cacheLock.Lock()
	defer self.cacheLock.Unlock()

	for table, tableUpdate := range updates.Updates {
		if _, ok := self.ovsdbCache[table]; !ok {
			self.ovsdbCache[table] = make(map[string]libovsdb.Row)
		}
		for uuid, row := range tableUpdate.Rows {
			empty := libovsdb.Row{}
			if !reflect.DeepEqual(row.New, empty) {
				self.ovsdbCache[table][uuid] = row.New
			} else {
				delete(self.ovsdbCache[table], uuid)
			}
		}
	}
}

// Get the UUID for root
func (self *OvsDriver) getRootUuid() libovsdb.UUID {
	self.cacheLock.Lock()
	defer self.cacheLock.Unlock()

	for uuid := range self.ovsdbCache[ovsDatabase] {
		return libovsdb.UUID{GoUuid: uuid}
	}
	return libovsdb.UUID{}
}

// Find the uuid of a bridge by name
func (self *OvsDriver) bridgeUuid(bridgeName string) (libovsdb.UUID, bool) {
	self.cacheLock.Lock()
	defer self.cacheLock.Unlock()

	for uuid, row := range self.ovsdbCache["Bridge"] {
		if name, ok := row.Fields["name"].(string); ok && name == bridgeName {
			return libovsdb.UUID{GoUuid: uuid}, true
		}
	}
	return libovsdb.UUID{}, false
}

// IsBridgePresent checks the local cache for the bridge
func (self *OvsDriver) IsBridgePresent(bridgeName string) bool {
	_, ok := self.bridgeUuid(bridgeName)
	return ok
}

// Wrapper for ovsDB transaction
func (self *OvsDriver) ovsdbTransact(ops []libovsdb.Operation) error {
	glog.V(2).Infof("Transaction: %+v", ops)

	// Perform OVSDB transaction
	reply, err := self.ovsClient.Transact(ovsDatabase, ops...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactFailed, err)
	}

	if len(reply) < len(ops) {
		glog.Errorf("Unexpected number of replies. Expected: %d, Recvd: %d", len(ops), len(reply))
		return fmt.Errorf("%w: unexpected number of replies", ErrTransactFailed)
	}

	// Parse reply and look for errors
	for _, o := range reply {
		if o.Error != "" {
			return fmt.Errorf("%w: %s. Details: %s", ErrTransactFailed, o.Error, o.Details)
		}
	}

	return nil
}

// **************** OVS driver API ********************

// EnsureBridge creates the driver's bridge unless it exists
func (self *OvsDriver) EnsureBridge() error {
	if self.IsBridgePresent(self.ovsBridgeName) {
		glog.Infof("Bridge %s already exists", self.ovsBridgeName)
		return nil
	}

	return self.CreateBridge(self.ovsBridgeName)
}

func (self *OvsDriver) CreateBridge(bridgeName string) error {
	glog.Infof("Creating bridge %s", bridgeName)
	return self.ovsdbTransact(createBridgeOps(bridgeName, self.getRootUuid()))
}

// Delete a bridge from ovs
func (self *OvsDriver) DeleteBridge(bridgeName string) error {
	brUuid, ok := self.bridgeUuid(bridgeName)
	if !ok {
		return fmt.Errorf("bridge %s not found", bridgeName)
	}

	glog.Infof("Deleting bridge %s", bridgeName)
	return self.ovsdbTransact(deleteBridgeOps(bridgeName, brUuid, self.getRootUuid()))
}

// SetController makes the bridge speak openflow 1.3 to target only, e.g.
// tcp:127.0.0.1:6633
func (self *OvsDriver) SetController(target string) error {
	ops, err := setControllerOps(self.ovsBridgeName, target)
	if err != nil {
		return err
	}

	glog.Infof("Setting controller of bridge %s to %s", self.ovsBridgeName, target)
	return self.ovsdbTransact(ops)
}

func createBridgeOps(bridgeName string, rootUuid libovsdb.UUID) []libovsdb.Operation {
	namedUuidStr := "l2bridge"

	bridge := make(map[string]interface{})
	bridge["name"] = bridgeName
	brOp := libovsdb.Operation{
		Op:       "insert",
		Table:    "Bridge",
		Row:      bridge,
		UUIDName: namedUuidStr,
	}

	// Inserting/Deleting a Bridge row in Bridge table requires mutating
	// the open_vswitch table.
	brUuid := []libovsdb.UUID{{GoUuid: namedUuidStr}}
	mutateSet, _ := libovsdb.NewOvsSet(brUuid)
	mutation := libovsdb.NewMutation("bridges", "insert", mutateSet)
	condition := libovsdb.NewCondition("_uuid", "==", rootUuid)

	mutateOp := libovsdb.Operation{
		Op:        "mutate",
		Table:     ovsDatabase,
		Mutations: []interface{}{mutation},
		Where:     []interface{}{condition},
	}

	return []libovsdb.Operation{brOp, mutateOp}
}

func deleteBridgeOps(bridgeName string, brUuid, rootUuid libovsdb.UUID) []libovsdb.Operation {
	condition := libovsdb.NewCondition("name", "==", bridgeName)
	brOp := libovsdb.Operation{
		Op:    "delete",
		Table: "Bridge",
		Where: []interface{}{condition},
	}

	mutateSet, _ := libovsdb.NewOvsSet([]libovsdb.UUID{brUuid})
	mutation := libovsdb.NewMutation("bridges", "delete", mutateSet)
	condition = libovsdb.NewCondition("_uuid", "==", rootUuid)
	mutateOp := libovsdb.Operation{
		Op:        "mutate",
		Table:     ovsDatabase,
		Mutations: []interface{}{mutation},
		Where:     []interface{}{condition},
	}

	return []libovsdb.Operation{brOp, mutateOp}
}

func setControllerOps(bridgeName, target string) ([]libovsdb.Operation, error) {
	namedUuidStr := "l2ctrl"

	// Add a row in the Controller table
	ctrl := make(map[string]interface{})
	ctrl["target"] = target
	ctrlOp := libovsdb.Operation{
		Op:       "insert",
		Table:    "Controller",
		Row:      ctrl,
		UUIDName: namedUuidStr,
	}

	// Point the bridge at it. Secure fail mode keeps the bridge from
	// forwarding on its own while the controller is away.
	ctrlSet, err := libovsdb.NewOvsSet([]libovsdb.UUID{{GoUuid: namedUuidStr}})
	if err != nil {
		return nil, err
	}
	protoSet, err := libovsdb.NewOvsSet([]string{ofProtocol})
	if err != nil {
		return nil, err
	}

	bridge := make(map[string]interface{})
	bridge["controller"] = ctrlSet
	bridge["protocols"] = protoSet
	bridge["fail_mode"] = secureFailMode

	condition := libovsdb.NewCondition("name", "==", bridgeName)
	brOp := libovsdb.Operation{
		Op:    "update",
		Table: "Bridge",
		Row:   bridge,
		Where: []interface{}{condition},
	}

	return []libovsdb.Operation{ctrlOp, brOp}, nil
}

// ************************ Notification handler for OVS DB changes ****************
func (self *OvsDriver) Update(context interface{}, tableUpdates libovsdb.TableUpdates) {
	self.populateCache(tableUpdates)
}
func (self *OvsDriver) Disconnected(ovsClient *libovsdb.OvsdbClient) {
	glog.Errorf("OVS DB client disconnected")
}
func (self *OvsDriver) Locked([]interface{}) {
}
func (self *OvsDriver) Stolen([]interface{}) {
}
func (self *OvsDriver) Echo([]interface{}) {
}
