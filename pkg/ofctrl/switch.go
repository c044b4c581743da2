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
	"sync/atomic"
	"time"

	"github.com/contiv/libOpenflow/common"
	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"

	log "github.com/sirupsen/logrus"
)

type OFSwitch struct {
	sender   Sender         // Where messages to the switch go
	stream   *MessageStream // nil for switches not backed by a connection
	dpid     net.HardwareAddr
	ctrler   *Controller
	lastSeen atomic.Int64 // unix nanos of the last inbound message

	// Fgraph elements
	tableDb      map[uint8]*Table
	dropAction   *Output
	sendToCtrler *Output
	floodOutput  *Output
}

// NewSwitch builds a switch that sends its messages to sender. Switches
// created this way are not attached to a controller.
func NewSwitch(sender Sender, dpid net.HardwareAddr) *OFSwitch {
	sw := &OFSwitch{
		sender: sender,
		dpid:   dpid,
	}
	sw.initFgraph()

	return sw
}

// Builds a switch for a connection that completed the handshake
func newSwitch(stream *MessageStream, dpid net.HardwareAddr, c *Controller) *OFSwitch {
	sw := NewSwitch(stream, dpid)
	sw.stream = stream
	sw.ctrler = c

	return sw
}

// start registers the switch, notifies the app and runs the receive loop
func (self *OFSwitch) start() {
	log.Infof("Openflow connection for switch %s from %v", self.dpid, self.stream.GetAddr())

	self.lastSeen.Store(time.Now().UnixNano())
	self.ctrler.addSwitch(self)
	self.ctrler.app.SwitchConnected(self)

	if self.ctrler.options.EchoInterval > 0 {
		go self.keepalive(self.ctrler.options.EchoInterval)
	}
	go self.receive()
}

// Returns the dpid of Switch s.
func (self *OFSwitch) DPID() net.HardwareAddr {
	return self.dpid
}

// Sends an OpenFlow message to this Switch.
func (self *OFSwitch) Send(req util.Message) error {
	return self.sender.Send(req)
}

// Disconnect closes the connection to the switch
func (self *OFSwitch) Disconnect() {
	if self.stream != nil {
		self.stream.Shutdown()
	}
}

// Send echo requests and drop the connection when the switch goes quiet
func (self *OFSwitch) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-self.stream.Done():
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, self.lastSeen.Load()))
			if idle > 3*interval {
				log.Warnf("Switch %s idle for %v, disconnecting", self.dpid, idle)
				self.Disconnect()
				return
			}
			self.Send(openflow13.NewEchoRequest())
		}
	}
}

// Receive loop for each Switch.
func (self *OFSwitch) receive() {
	for {
		select {
		case msg := <-self.stream.Inbound:
			// New message has been received from message stream.
			self.lastSeen.Store(time.Now().UnixNano())
			self.handleMessage(msg)
		case err := <-self.stream.Error:
			// Message stream has been disconnected.
			log.Infof("Switch %s disconnected. Err: %v", self.dpid, err)
			self.ctrler.removeSwitch(self)
			self.ctrler.app.SwitchDisconnected(self)
			return
		}
	}
}

func (self *OFSwitch) handleMessage(msg util.Message) {
	app := self.ctrler.app

	switch t := msg.(type) {
	case *common.Header:
		switch t.Type {
		case openflow13.Type_EchoRequest:
			// Send echo reply
			res := openflow13.NewEchoReply()
			res.Xid = t.Xid
			self.Send(res)
		case openflow13.Type_EchoReply:
			log.Debugf("Echo reply from switch %s", self.dpid)
		}
	case *openflow13.PacketIn:
		log.Debugf("Received packet from switch %s: %+v", self.dpid, t)
		app.PacketRcvd(self, t)
	case *openflow13.MultipartReply:
		app.MultipartReply(self, t)
	case *openflow13.ErrorMsg:
		log.Warnf("Received ofp1.3 error msg from switch %s: %+v", self.dpid, *t)
	case *openflow13.PortStatus:
		log.Infof("Port status change on switch %s: %+v", self.dpid, t)
	case *openflow13.FlowRemoved:
		log.Debugf("Flow removed on switch %s: %+v", self.dpid, t)
	default:
		log.Debugf("Ignoring %T from switch %s", msg, self.dpid)
	}
}
