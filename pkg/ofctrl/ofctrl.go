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

// This library implements a simple openflow 1.3 controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/contiv/l2switch/pkg/libfsm"
	"github.com/contiv/libOpenflow/common"
	"github.com/contiv/libOpenflow/openflow13"

	log "github.com/sirupsen/logrus"
)

// Note: Command to make ovs connect to controller:
// ovs-vsctl set-controller <bridge-name> tcp:<ip-addr>:<port>
// E.g.    ovs-vsctl set-controller ovsbr0 tcp:127.0.0.1:6633

// To enable openflow1.3 support in OVS:
// ovs-vsctl set bridge <bridge-name> protocols=OpenFlow10,OpenFlow11,OpenFlow12,OpenFlow13
// E.g. sudo ovs-vsctl set bridge ovsbr0 protocols=OpenFlow10,OpenFlow11,OpenFlow12,OpenFlow13

// ErrHandshakeTimeout is returned when a switch does not complete the handshake in time
var ErrHandshakeTimeout = errors.New("openflow handshake timed out")

// AppInterface is implemented by applications running on the controller.
// Callbacks are made from the switch receive goroutines.
type AppInterface interface {
	// A switch completed the handshake
	SwitchConnected(sw *OFSwitch)

	// The connection to a switch went down
	SwitchDisconnected(sw *OFSwitch)

	// Packet sent to the controller
	PacketRcvd(sw *OFSwitch, pkt *openflow13.PacketIn)

	// Reply to a multipart (stats) request
	MultipartReply(sw *OFSwitch, rep *openflow13.MultipartReply)
}

// Options for the controller
type Options struct {
	HandshakeTimeout time.Duration // Time allowed for hello + features exchange
	EchoInterval     time.Duration // Keepalive period, zero disables keepalives
}

// DefaultOptions returns a 3s handshake timeout and 5s keepalives
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 3 * time.Second,
		EchoInterval:     5 * time.Second,
	}
}

type Controller struct {
	app     AppInterface
	options Options

	mutex    sync.Mutex
	switchDb map[string]*OFSwitch // switches indexed by dpid
}

// Create a new controller
func NewController(app AppInterface, options Options) *Controller {
	return &Controller{
		app:      app,
		options:  options,
		switchDb: make(map[string]*OFSwitch),
	}
}

// Listen on addr until ctx is cancelled
func (c *Controller) Listen(ctx context.Context, addr string) error {
	sock, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	log.Infof("Listening for openflow connections on %s", sock.Addr())
	return c.Serve(ctx, sock)
}

// Serve accepts switch connections on sock until ctx is cancelled
func (c *Controller) Serve(ctx context.Context, sock net.Listener) error {
	go func() {
		<-ctx.Done()
		sock.Close()
	}()

	for {
		conn, err := sock.Accept()
		if err != nil {
			if ctx.Err() != nil {
				c.disconnectAll()
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		go c.handleConnection(ctx, conn)
	}
}

// Switch returns the connected switch with dpid
func (c *Controller) Switch(dpid net.HardwareAddr) *OFSwitch {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.switchDb[dpid.String()]
}

// NumSwitches returns the number of connected switches
func (c *Controller) NumSwitches() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.switchDb)
}

func (c *Controller) addSwitch(sw *OFSwitch) {
	c.mutex.Lock()
	old := c.switchDb[sw.dpid.String()]
	c.switchDb[sw.dpid.String()] = sw
	c.mutex.Unlock()

	// A switch that reconnects replaces its stale connection
	if old != nil {
		log.Warnf("Switch %s reconnected, closing the old connection", sw.dpid)
		old.Disconnect()
	}
}

func (c *Controller) removeSwitch(sw *OFSwitch) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.switchDb[sw.dpid.String()] == sw {
		delete(c.switchDb, sw.dpid.String())
	}
}

func (c *Controller) disconnectAll() {
	c.mutex.Lock()
	switches := make([]*OFSwitch, 0, len(c.switchDb))
	for _, sw := range c.switchDb {
		switches = append(switches, sw)
	}
	c.mutex.Unlock()

	for _, sw := range switches {
		sw.Disconnect()
	}
}

// Handshake states
const (
	stateHelloWait    = "helloWait"
	stateFeaturesWait = "featuresWait"
	stateConnected    = "connected"
	stateClosed       = "closed"
)

// handshake drives hello and features exchange on a new connection
type handshake struct {
	ctrler *Controller
	stream *MessageStream
	fsm    *libfsm.Fsm
	sw     *OFSwitch
}

func newHandshake(c *Controller, stream *MessageStream) *handshake {
	hs := &handshake{ctrler: c, stream: stream}

	hs.fsm = libfsm.NewFsm(fmt.Sprintf("handshake(%v)", stream.GetAddr()), &libfsm.FsmTable{
		// currentState,  event,      newState,   callback
		{CurrState: stateHelloWait, EventName: "hello", NewState: stateFeaturesWait, Callback: hs.helloRcvd},
		{CurrState: stateFeaturesWait, EventName: "features", NewState: stateConnected, Callback: hs.featuresRcvd},
		{CurrState: stateHelloWait, EventName: "error", NewState: stateClosed, Callback: nil},
		{CurrState: stateFeaturesWait, EventName: "error", NewState: stateClosed, Callback: nil},
	}, stateHelloWait)

	return hs
}

// A Hello message completes version negotiation. We need 1.3 or newer.
func (hs *handshake) helloRcvd(e libfsm.Event) error {
	hello := e.EventData.(*common.Hello)
	if hello.Version < openflow13.VERSION {
		return fmt.Errorf("unsupported openflow version %d, this controller requires openflow 1.3", hello.Version)
	}

	log.Debugf("Received Openflow %d Hello message", hello.Version)
	hs.stream.Version = openflow13.VERSION

	return hs.stream.Send(openflow13.NewFeaturesRequest())
}

// After a valid FeaturesReply has been received we have all the
// information we need. Create a new switch object and notify applications.
func (hs *handshake) featuresRcvd(e libfsm.Event) error {
	features := e.EventData.(*openflow13.SwitchFeatures)
	log.Debugf("Received ofp1.3 Switch feature response: %+v", *features)

	hs.sw = newSwitch(hs.stream, features.DPID, hs.ctrler)
	return nil
}

func (c *Controller) handleConnection(ctx context.Context, conn net.Conn) {
	stream := NewMessageStream(conn)

	log.Infof("New connection from %v", stream.GetAddr())

	// Send ofp 1.3 Hello by default
	h, err := common.NewHello(openflow13.VERSION)
	if err != nil {
		log.Errorf("Failed to build hello. Err: %v", err)
		stream.Shutdown()
		return
	}
	h.Header.Length = h.Len()
	if err := stream.Send(h); err != nil {
		return
	}

	hs := newHandshake(c, stream)
	timer := time.NewTimer(c.options.HandshakeTimeout)
	defer timer.Stop()

	for {
		switch hs.fsm.State() {
		case stateConnected:
			// Let switch instance handle all future messages..
			hs.sw.start()
			return
		case stateClosed:
			stream.Shutdown()
			return
		}

		select {
		case msg := <-stream.Inbound:
			var event libfsm.Event
			switch m := msg.(type) {
			case *common.Hello:
				event = libfsm.Event{EventName: "hello", EventData: m}
			case *openflow13.SwitchFeatures:
				event = libfsm.Event{EventName: "features", EventData: m}
			case *openflow13.ErrorMsg:
				// An error message may indicate a version mismatch. We
				// disconnect if an error occurs this early.
				log.Warnf("Received ofp1.3 error msg during handshake: %+v", *m)
				event = libfsm.Event{EventName: "error", EventData: m}
			case *common.Header:
				if m.Type == openflow13.Type_EchoRequest {
					reply := openflow13.NewEchoReply()
					reply.Xid = m.Xid
					stream.Send(reply)
				}
				continue
			default:
				log.Debugf("Ignoring %T during handshake", msg)
				continue
			}

			if err := hs.fsm.FsmEvent(event); err != nil {
				log.Warnf("Handshake with %v failed. Err: %v", stream.GetAddr(), err)
				stream.Shutdown()
				return
			}

		case err := <-stream.Error:
			// The connection has been shutdown.
			log.Infof("Connection from %v closed during handshake. Err: %v", stream.GetAddr(), err)
			return

		case <-timer.C:
			// Both the controller and switch are no longer communicating.
			// The TCPConn is still established though.
			log.Warnf("Connection from %v: %v", stream.GetAddr(), ErrHandshakeTimeout)
			stream.Shutdown()
			return

		case <-ctx.Done():
			stream.Shutdown()
			return
		}
	}
}
