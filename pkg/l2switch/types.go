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
	"errors"
	"fmt"
	"net"
	"time"
)

// Default timeouts for installed flows, in seconds
const (
	DefaultIdleTimeout   = 5
	DefaultHardTimeout   = 15
	DefaultStatsInterval = 10 * time.Second
)

// Frame is a packet the switch could not forward by itself
type Frame struct {
	Src     net.HardwareAddr // Source mac
	Dst     net.HardwareAddr // Destination mac
	InPort  uint32           // Port the frame arrived on
	Payload interface{}      // Transport specific packet reference
}

// IsMulticast returns true for multicast and broadcast destinations
func (f *Frame) IsMulticast() bool {
	return len(f.Dst) > 0 && f.Dst[0]&0x01 != 0
}

// Command is an instruction sent to the switch
type Command interface {
	Kind() string
}

// Flood sends the frame out of all ports
type Flood struct {
	Payload interface{}
}

func (Flood) Kind() string { return "flood" }

// RuleMatch is the exact match criteria of an installed rule
type RuleMatch struct {
	InPort uint32
	Src    net.HardwareAddr
	Dst    net.HardwareAddr
}

// InstallRule installs a flow on the switch and forwards the triggering
// frame through it
type InstallRule struct {
	Match       RuleMatch
	OutPort     uint32
	IdleTimeout uint16
	HardTimeout uint16
	Payload     interface{}
}

func (InstallRule) Kind() string { return "install" }

// PortStats holds the counters of a single switch port
type PortStats struct {
	PortNo    uint32
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
}

// Connection is the control channel to one switch
type Connection interface {
	// Unique id of the switch, normally its datapath id
	ID() string

	// Send a command to the switch. Fire and forget.
	Send(cmd Command)

	// Register for frame arrived notifications
	SubscribeFrames(handler func(*Frame))

	// Register for port statistics notifications
	SubscribeStats(handler func([]PortStats))
}

// ConnectionSubscriber registers a handler for connection events
type ConnectionSubscriber func(handler func(Connection))

// Scheduler runs a recurring callback until stop is called
type Scheduler interface {
	Every(period time.Duration, fn func()) (stop func())
}

// StatsHandler is the extension point for port statistics polling.
type StatsHandler interface {
	RequestStats(conn Connection)
	PortStatsReceived(conn Connection, stats []PortStats)
}

// NopStatsHandler does nothing
type NopStatsHandler struct{}

func (NopStatsHandler) RequestStats(conn Connection)                         {}
func (NopStatsHandler) PortStatsReceived(conn Connection, stats []PortStats) {}

// Config for the forwarding engines
type Config struct {
	IdleTimeout   uint16        // Idle timeout of installed flows in seconds
	HardTimeout   uint16        // Hard timeout of installed flows in seconds
	StatsInterval time.Duration // Period of the stats request timer
}

// DefaultConfig returns idle 5s, hard 15s and a 10s stats timer
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   DefaultIdleTimeout,
		HardTimeout:   DefaultHardTimeout,
		StatsInterval: DefaultStatsInterval,
	}
}

// Validate checks the config values
func (c Config) Validate() error {
	if c.IdleTimeout == 0 || c.HardTimeout == 0 {
		return errors.New("flow timeouts must be non zero")
	}
	// OpenFlow accepts this, but it is almost always swapped flags
	if c.HardTimeout < c.IdleTimeout {
		return fmt.Errorf("hard timeout %d is less than idle timeout %d", c.HardTimeout, c.IdleTimeout)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("invalid stats interval %v", c.StatsInterval)
	}
	return nil
}
