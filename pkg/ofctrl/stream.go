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

// This file implements the openflow message stream over a connection

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"

	log "github.com/sirupsen/logrus"
)

const (
	ofpHeaderLen = 8
	outboundLen  = 64
)

var (
	// ErrBadMessage is returned for messages that can not be parsed
	ErrBadMessage = errors.New("bad openflow message")

	// ErrStreamClosed is returned when sending on a closed stream
	ErrStreamClosed = errors.New("message stream closed")
)

// Sender sends openflow messages to a switch
type Sender interface {
	Send(msg util.Message) error
}

type MessageStream struct {
	conn net.Conn
	// OpenFlow Version
	Version uint8
	// Channel on which to publish the connection error. Exactly one error
	// is published once the stream stops, including after Shutdown.
	Error chan error
	// Channel on which to publish inbound messages
	Inbound chan util.Message
	// Channel on which to receive outbound messages
	outbound chan util.Message
	// Closed when the stream shuts down
	done      chan struct{}
	closeOnce sync.Once
	errOnce   sync.Once
}

// Returns a pointer to a new MessageStream. Used to parse
// OpenFlow messages from conn.
func NewMessageStream(conn net.Conn) *MessageStream {
	m := &MessageStream{
		conn:     conn,
		Version:  openflow13.VERSION,
		Error:    make(chan error, 1),
		Inbound:  make(chan util.Message, 1),
		outbound: make(chan util.Message, outboundLen),
		done:     make(chan struct{}),
	}

	go m.outboundLoop()
	go m.inboundLoop()

	return m
}

// GetAddr returns the address of the switch
func (m *MessageStream) GetAddr() net.Addr {
	return m.conn.RemoteAddr()
}

// Send queues a message for the switch
func (m *MessageStream) Send(msg util.Message) error {
	select {
	case <-m.done:
		return ErrStreamClosed
	default:
	}

	select {
	case m.outbound <- msg:
		return nil
	case <-m.done:
		return ErrStreamClosed
	}
}

// Shutdown closes the connection. Safe to call more than once.
func (m *MessageStream) Shutdown() {
	m.closeOnce.Do(func() {
		log.Debugf("Closing OpenFlow message stream to %v", m.conn.RemoteAddr())
		close(m.done)
		m.conn.Close()
	})
}

// Done is closed when the stream shuts down
func (m *MessageStream) Done() <-chan struct{} {
	return m.done
}

func (m *MessageStream) fail(err error) {
	m.errOnce.Do(func() {
		m.Error <- err
	})
	m.Shutdown()
}

// Listen for a Shutdown signal or Outbound messages.
func (m *MessageStream) outboundLoop() {
	for {
		select {
		case <-m.done:
			return
		case msg := <-m.outbound:
			data, err := msg.MarshalBinary()
			if err != nil {
				log.Errorf("Failed to marshal %T. Err: %v", msg, err)
				continue
			}

			if _, err := m.conn.Write(data); err != nil {
				log.Errorf("OutboundError: %v", err)
				m.fail(err)
				return
			}

			log.Debugf("Sent %T: %v", msg, data)
		}
	}
}

// Read one message at a time: fixed header, then the rest of the length
func (m *MessageStream) inboundLoop() {
	hdr := make([]byte, ofpHeaderLen)
	for {
		if _, err := io.ReadFull(m.conn, hdr); err != nil {
			m.fail(err)
			return
		}

		length := int(binary.BigEndian.Uint16(hdr[2:4]))
		if length < ofpHeaderLen {
			m.fail(fmt.Errorf("%w: length %d", ErrBadMessage, length))
			return
		}

		buf := make([]byte, length)
		copy(buf, hdr)
		if _, err := io.ReadFull(m.conn, buf[ofpHeaderLen:]); err != nil {
			m.fail(err)
			return
		}

		msg, err := Parse(buf)
		if err != nil {
			// Skip what we can not parse, the stream is still in sync
			log.Warnf("Failed to parse message from %v. Err: %v", m.conn.RemoteAddr(), err)
			continue
		}

		select {
		case m.Inbound <- msg:
		case <-m.done:
			// Shut down while the reader was busy, nothing else will report it
			m.fail(ErrStreamClosed)
			return
		}
	}
}

// Parse decodes an openflow 1.3 message. Hello messages of any version are
// accepted so that version negotiation can fail cleanly.
func Parse(b []byte) (message util.Message, err error) {
	if len(b) < ofpHeaderLen {
		return nil, fmt.Errorf("%w: short message", ErrBadMessage)
	}
	if b[0] != openflow13.VERSION && b[1] != openflow13.Type_Hello {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadMessage, b[0])
	}

	message, err = openflow13.Parse(b)
	if err == nil && message == nil {
		err = fmt.Errorf("%w: unknown type %d", ErrBadMessage, b[1])
	}
	return
}
