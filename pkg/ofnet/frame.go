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

package ofnet

// This file converts openflow messages into learning switch notifications

import (
	"errors"
	"fmt"

	"github.com/contiv/l2switch/pkg/l2switch"
	"github.com/contiv/libOpenflow/openflow13"
)

const macAddrLen = 6

var (
	// ErrNoInPort is returned for packet-ins without an in_port match field
	ErrNoInPort = errors.New("packet has no in_port match field")

	// ErrBadAddress is returned for frames with a malformed mac address
	ErrBadAddress = errors.New("bad ethernet address")
)

// Get the input port number from the packet-in match fields
func inPortOf(pkt *openflow13.PacketIn) (uint32, error) {
	if pkt.Match.Type != openflow13.MatchType_OXM {
		return 0, ErrNoInPort
	}

	for _, field := range pkt.Match.Fields {
		if field.Class != openflow13.OXM_CLASS_OPENFLOW_BASIC ||
			field.Field != openflow13.OXM_FIELD_IN_PORT {
			continue
		}

		if inPortFld, ok := field.Value.(*openflow13.InPortField); ok {
			return inPortFld.InPort, nil
		}
	}

	return 0, ErrNoInPort
}

// frameFromPacketIn builds the frame for a packet-in. Packets the engine
// can not reason about are rejected here.
func frameFromPacketIn(pkt *openflow13.PacketIn) (*l2switch.Frame, error) {
	inPort, err := inPortOf(pkt)
	if err != nil {
		return nil, err
	}

	if len(pkt.Data.HWSrc) != macAddrLen {
		return nil, fmt.Errorf("%w: source %q", ErrBadAddress, pkt.Data.HWSrc.String())
	}
	if len(pkt.Data.HWDst) != macAddrLen {
		return nil, fmt.Errorf("%w: destination %q", ErrBadAddress, pkt.Data.HWDst.String())
	}

	return &l2switch.Frame{
		Src:     pkt.Data.HWSrc,
		Dst:     pkt.Data.HWDst,
		InPort:  inPort,
		Payload: pkt,
	}, nil
}

// Convert a port stats reply. Other body types are skipped.
func portStatsFromReply(rep *openflow13.MultipartReply) []l2switch.PortStats {
	stats := make([]l2switch.PortStats, 0, len(rep.Body))
	for _, body := range rep.Body {
		portStats, ok := body.(*openflow13.PortStats)
		if !ok {
			continue
		}

		stats = append(stats, l2switch.PortStats{
			PortNo:    uint32(portStats.PortNo),
			RxPackets: portStats.RxPackets,
			TxPackets: portStats.TxPackets,
			RxBytes:   portStats.RxBytes,
			TxBytes:   portStats.TxBytes,
		})
	}

	return stats
}
