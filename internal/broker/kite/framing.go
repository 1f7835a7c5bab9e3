package kite

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/devanshjainms/exitengine/internal/broker"
)

// Exchange segment identifiers, encoded in the low byte of an instrument
// token. Segment cds uses a 1e7 price divisor, bcd uses 1e4, everything
// else uses 1e2; the indices segment is never tradable.
const (
	segmentNSE     = 1
	segmentNFO     = 2
	segmentCDS     = 3
	segmentBSE     = 4
	segmentBFO     = 5
	segmentBCD     = 6
	segmentMCX     = 7
	segmentMCXSX   = 8
	segmentIndices = 9
)

func priceDivisor(segment byte) float64 {
	switch segment {
	case segmentCDS:
		return 1e7
	case segmentBCD:
		return 1e4
	default:
		return 1e2
	}
}

func isTradable(segment byte) bool {
	return segment != segmentIndices
}

// decodeTicks parses a full binary tick frame: 2-byte packet count, then
// each packet prefixed with its own 2-byte length.
func decodeTicks(data []byte) ([]broker.Tick, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("kite: tick frame too short")
	}
	count := int(binary.BigEndian.Uint16(data[0:2]))
	offset := 2

	ticks := make([]broker.Tick, 0, count)
	for i := 0; i < count; i++ {
		if offset+2 > len(data) {
			return ticks, fmt.Errorf("kite: truncated packet length header at packet %d", i)
		}
		packetLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+packetLen > len(data) {
			return ticks, fmt.Errorf("kite: truncated packet body at packet %d", i)
		}
		packet := data[offset : offset+packetLen]
		offset += packetLen

		tick, err := decodePacket(packet)
		if err != nil {
			// A single bad packet is dropped (Data error kind); the rest
			// of the frame is still useful.
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

func decodePacket(packet []byte) (broker.Tick, error) {
	if len(packet) < 8 {
		return broker.Tick{}, fmt.Errorf("kite: packet shorter than LTP minimum")
	}
	token := binary.BigEndian.Uint32(packet[0:4])
	segment := byte(token & 0xFF)
	divisor := priceDivisor(segment)

	lastPrice := float64(int32(binary.BigEndian.Uint32(packet[4:8]))) / divisor

	return broker.Tick{
		InstrumentToken: token,
		LastPrice:       lastPrice,
		Tradable:        isTradable(segment),
		Timestamp:       time.Now(),
	}, nil
}
