// Package actisense implements the binary framing spoken by Actisense NGT-1
// style NMEA 2000 to serial gateways.
//
// A packet on the wire is
//
//	DLE STX <command> <length> <payload...> <checksum> DLE ETX
//
// where DLE bytes inside the packet are doubled and the checksum makes the
// byte sum of command, length, payload and checksum zero modulo 256.
package actisense

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	DLE = 0x10
	STX = 0x02
	ETX = 0x03

	// N2KMsgReceived is sent by the gateway for every message seen on the bus.
	N2KMsgReceived = 0x93
	// N2KMsgSend asks the gateway to transmit a message.
	N2KMsgSend = 0x94

	maxPacket = 512
)

var (
	ErrShort    = errors.New("actisense: packet too short")
	ErrLength   = errors.New("actisense: length mismatch")
	ErrChecksum = errors.New("actisense: checksum mismatch")
	ErrCommand  = errors.New("actisense: unsupported command")
)

type Message struct {
	Priority    uint8
	PGN         uint32
	Destination uint8
	Source      uint8
	// Timestamp is the gateway millisecond counter, only set on received messages.
	Timestamp uint32
	Data      []byte
}

func (m Message) String() string {
	return fmt.Sprintf("pgn=%d prio=%d src=%d dst=%d len=%d", m.PGN, m.Priority, m.Source, m.Destination, len(m.Data))
}

// Decode decodes an unescaped packet as produced by Framer.
func Decode(packet []byte) (Message, error) {
	if len(packet) < 3 {
		return Message{}, ErrShort
	}
	cmd := packet[0]
	n := int(packet[1])
	if len(packet) != n+3 {
		return Message{}, fmt.Errorf("%w: header says %d, got %d", ErrLength, n, len(packet)-3)
	}
	var sum byte
	for _, b := range packet {
		sum += b
	}
	if sum != 0 {
		return Message{}, ErrChecksum
	}
	if cmd != N2KMsgReceived {
		return Message{}, fmt.Errorf("%w: 0x%02X", ErrCommand, cmd)
	}
	p := packet[2 : 2+n]
	if len(p) < 11 {
		return Message{}, ErrShort
	}
	dataLen := int(p[10])
	if len(p) != 11+dataLen {
		return Message{}, fmt.Errorf("%w: data length %d, payload %d", ErrLength, dataLen, len(p)-11)
	}
	m := Message{
		Priority:    p[0],
		PGN:         uint32(p[1]) | uint32(p[2])<<8 | uint32(p[3])<<16,
		Destination: p[4],
		Source:      p[5],
		Timestamp:   binary.LittleEndian.Uint32(p[6:10]),
		Data:        make([]byte, dataLen),
	}
	copy(m.Data, p[11:])
	return m, nil
}

// Encode builds a complete, escaped N2K send packet ready to be written to
// the serial port.
func Encode(m Message) ([]byte, error) {
	if len(m.Data) > 223 {
		return nil, fmt.Errorf("actisense: payload too long: %d", len(m.Data))
	}
	payload := make([]byte, 0, 6+len(m.Data))
	payload = append(payload,
		m.Priority,
		byte(m.PGN),
		byte(m.PGN>>8),
		byte(m.PGN>>16),
		m.Destination,
		byte(len(m.Data)),
	)
	payload = append(payload, m.Data...)
	return frame(N2KMsgSend, payload), nil
}

// EncodeReceived builds an escaped N2K receive packet, the form a gateway
// emits. Mostly useful for simulators and tests.
func EncodeReceived(m Message) []byte {
	payload := make([]byte, 0, 11+len(m.Data))
	payload = append(payload,
		m.Priority,
		byte(m.PGN),
		byte(m.PGN>>8),
		byte(m.PGN>>16),
		m.Destination,
		m.Source,
	)
	payload = binary.LittleEndian.AppendUint32(payload, m.Timestamp)
	payload = append(payload, byte(len(m.Data)))
	payload = append(payload, m.Data...)
	return frame(N2KMsgReceived, payload)
}

func frame(cmd byte, payload []byte) []byte {
	body := make([]byte, 0, len(payload)+3)
	body = append(body, cmd, byte(len(payload)))
	body = append(body, payload...)
	var sum byte
	for _, b := range body {
		sum += b
	}
	body = append(body, -sum)

	out := make([]byte, 0, len(body)+8)
	out = append(out, DLE, STX)
	for _, b := range body {
		if b == DLE {
			out = append(out, DLE)
		}
		out = append(out, b)
	}
	return append(out, DLE, ETX)
}
