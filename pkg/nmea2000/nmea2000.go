// Package nmea2000 holds the ISO 11783 addressing and fast-packet transport
// layer of NMEA 2000. PGN field decoding is out of scope.
package nmea2000

import (
	"errors"
	"fmt"
)

const (
	// AddressGlobal is broadcast address used to send messages for all nodes on the n2k bus.
	AddressGlobal = uint8(255)
	// AddressNull is used for nodes that have not or can not claim address in bus.
	AddressNull = uint8(254)

	// FastPacketMaxSize: 6 bytes in the first frame plus 31 frames of 7 bytes.
	FastPacketMaxSize = 223
)

var (
	ErrFastPacketTooLong = errors.New("nmea2000: fast packet payload exceeds 223 bytes")
	ErrFastPacketOrder   = errors.New("nmea2000: fast packet frame out of order")
)

type Header struct {
	PGN         uint32
	Priority    uint8
	Source      uint8
	Destination uint8
}

func (h Header) String() string {
	return fmt.Sprintf("pgn=%d prio=%d src=%d dst=%d", h.PGN, h.Priority, h.Source, h.Destination)
}

// Bit positions in a 29 bit identifier, from the source address up. The
// two bits above the PDU format are the reserved bit and the data page.
const (
	psShift       = 8
	priorityShift = 26
	pgnMask       = 0x3FFFF
)

// PDU1 reports whether the PGN is destination addressed. The low byte of a
// PDU1 PGN travels as the destination address instead.
func (h Header) PDU1() bool {
	return uint8(h.PGN>>8) < 240
}

// ParseCANID parses header fields from a 29 bit extended CAN identifier.
func ParseCANID(canID uint32) Header {
	h := Header{
		PGN:         (canID >> psShift) & pgnMask,
		Priority:    uint8(canID>>priorityShift) & 0x7,
		Source:      uint8(canID),
		Destination: AddressGlobal,
	}
	if h.PDU1() {
		h.Destination = uint8(h.PGN)
		h.PGN &^= 0xFF
	}
	return h
}

// CANID is the inverse of ParseCANID.
func (h Header) CANID() uint32 {
	pgn := h.PGN & pgnMask
	if h.PDU1() {
		pgn = pgn&^0xFF | uint32(h.Destination)
	}
	return uint32(h.Priority&0x7)<<priorityShift | pgn<<psShift | uint32(h.Source)
}

// well known fast-packet PGNs outside the proprietary range
var fastPacketPGNs = map[uint32]struct{}{
	126208: {}, 126464: {}, 126720: {}, 126983: {}, 126984: {}, 126985: {}, 126986: {},
	126987: {}, 126988: {}, 126996: {}, 126998: {}, 127233: {}, 127237: {}, 127489: {},
	127496: {}, 127497: {}, 127498: {}, 127503: {}, 127504: {}, 127506: {}, 127507: {},
	127509: {}, 127510: {}, 127511: {}, 127512: {}, 127513: {}, 127514: {}, 128275: {},
	128520: {}, 129029: {}, 129038: {}, 129039: {}, 129040: {}, 129041: {}, 129044: {},
	129045: {}, 129284: {}, 129285: {}, 129301: {}, 129302: {}, 129538: {}, 129540: {},
	129541: {}, 129542: {}, 129545: {}, 129547: {}, 129549: {}, 129551: {}, 129556: {},
	129792: {}, 129793: {}, 129794: {}, 129795: {}, 129796: {}, 129797: {}, 129798: {},
	129799: {}, 129800: {}, 129801: {}, 129802: {}, 129803: {}, 129804: {}, 129805: {},
	129806: {}, 129807: {}, 129808: {}, 129809: {}, 129810: {}, 130052: {}, 130053: {},
	130054: {}, 130060: {}, 130061: {}, 130064: {}, 130065: {}, 130066: {}, 130067: {},
	130068: {}, 130069: {}, 130070: {}, 130071: {}, 130072: {}, 130073: {}, 130074: {},
	130320: {}, 130321: {}, 130322: {}, 130323: {}, 130324: {}, 130567: {}, 130577: {},
	130578: {},
}

// IsFastPacket reports whether pgn is transported with the fast-packet
// protocol. Manufacturer proprietary PGNs 130816-131071 are always fast.
func IsFastPacket(pgn uint32) bool {
	if pgn >= 130816 && pgn <= 131071 {
		return true
	}
	_, ok := fastPacketPGNs[pgn]
	return ok
}

// FastPacketFrames splits payload into 8 byte CAN frames. seq is the 3 bit
// sequence counter distinguishing consecutive messages of the same PGN.
func FastPacketFrames(seq uint8, payload []byte) ([][]byte, error) {
	if len(payload) > FastPacketMaxSize {
		return nil, ErrFastPacketTooLong
	}
	seq = (seq & 0x7) << 5
	var frames [][]byte
	first := make([]byte, 8)
	first[0] = seq
	first[1] = uint8(len(payload))
	n := copy(first[2:], payload)
	fill(first[2+n:])
	frames = append(frames, first)
	payload = payload[n:]
	for counter := uint8(1); len(payload) > 0; counter++ {
		f := make([]byte, 8)
		f[0] = seq | counter
		n := copy(f[1:], payload)
		fill(f[1+n:])
		frames = append(frames, f)
		payload = payload[n:]
	}
	return frames, nil
}

func fill(b []byte) {
	for i := range b {
		b[i] = 0xFF
	}
}
