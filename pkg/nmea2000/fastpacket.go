package nmea2000

import (
	"time"
)

// DefaultFastPacketTimeout drops partially assembled messages that have not
// seen a frame for this long.
const DefaultFastPacketTimeout = 750 * time.Millisecond

type fpKey struct {
	source uint8
	pgn    uint32
	seq    uint8
}

type fpBuffer struct {
	size     int
	next     uint8
	data     []byte
	lastSeen time.Time
}

// FastPacketAssembler reassembles fast-packet messages from single CAN
// frames. It is not safe for concurrent use.
type FastPacketAssembler struct {
	Timeout time.Duration
	pending map[fpKey]*fpBuffer
}

func NewFastPacketAssembler() *FastPacketAssembler {
	return &FastPacketAssembler{
		Timeout: DefaultFastPacketTimeout,
		pending: make(map[fpKey]*fpBuffer),
	}
}

// Push adds one frame. It returns the complete payload and true when the
// last frame of a message arrives. Frames for single-frame PGNs are returned
// as is.
func (a *FastPacketAssembler) Push(h Header, frame []byte, t time.Time) ([]byte, bool, error) {
	if !IsFastPacket(h.PGN) {
		out := make([]byte, len(frame))
		copy(out, frame)
		return out, true, nil
	}
	if len(frame) < 2 {
		return nil, false, ErrFastPacketOrder
	}
	a.expire(t)

	seq := frame[0] >> 5
	counter := frame[0] & 0x1F
	key := fpKey{source: h.Source, pgn: h.PGN, seq: seq}

	if counter == 0 {
		size := int(frame[1])
		if size > FastPacketMaxSize {
			delete(a.pending, key)
			return nil, false, ErrFastPacketTooLong
		}
		buf := &fpBuffer{
			size:     size,
			next:     1,
			data:     make([]byte, 0, size),
			lastSeen: t,
		}
		buf.data = appendMax(buf.data, frame[2:], size)
		if len(buf.data) == size {
			delete(a.pending, key)
			return buf.data, true, nil
		}
		a.pending[key] = buf
		return nil, false, nil
	}

	buf, ok := a.pending[key]
	if !ok {
		// continuation without a start frame, we joined mid message
		return nil, false, nil
	}
	if counter != buf.next {
		delete(a.pending, key)
		return nil, false, ErrFastPacketOrder
	}
	buf.next++
	buf.lastSeen = t
	buf.data = appendMax(buf.data, frame[1:], buf.size)
	if len(buf.data) == buf.size {
		delete(a.pending, key)
		return buf.data, true, nil
	}
	return nil, false, nil
}

// Pending returns the number of partially assembled messages.
func (a *FastPacketAssembler) Pending() int {
	return len(a.pending)
}

func (a *FastPacketAssembler) expire(now time.Time) {
	if a.Timeout <= 0 {
		return
	}
	for k, buf := range a.pending {
		if now.Sub(buf.lastSeen) > a.Timeout {
			delete(a.pending, k)
		}
	}
}

func appendMax(dst, src []byte, max int) []byte {
	room := max - len(dst)
	if room <= 0 {
		return dst
	}
	if len(src) > room {
		src = src[:room]
	}
	return append(dst, src...)
}
