package navcomm

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/roffe/navcomm/pkg/nmea2000"
	"github.com/roffe/navcomm/pkg/nmea2000/actisense"
	"github.com/roffe/navcomm/pkg/signalk"
)

func decodeError(err error) error {
	return fmt.Errorf("%w: %w", ErrDecode, err)
}

func single(unit []byte) [][]byte {
	return [][]byte{unit}
}

// n0183Codec handles one sentence per unit.
type n0183Codec struct {
	addr NavAddr
}

func (c *n0183Codec) decode(raw []byte, received time.Time) (*NavMsg, error) {
	p, err := NewN0183Payload(string(raw))
	if err != nil {
		return nil, decodeError(err)
	}
	return NewNavMsg(c.addr, p, received), nil
}

func (c *n0183Codec) encode(msg *NavMsg, _ NavAddr) ([][]byte, error) {
	p, ok := msg.Payload().(*N0183Payload)
	if !ok {
		return nil, ErrWrongPayload
	}
	return single([]byte(p.Line() + "\r\n")), nil
}

// actisenseCodec handles unescaped NGT packets. The gateway reassembles
// fast packets itself.
type actisenseCodec struct {
	addr NavAddr
}

func (c *actisenseCodec) decode(raw []byte, received time.Time) (*NavMsg, error) {
	m, err := actisense.Decode(raw)
	if err != nil {
		if errors.Is(err, actisense.ErrCommand) {
			// gateway status and config replies
			return nil, nil
		}
		return nil, decodeError(err)
	}
	h := nmea2000.Header{
		PGN:         m.PGN,
		Priority:    m.Priority,
		Source:      m.Source,
		Destination: m.Destination,
	}
	return NewNavMsg(c.addr, NewN2KPayload(h, m.Data), received), nil
}

func (c *actisenseCodec) encode(msg *NavMsg, _ NavAddr) ([][]byte, error) {
	p, ok := msg.Payload().(*N2KPayload)
	if !ok {
		return nil, ErrWrongPayload
	}
	h := p.Header()
	b, err := actisense.Encode(actisense.Message{
		Priority:    h.Priority,
		PGN:         h.PGN,
		Destination: h.Destination,
		Data:        p.data,
	})
	if err != nil {
		return nil, err
	}
	return single(b), nil
}

// canCodec handles single CAN frames and reassembles fast packets.
type canCodec struct {
	addr      NavAddr
	assembler *nmea2000.FastPacketAssembler
	seq       atomic.Uint32
}

func newCANCodec(addr NavAddr) *canCodec {
	return &canCodec{
		addr:      addr,
		assembler: nmea2000.NewFastPacketAssembler(),
	}
}

func (c *canCodec) decode(raw []byte, received time.Time) (*NavMsg, error) {
	f, err := ParseCANFrame(raw)
	if err != nil {
		return nil, decodeError(err)
	}
	if !f.Extended {
		// NMEA 2000 only uses 29 bit identifiers
		return nil, nil
	}
	h := nmea2000.ParseCANID(f.Identifier)
	data, complete, err := c.assembler.Push(h, f.Data, received)
	if err != nil {
		return nil, decodeError(fmt.Errorf("%w in frame %s", err, f))
	}
	if !complete {
		return nil, nil
	}
	return NewNavMsg(c.addr, NewN2KPayload(h, data), received), nil
}

func (c *canCodec) encode(msg *NavMsg, _ NavAddr) ([][]byte, error) {
	p, ok := msg.Payload().(*N2KPayload)
	if !ok {
		return nil, ErrWrongPayload
	}
	h := p.Header()
	id := h.CANID()
	if !nmea2000.IsFastPacket(h.PGN) {
		if len(p.data) > 8 {
			return nil, fmt.Errorf("pgn %d: %d bytes do not fit a single frame", h.PGN, len(p.data))
		}
		return single(NewExtendedFrame(id, p.data).Bytes()), nil
	}
	frames, err := nmea2000.FastPacketFrames(uint8(c.seq.Add(1)), p.data)
	if err != nil {
		return nil, err
	}
	units := make([][]byte, 0, len(frames))
	for _, data := range frames {
		units = append(units, NewExtendedFrame(id, data).Bytes())
	}
	return units, nil
}

// signalkCodec handles one JSON document per unit.
type signalkCodec struct {
	addr NavAddr
	info func(string)
}

func (c *signalkCodec) decode(raw []byte, received time.Time) (*NavMsg, error) {
	p, err := NewSignalKPayload(raw)
	switch {
	case errors.Is(err, signalk.ErrHello):
		if h, err := signalk.ParseHello(raw); err == nil && c.info != nil {
			c.info(fmt.Sprintf("connected to %s %s, self %s", h.Name, h.Version, h.Self))
		}
		return nil, nil
	case errors.Is(err, signalk.ErrNotDelta):
		return nil, nil
	case err != nil:
		return nil, decodeError(err)
	}
	return NewNavMsg(c.addr, p, received), nil
}

func (c *signalkCodec) encode(msg *NavMsg, _ NavAddr) ([][]byte, error) {
	p, ok := msg.Payload().(*SignalKPayload)
	if !ok {
		return nil, ErrWrongPayload
	}
	return single(p.Bytes()), nil
}
