package navcomm

import (
	"strings"

	"github.com/roffe/navcomm/pkg/nmea0183"
	"github.com/roffe/navcomm/pkg/nmea2000"
	"github.com/roffe/navcomm/pkg/signalk"
)

// Payload is the protocol tagged content of a NavMsg.
type Payload interface {
	Bus() Bus
	// Bytes returns a copy of the raw protocol unit.
	Bytes() []byte
	String() string
}

var (
	_ Payload = (*N0183Payload)(nil)
	_ Payload = (*N2KPayload)(nil)
	_ Payload = (*SignalKPayload)(nil)
)

type N0183Payload struct {
	raw      string
	sentence nmea0183.Sentence
}

// NewN0183Payload parses line into a payload.
func NewN0183Payload(line string) (*N0183Payload, error) {
	s, err := nmea0183.Parse(line)
	if err != nil {
		return nil, err
	}
	return &N0183Payload{
		raw:      strings.TrimRight(line, "\r\n"),
		sentence: s,
	}, nil
}

func (p *N0183Payload) Bus() Bus { return BusNMEA0183 }

// Sentence returns the parsed sentence. Fields are copied.
func (p *N0183Payload) Sentence() nmea0183.Sentence {
	s := p.sentence
	s.Fields = append([]string(nil), p.sentence.Fields...)
	return s
}

// ID returns the sentence address, e.g. "GPGGA".
func (p *N0183Payload) ID() string { return p.sentence.ID() }

// Line returns the sentence as received, tag block included.
func (p *N0183Payload) Line() string { return p.raw }

func (p *N0183Payload) Bytes() []byte { return []byte(p.raw) }

func (p *N0183Payload) String() string { return p.raw }

type N2KPayload struct {
	header nmea2000.Header
	data   []byte
}

// NewN2KPayload copies data.
func NewN2KPayload(h nmea2000.Header, data []byte) *N2KPayload {
	d := make([]byte, len(data))
	copy(d, data)
	return &N2KPayload{header: h, data: d}
}

func (p *N2KPayload) Bus() Bus                { return BusNMEA2000 }
func (p *N2KPayload) Header() nmea2000.Header { return p.header }
func (p *N2KPayload) PGN() uint32             { return p.header.PGN }

func (p *N2KPayload) Bytes() []byte {
	d := make([]byte, len(p.data))
	copy(d, p.data)
	return d
}

func (p *N2KPayload) String() string {
	return p.header.String() + " || " + hexView(p.data)
}

type SignalKPayload struct {
	raw   []byte
	delta signalk.Delta
}

// NewSignalKPayload parses one delta message.
func NewSignalKPayload(raw []byte) (*SignalKPayload, error) {
	d, err := signalk.Parse(raw)
	if err != nil {
		return nil, err
	}
	b := make([]byte, len(raw))
	copy(b, raw)
	return &SignalKPayload{raw: b, delta: d}, nil
}

func (p *SignalKPayload) Bus() Bus { return BusSignalK }

// Delta returns the parsed delta. It shares memory with the payload and must
// not be modified.
func (p *SignalKPayload) Delta() signalk.Delta { return p.delta }

func (p *SignalKPayload) Bytes() []byte {
	b := make([]byte, len(p.raw))
	copy(b, p.raw)
	return b
}

func (p *SignalKPayload) String() string {
	return p.delta.Context + " " + strings.Join(p.delta.Paths(), ",")
}
