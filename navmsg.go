package navcomm

import (
	"fmt"
	"time"
)

// NavMsg is the canonical envelope carrying one decoded protocol unit. It is
// built once by the decoding step and then shared read-only by every
// subscriber that receives it.
type NavMsg struct {
	source   NavAddr
	payload  Payload
	received time.Time
}

// NewNavMsg creates a message. A zero received time is replaced with the
// current time, which carries a monotonic clock reading.
func NewNavMsg(source NavAddr, payload Payload, received time.Time) *NavMsg {
	if received.IsZero() {
		received = time.Now()
	}
	return &NavMsg{
		source:   source,
		payload:  payload,
		received: received,
	}
}

// Source returns the address of the driver that produced the message.
func (m *NavMsg) Source() NavAddr {
	return m.source
}

// Bus returns the bus of the message source.
func (m *NavMsg) Bus() Bus {
	return m.source.bus
}

func (m *NavMsg) Payload() Payload {
	return m.payload
}

// Received is the receipt time captured on the driver I/O goroutine.
func (m *NavMsg) Received() time.Time {
	return m.received
}

func (m *NavMsg) String() string {
	if m.payload == nil {
		return fmt.Sprintf("%s <empty>", m.source)
	}
	return fmt.Sprintf("%s %s", m.source, m.payload)
}
