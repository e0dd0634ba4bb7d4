package navcomm

import (
	"fmt"
	"sync/atomic"
)

// Stats is a snapshot of the per driver counters.
type Stats struct {
	Received     uint64
	Sent         uint64
	Dropped      uint64
	DecodeErrors uint64
}

func (st Stats) String() string {
	return fmt.Sprintf("recv: %d sent: %d dropped: %d decode errors: %d", st.Received, st.Sent, st.Dropped, st.DecodeErrors)
}

type counters struct {
	received     atomic.Uint64
	sent         atomic.Uint64
	dropped      atomic.Uint64
	decodeErrors atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:     c.received.Load(),
		Sent:         c.sent.Load(),
		Dropped:      c.dropped.Load(),
		DecodeErrors: c.decodeErrors.Load(),
	}
}
