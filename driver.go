package navcomm

import (
	"context"
)

// Driver owns one connection to one endpoint. It frames and decodes inbound
// units and hands the resulting messages to its listener, and encodes and
// writes outbound messages.
type Driver interface {
	Name() string
	// Addr is the address every message from this driver is tagged with.
	Addr() NavAddr
	Params() *ConnectionParams
	// Open starts the driver I/O goroutine. Connecting and reconnecting
	// happen in the background and are reported as status events. Open on a
	// closed driver returns ErrClosed.
	Open(ctx context.Context) error
	// Close stops the I/O goroutine, waits for it to exit and then releases
	// the transport. It is safe to call more than once.
	Close() error
	SendMessage(ctx context.Context, msg *NavMsg, dest NavAddr) error
	// SetListener replaces the current listener. nil detaches it.
	SetListener(l DriverListener)
	Stats() Stats
	State() ConnState
}
