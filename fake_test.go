package navcomm

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roffe/navcomm/pkg/nmea0183"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

const waitTimeout = 2 * time.Second

// fakePort is a serial port backed by one end of a net.Pipe. Like
// go.bug.st/serial it returns 0, nil when the read timeout expires.
type fakePort struct {
	net.Conn
	timeout time.Duration
	closed  atomic.Bool
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if err := p.Conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
		return 0, err
	}
	n, err := p.Conn.Read(b)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

func (p *fakePort) Close() error {
	p.closed.Store(true)
	return p.Conn.Close()
}

type serialSim struct {
	remotes chan net.Conn
	ports   chan *fakePort
}

// remote returns the device side of the next opened port.
func (s *serialSim) remote(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-s.remotes:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("serial port was never opened")
		return nil
	}
}

func (s *serialSim) port(t *testing.T) *fakePort {
	t.Helper()
	select {
	case p := <-s.ports:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("serial port was never opened")
		return nil
	}
}

func withFakeSerial(t *testing.T) *serialSim {
	t.Helper()
	sim := &serialSim{
		remotes: make(chan net.Conn, 16),
		ports:   make(chan *fakePort, 16),
	}
	orig := openSerial
	openSerial = func(port string, mode *serial.Mode) (serialPort, error) {
		local, remote := net.Pipe()
		p := &fakePort{Conn: local, timeout: 10 * time.Millisecond}
		sim.remotes <- remote
		sim.ports <- p
		return p, nil
	}
	t.Cleanup(func() { openSerial = orig })
	return sim
}

func newTestCore(t *testing.T, opts ...Option) (*Core, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]Option{WithLogger(logger), WithQueueSize(256)}, opts...)
	c := New(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		c.Close()
		cancel()
		<-done
	})
	return c, hook
}

func collect(t *testing.T, c *Core, key SubscriptionKey) <-chan *NavMsg {
	t.Helper()
	ch := make(chan *NavMsg, 256)
	_, err := c.Bus.Subscribe(key, func(m *NavMsg) {
		ch <- m
	})
	require.NoError(t, err)
	return ch
}

func next(t *testing.T, ch <-chan *NavMsg) *NavMsg {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(waitTimeout):
		t.Fatal("no message received")
		return nil
	}
}

func assertNone(t *testing.T, ch <-chan *NavMsg, wait time.Duration) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("unexpected message %s", m)
	case <-time.After(wait):
	}
}

func sentence(body string) string {
	return "$" + body + "*" + nmea0183.Checksum(body)
}

func waitState(t *testing.T, d Driver, want ConnState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return d.State() == want
	}, waitTimeout, 5*time.Millisecond, "driver never reached %s, is %s", want, d.State())
}

func serialParams(port string) *ConnectionParams {
	return &ConnectionParams{
		Transport:         TransportSerial,
		Protocol:          ProtocolNMEA0183,
		Port:              port,
		ReconnectAttempts: 1,
		ReconnectDelay:    time.Millisecond,
	}
}
