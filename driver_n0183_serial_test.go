package navcomm

import (
	"bufio"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roffe/navcomm/pkg/nmea0183"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gga = "GPGGA,070319.000,0000.00000,N,00000.00000,E,0,00,99.0,100.00,M,0.0,M,,"

func TestN0183SerialReceive(t *testing.T) {
	sim := withFakeSerial(t)
	c, _ := newTestCore(t)
	msgs := collect(t, c, SubscriptionKey{Bus: BusNMEA0183})
	others := collect(t, c, SubscriptionKey{Bus: BusNMEA2000})

	d, err := MakeDriver(context.Background(), serialParams("/dev/ttyUSB0"), c)
	require.NoError(t, err)
	remote := sim.remote(t)
	waitState(t, d, StateConnected)

	_, err = remote.Write([]byte(sentence(gga) + "\r\n"))
	require.NoError(t, err)

	m := next(t, msgs)
	assert.Equal(t, BusNMEA0183, m.Bus())
	assert.Equal(t, NewNavAddr(BusNMEA0183, "/dev/ttyUSB0"), m.Source())
	p, ok := m.Payload().(*N0183Payload)
	require.True(t, ok)
	assert.Equal(t, "GPGGA", p.ID())
	assert.Equal(t, "070319.000", p.Sentence().Field(0))
	assert.False(t, m.Received().IsZero())

	assertNone(t, msgs, 50*time.Millisecond)
	assertNone(t, others, 0)
	assert.Equal(t, uint64(1), d.Stats().Received)
}

func TestN0183SerialSplitAndGarbage(t *testing.T) {
	sim := withFakeSerial(t)
	c, _ := newTestCore(t)
	msgs := collect(t, c, SubscriptionKey{Bus: BusNMEA0183})

	d, err := MakeDriver(context.Background(), serialParams("/dev/ttyS1"), c)
	require.NoError(t, err)
	remote := sim.remote(t)

	line := sentence(gga)
	// a unit split over two reads, a corrupt one and an empty line
	_, err = remote.Write([]byte(line[:10]))
	require.NoError(t, err)
	_, err = remote.Write([]byte(line[10:] + "\r\n$GPGGA,bad*00\r\n\r\n" + sentence("IIMWV,045.0,R,10.5,N,A") + "\n"))
	require.NoError(t, err)

	assert.Equal(t, "GPGGA", next(t, msgs).Payload().(*N0183Payload).ID())
	assert.Equal(t, "IIMWV", next(t, msgs).Payload().(*N0183Payload).ID())
	require.Eventually(t, func() bool {
		return d.Stats().DecodeErrors == 1
	}, waitTimeout, 5*time.Millisecond)
}

func TestN0183SerialOverlongLine(t *testing.T) {
	sim := withFakeSerial(t)
	c, _ := newTestCore(t)
	msgs := collect(t, c, SubscriptionKey{Bus: BusNMEA0183})

	d, err := MakeDriver(context.Background(), serialParams("/dev/ttyS6"), c)
	require.NoError(t, err)
	remote := sim.remote(t)

	junk := "$" + strings.Repeat("A", nmea0183.MaxLineLength+100)
	_, err = remote.Write([]byte(junk + "\r\n" + sentence(gga) + "\r\n"))
	require.NoError(t, err)

	assert.Equal(t, "GPGGA", next(t, msgs).Payload().(*N0183Payload).ID())
	assertNone(t, msgs, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		return d.Stats().DecodeErrors == 1
	}, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, uint64(1), d.Stats().Received)
}

func TestN0183SerialSend(t *testing.T) {
	sim := withFakeSerial(t)
	c, _ := newTestCore(t)

	d, err := MakeDriver(context.Background(), serialParams("/dev/ttyS2"), c)
	require.NoError(t, err)
	remote := sim.remote(t)
	waitState(t, d, StateConnected)

	line := sentence("IIMWV,045.0,R,10.5,N,A")
	p, err := NewN0183Payload(line)
	require.NoError(t, err)
	msg := NewNavMsg(NavAddr{}, p, time.Time{})

	got := make(chan string, 1)
	go func() {
		s, _ := bufio.NewReader(remote).ReadString('\n')
		got <- s
	}()
	require.NoError(t, d.SendMessage(context.Background(), msg, NewNavAddr(BusNMEA0183, "")))
	select {
	case s := <-got:
		assert.Equal(t, line+"\r\n", s)
	case <-time.After(waitTimeout):
		t.Fatal("nothing written")
	}
	assert.Equal(t, uint64(1), d.Stats().Sent)

	tests := []struct {
		name    string
		msg     *NavMsg
		dest    NavAddr
		wantErr error
	}{
		{"other bus", msg, NewNavAddr(BusNMEA2000, ""), ErrNoRoute},
		{"other iface", msg, NewNavAddr(BusNMEA0183, "/dev/ttyS9"), ErrNoRoute},
		{"wrong payload", NewNavMsg(NavAddr{}, &SignalKPayload{}, time.Time{}), NewNavAddr(BusNMEA0183, ""), ErrWrongPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, d.SendMessage(context.Background(), tt.msg, tt.dest), tt.wantErr)
		})
	}

	require.NoError(t, c.Registry.Deactivate(d))
	assert.ErrorIs(t, d.SendMessage(context.Background(), msg, d.Addr()), ErrClosed)
}

func TestN0183SerialNoPublishAfterDeactivate(t *testing.T) {
	sim := withFakeSerial(t)
	c, _ := newTestCore(t)
	msgs := collect(t, c, SubscriptionKey{Bus: BusNMEA0183})

	d, err := MakeDriver(context.Background(), serialParams("/dev/ttyS3"), c)
	require.NoError(t, err)
	remote := sim.remote(t)
	port := sim.port(t)

	_, err = remote.Write([]byte(sentence(gga) + "\r\n"))
	require.NoError(t, err)
	next(t, msgs)

	done := make(chan error, 1)
	go func() {
		done <- c.Registry.Deactivate(d)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("close did not return")
	}
	// close returns only after the I/O goroutine is gone and the port released
	assert.True(t, port.closed.Load())
	assert.Equal(t, StateClosed, d.State())
	assert.Equal(t, 0, c.Registry.Len())

	remote.Write([]byte(sentence(gga) + "\r\n"))
	assertNone(t, msgs, 100*time.Millisecond)
	assert.ErrorIs(t, d.Open(context.Background()), ErrClosed)
}

// stallingListener blocks in NotifyRaw until released.
type stallingListener struct {
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
	notified atomic.Int32
}

func (l *stallingListener) NotifyRaw(NavAddr, []byte) {
	l.once.Do(func() { close(l.entered) })
	<-l.release
}

func (l *stallingListener) Notify(*NavMsg) {
	l.notified.Add(1)
}

func TestN0183SerialDeactivateDuringDelivery(t *testing.T) {
	sim := withFakeSerial(t)
	c, _ := newTestCore(t)

	d, err := MakeDriver(context.Background(), serialParams("/dev/ttyS5"), c)
	require.NoError(t, err)
	l := &stallingListener{entered: make(chan struct{}), release: make(chan struct{})}
	d.SetListener(l)
	remote := sim.remote(t)

	_, err = remote.Write([]byte(sentence(gga) + "\r\n"))
	require.NoError(t, err)
	select {
	case <-l.entered:
	case <-time.After(waitTimeout):
		t.Fatal("unit never reached the listener")
	}

	done := make(chan error, 1)
	go func() {
		done <- c.Registry.Deactivate(d)
	}()
	// the unit in delivery must finish before Deactivate returns
	select {
	case <-done:
		t.Fatal("deactivate returned during delivery")
	case <-time.After(50 * time.Millisecond):
	}
	close(l.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("deactivate did not return")
	}
	assert.Equal(t, StateClosed, d.State())
	assert.Zero(t, l.notified.Load())
}

func TestN0183SerialReconnect(t *testing.T) {
	sim := withFakeSerial(t)
	c, _ := newTestCore(t)
	msgs := collect(t, c, SubscriptionKey{Bus: BusNMEA0183})

	params := serialParams("/dev/ttyS4")
	params.ReconnectAttempts = 3
	d, err := MakeDriver(context.Background(), params, c)
	require.NoError(t, err)

	// device unplugged
	sim.remote(t).Close()

	remote := sim.remote(t)
	waitState(t, d, StateConnected)
	_, err = remote.Write([]byte(sentence(gga) + "\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "GPGGA", next(t, msgs).Payload().(*N0183Payload).ID())
}
