package navcomm

import (
	"context"
	"testing"
	"time"

	"github.com/roffe/navcomm/pkg/nmea2000"
	"github.com/roffe/navcomm/pkg/nmea2000/actisense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestN2KSerialDriver(t *testing.T) {
	sim := withFakeSerial(t)
	c, _ := newTestCore(t)
	msgs := collect(t, c, SubscriptionKey{Bus: BusNMEA2000})

	d, err := MakeDriver(context.Background(), &ConnectionParams{
		Transport: TransportSerial,
		Protocol:  ProtocolNMEA2000,
		Port:      "/dev/ttyUSB0",
	}, c)
	require.NoError(t, err)
	remote := sim.remote(t)
	waitState(t, d, StateConnected)

	heading := actisense.Message{Priority: 2, PGN: 127250, Destination: 255, Source: 12, Timestamp: 1000, Data: []byte{0xFF, 0x10, 0x27, 0xFF, 0x7F, 0xFF, 0x7F, 0xFD}}
	wire := append([]byte{0x00, 0x10}, actisense.EncodeReceived(heading)...)
	wire = append(wire, actisense.EncodeReceived(actisense.Message{Priority: 6, PGN: 59904, Destination: 0x23, Source: 1, Data: []byte{0x00, 0xEE, 0x00}})...)
	_, err = remote.Write(wire)
	require.NoError(t, err)

	m := next(t, msgs)
	p := m.Payload().(*N2KPayload)
	assert.Equal(t, nmea2000.Header{PGN: 127250, Priority: 2, Source: 12, Destination: 255}, p.Header())
	assert.Equal(t, heading.Data, p.Bytes())

	p = next(t, msgs).Payload().(*N2KPayload)
	assert.Equal(t, uint32(59904), p.PGN())
	assert.Equal(t, uint8(0x23), p.Header().Destination)

	out := NewNavMsg(NavAddr{}, NewN2KPayload(nmea2000.Header{PGN: 127250, Priority: 2, Destination: 255}, heading.Data), time.Time{})
	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := remote.Read(buf)
		got <- buf[:n]
	}()
	require.NoError(t, d.SendMessage(context.Background(), out, NewNavAddr(BusNMEA2000, "")))
	want, err := actisense.Encode(actisense.Message{Priority: 2, PGN: 127250, Destination: 255, Data: heading.Data})
	require.NoError(t, err)
	select {
	case b := <-got:
		assert.Equal(t, want, b)
	case <-time.After(waitTimeout):
		t.Fatal("nothing written")
	}
}
