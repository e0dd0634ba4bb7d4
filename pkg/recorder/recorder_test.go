package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roffe/navcomm"
	"github.com/roffe/navcomm/pkg/nmea0183"
	"github.com/roffe/navcomm/pkg/nmea2000"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func messages(t *testing.T) []*navcomm.NavMsg {
	t.Helper()
	body := "GPHDT,123.4,T"
	n0183, err := navcomm.NewN0183Payload("$" + body + "*" + nmea0183.Checksum(body))
	require.NoError(t, err)
	sk, err := navcomm.NewSignalKPayload([]byte(`{"context":"vessels.self","updates":[{"values":[{"path":"navigation.speedOverGround","value":4.2}]}]}`))
	require.NoError(t, err)
	n2k := navcomm.NewN2KPayload(nmea2000.Header{PGN: 127250, Priority: 2, Source: 12, Destination: 255}, []byte{0xFF, 0x10, 0x27, 0xFF, 0x7F, 0xFF, 0x7F, 0xFD})

	ts := time.Date(2026, 6, 1, 12, 0, 0, 123456789, time.UTC)
	return []*navcomm.NavMsg{
		navcomm.NewNavMsg(navcomm.NewNavAddr(navcomm.BusNMEA0183, "/dev/ttyUSB0"), n0183, ts),
		navcomm.NewNavMsg(navcomm.NewNavAddr(navcomm.BusNMEA2000, "can0"), n2k, ts.Add(time.Millisecond)),
		navcomm.NewNavMsg(navcomm.NewNavAddr(navcomm.BusSignalK, "localhost:3000"), sk, ts.Add(2*time.Millisecond)),
	}
}

func TestAttachAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.db")
	r, err := Open(path, testLogger())
	require.NoError(t, err)

	bus := navcomm.NewNavMsgBus(testLogger())
	require.NoError(t, r.Attach(bus))
	want := messages(t)
	for _, m := range want {
		bus.Publish(m)
	}
	// Close drains the queue
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 0, bus.Len(navcomm.BusNMEA0183))
	assert.ErrorIs(t, r.Attach(bus), ErrClosed)

	r, err = Open(path, testLogger())
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := r.Messages(ctx, navcomm.BusUndefined, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range want {
		assert.Equal(t, want[i].Source(), got[i].Source())
		assert.Equal(t, want[i].Received().UnixNano(), got[i].Received().UnixNano())
		assert.Equal(t, want[i].Payload().Bytes(), got[i].Payload().Bytes())
	}
	assert.Equal(t, uint8(12), got[1].Payload().(*navcomm.N2KPayload).Header().Source)
	assert.Equal(t, "GPHDT", got[0].Payload().(*navcomm.N0183Payload).ID())

	only, err := r.Messages(ctx, navcomm.BusNMEA2000, 10)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, uint32(127250), only[0].Payload().(*navcomm.N2KPayload).PGN())
}

func TestRecordEmpty(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "log.db"), testLogger())
	require.NoError(t, err)
	defer r.Close()
	assert.Error(t, r.Record(context.Background(), nil))
	assert.Zero(t, r.Dropped())
}
