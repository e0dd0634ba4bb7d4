package nmea2000

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCANID(t *testing.T) {
	tests := []struct {
		name  string
		canID uint32
		want  Header
	}{
		{
			name:  "position rapid update broadcast",
			canID: 0x09F80103,
			want:  Header{PGN: 129025, Priority: 2, Source: 3, Destination: AddressGlobal},
		},
		{
			name:  "iso request addressed",
			canID: 0x18EA2301,
			want:  Header{PGN: 59904, Priority: 6, Source: 1, Destination: 0x23},
		},
		{
			name:  "product info",
			canID: 0x19F01401,
			want:  Header{PGN: 126996, Priority: 6, Source: 1, Destination: AddressGlobal},
		},
		{
			name:  "proprietary addressed on data page 1",
			canID: 0x1DEF1020,
			want:  Header{PGN: 126720, Priority: 7, Source: 0x20, Destination: 0x10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCANID(tt.canID)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.canID, got.CANID())
		})
	}
}

func TestHeaderPDU1(t *testing.T) {
	assert.True(t, Header{PGN: 59904}.PDU1())
	assert.True(t, Header{PGN: 126720}.PDU1())
	assert.True(t, Header{PGN: 60928}.PDU1())
	assert.False(t, Header{PGN: 65280}.PDU1())
	assert.False(t, Header{PGN: 129025}.PDU1())

	// a PDU1 header carries its destination, the PGN low byte is not sent
	h := Header{PGN: 59904, Priority: 6, Source: 1, Destination: 0x42}
	assert.Equal(t, uint32(0x18EA4201), h.CANID())
}

func TestIsFastPacket(t *testing.T) {
	assert.True(t, IsFastPacket(129029))
	assert.True(t, IsFastPacket(130900))
	assert.False(t, IsFastPacket(129025))
	assert.False(t, IsFastPacket(59904))
}

func TestFastPacketRoundTrip(t *testing.T) {
	payload := make([]byte, 43)
	for i := range payload {
		payload[i] = byte(i)
	}
	frames, err := FastPacketFrames(3, payload)
	require.NoError(t, err)
	// 6 + 7*6 = 48 >= 43
	require.Len(t, frames, 7)
	assert.Equal(t, byte(3<<5), frames[0][0])
	assert.Equal(t, byte(43), frames[0][1])
	assert.Equal(t, byte(3<<5|6), frames[6][0])

	a := NewFastPacketAssembler()
	h := Header{PGN: 129029, Source: 7, Destination: AddressGlobal}
	now := time.Now()
	for i, f := range frames {
		out, done, err := a.Push(h, f, now)
		require.NoError(t, err)
		if i < len(frames)-1 {
			assert.False(t, done)
			continue
		}
		require.True(t, done)
		assert.Equal(t, payload, out)
	}
	assert.Zero(t, a.Pending())
}

func TestFastPacketErrors(t *testing.T) {
	_, err := FastPacketFrames(0, make([]byte, FastPacketMaxSize+1))
	assert.ErrorIs(t, err, ErrFastPacketTooLong)

	frames, err := FastPacketFrames(1, make([]byte, 20))
	require.NoError(t, err)
	require.Len(t, frames, 3)

	a := NewFastPacketAssembler()
	h := Header{PGN: 129029, Source: 7}
	now := time.Now()

	// continuation before start is ignored
	_, done, err := a.Push(h, frames[1], now)
	require.NoError(t, err)
	assert.False(t, done)

	_, _, err = a.Push(h, frames[0], now)
	require.NoError(t, err)
	_, _, err = a.Push(h, frames[2], now)
	assert.ErrorIs(t, err, ErrFastPacketOrder)
	assert.Zero(t, a.Pending())

	// stale partial messages expire
	_, _, err = a.Push(h, frames[0], now)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Pending())
	_, _, err = a.Push(Header{PGN: 129029, Source: 9}, frames[0], now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Pending())
}

func TestSingleFramePassThrough(t *testing.T) {
	a := NewFastPacketAssembler()
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out, done, err := a.Push(Header{PGN: 129025}, data, time.Now())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, data, out)
}
