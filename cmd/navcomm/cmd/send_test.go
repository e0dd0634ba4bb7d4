package cmd

import (
	"testing"

	"github.com/roffe/navcomm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayload(t *testing.T) {
	p, err := buildPayload(sendCmd, navcomm.BusNMEA0183, "$GPHDT,123.4,T*31")
	require.NoError(t, err)
	assert.Equal(t, "GPHDT", p.(*navcomm.N0183Payload).ID())

	_, err = buildPayload(sendCmd, navcomm.BusNMEA2000, "FF10")
	assert.ErrorContains(t, err, "--pgn")

	require.NoError(t, sendCmd.Flags().Set(flagPGN, "127250"))
	t.Cleanup(func() { sendCmd.Flags().Set(flagPGN, "0") })
	p, err = buildPayload(sendCmd, navcomm.BusNMEA2000, "FF 10 27")
	require.NoError(t, err)
	n2k := p.(*navcomm.N2KPayload)
	assert.Equal(t, uint32(127250), n2k.PGN())
	assert.Equal(t, uint8(6), n2k.Header().Priority)
	assert.Equal(t, uint8(255), n2k.Header().Destination)
	assert.Equal(t, []byte{0xFF, 0x10, 0x27}, n2k.Bytes())

	_, err = buildPayload(sendCmd, navcomm.BusNMEA2000, "zz")
	assert.Error(t, err)
	_, err = buildPayload(sendCmd, navcomm.BusUndefined, "x")
	assert.ErrorIs(t, err, navcomm.ErrUnsupported)
}

func TestBusFilter(t *testing.T) {
	buses, err := busFilter(runCmd)
	require.NoError(t, err)
	assert.Equal(t, navcomm.Buses(), buses)

	require.NoError(t, runCmd.Flags().Set(flagBus, "signalk,NMEA2000"))
	buses, err = busFilter(runCmd)
	require.NoError(t, err)
	assert.Equal(t, []navcomm.Bus{navcomm.BusSignalK, navcomm.BusNMEA2000}, buses)

	require.NoError(t, runCmd.Flags().Set(flagBus, "seatalk"))
	_, err = busFilter(runCmd)
	assert.Error(t, err)
}
