package navcomm

import (
	"fmt"
)

func init() {
	if err := RegisterDriver(&DriverInfo{
		Name:        "NMEA0183 Network",
		Description: "NMEA 0183 sentences over TCP or UDP",
		Transport:   TransportNetwork,
		Protocol:    ProtocolNMEA0183,
		Default:     true,
		New:         NewN0183NetDriver,
	}); err != nil {
		panic(err)
	}
}

type N0183NetDriver struct {
	*BaseDriver
}

// NewN0183NetDriver connects to a TCP server, or for UDP listens on the
// configured port and sends to host:port.
func NewN0183NetDriver(params *ConnectionParams, cfg *DriverConfig) (Driver, error) {
	base, err := NewBaseDriver("NMEA0183 Network", params, cfg)
	if err != nil {
		return nil, err
	}
	switch params.netProtocol() {
	case NetTCP:
		base.dial = tcpDialer(params, base.lineFramer)
	case NetUDP:
		base.dial = udpDialer(params, base.lineFramer)
	default:
		return nil, fmt.Errorf("%w: nmea0183 over %s", ErrUnsupported, params.NetProtocol)
	}
	base.codec = &n0183Codec{addr: base.addr}
	return &N0183NetDriver{BaseDriver: base}, nil
}
