package navcomm

import (
	"fmt"

	"github.com/roffe/navcomm/pkg/signalk"
)

func init() {
	if err := RegisterDriver(&DriverInfo{
		Name:        "SignalK",
		Description: "SignalK delta stream over websocket",
		Transport:   TransportNetwork,
		Protocol:    ProtocolSignalK,
		New:         NewSignalKDriver,
	}); err != nil {
		panic(err)
	}
}

type SignalKDriver struct {
	*BaseDriver
}

func NewSignalKDriver(params *ConnectionParams, cfg *DriverConfig) (Driver, error) {
	if params.netProtocol() != NetTCP {
		return nil, fmt.Errorf("%w: signalk over %s", ErrUnsupported, params.NetProtocol)
	}
	base, err := NewBaseDriver("SignalK", params, cfg)
	if err != nil {
		return nil, err
	}
	base.dial = websocketDialer(signalk.StreamURL(params.Host, params.netPort()))
	base.codec = &signalkCodec{addr: base.addr, info: base.Info}
	return &SignalKDriver{BaseDriver: base}, nil
}
