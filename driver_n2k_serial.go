package navcomm

import (
	"github.com/roffe/navcomm/pkg/nmea2000/actisense"
)

func init() {
	if err := RegisterDriver(&DriverInfo{
		Name:        "NMEA2000 Actisense",
		Description: "NMEA 2000 through an Actisense NGT compatible serial gateway",
		Transport:   TransportSerial,
		Protocol:    ProtocolNMEA2000,
		New:         NewN2KSerialDriver,
	}); err != nil {
		panic(err)
	}
}

type N2KSerialDriver struct {
	*BaseDriver
}

func NewN2KSerialDriver(params *ConnectionParams, cfg *DriverConfig) (Driver, error) {
	base, err := NewBaseDriver("NMEA2000 Actisense", params, cfg)
	if err != nil {
		return nil, err
	}
	base.dial = serialDialer(params, DefaultActisenseBaudrate, base.actisenseFramer)
	base.codec = &actisenseCodec{addr: base.addr}
	return &N2KSerialDriver{BaseDriver: base}, nil
}

func (base *BaseDriver) actisenseFramer() framer {
	f := actisense.NewFramer()
	f.OnError = base.discardUnit
	return f
}
