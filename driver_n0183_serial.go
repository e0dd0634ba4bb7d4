package navcomm

import (
	"github.com/roffe/navcomm/pkg/nmea0183"
)

func init() {
	if err := RegisterDriver(&DriverInfo{
		Name:        "NMEA0183 Serial",
		Description: "NMEA 0183 sentences on a serial port",
		Transport:   TransportSerial,
		Protocol:    ProtocolNMEA0183,
		Default:     true,
		New:         NewN0183SerialDriver,
	}); err != nil {
		panic(err)
	}
}

type N0183SerialDriver struct {
	*BaseDriver
}

func NewN0183SerialDriver(params *ConnectionParams, cfg *DriverConfig) (Driver, error) {
	base, err := NewBaseDriver("NMEA0183 Serial", params, cfg)
	if err != nil {
		return nil, err
	}
	base.dial = serialDialer(params, DefaultNMEA0183Baudrate, base.lineFramer)
	base.codec = &n0183Codec{addr: base.addr}
	return &N0183SerialDriver{BaseDriver: base}, nil
}

// lineFramer counts overlong lines as decode errors of the driver.
func (base *BaseDriver) lineFramer() framer {
	f := nmea0183.NewLineFramer()
	f.OnOverflow = base.discardUnit
	return f
}
