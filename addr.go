package navcomm

import (
	"fmt"
	"strings"
)

// Bus is the logical protocol family a message belongs to, independent of
// the physical transport carrying it.
type Bus int

const (
	BusUndefined Bus = iota
	BusNMEA0183
	BusNMEA2000
	BusSignalK
)

var busNames = map[Bus]string{
	BusUndefined: "undefined",
	BusNMEA0183:  "nmea0183",
	BusNMEA2000:  "nmea2000",
	BusSignalK:   "signalk",
}

func (b Bus) String() string {
	if name, ok := busNames[b]; ok {
		return name
	}
	return fmt.Sprintf("bus(%d)", int(b))
}

// Buses returns every defined bus, BusUndefined excluded.
func Buses() []Bus {
	return []Bus{BusNMEA0183, BusNMEA2000, BusSignalK}
}

// ParseBus is the inverse of Bus.String, case insensitive.
func ParseBus(s string) (Bus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for b, name := range busNames {
		if name == s {
			return b, nil
		}
	}
	return BusUndefined, fmt.Errorf("unknown bus %q", s)
}

// NavAddr identifies a logical bus plus the endpoint a message came from or
// is going to. The endpoint is an opaque identifier: serial device path,
// host:port or CAN interface name. NavAddr is a value type and comparable.
type NavAddr struct {
	bus   Bus
	iface string
}

func NewNavAddr(bus Bus, iface string) NavAddr {
	return NavAddr{bus: bus, iface: iface}
}

func (a NavAddr) Bus() Bus {
	return a.bus
}

func (a NavAddr) Iface() string {
	return a.iface
}

// IsZero reports whether a is the zero address.
func (a NavAddr) IsZero() bool {
	return a.bus == BusUndefined && a.iface == ""
}

// Matches reports whether other is covered by a. An empty iface on a
// matches every endpoint on the same bus.
func (a NavAddr) Matches(other NavAddr) bool {
	if a.bus != other.bus {
		return false
	}
	return a.iface == "" || a.iface == other.iface
}

func (a NavAddr) String() string {
	if a.iface == "" {
		return a.bus.String()
	}
	return a.bus.String() + "@" + a.iface
}
