package navcomm

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

type Transport int

const (
	TransportUndefined Transport = iota
	TransportSerial
	TransportNetwork
	TransportCAN
)

func (t Transport) String() string {
	switch t {
	case TransportSerial:
		return "serial"
	case TransportNetwork:
		return "network"
	case TransportCAN:
		return "can"
	default:
		return "undefined"
	}
}

func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "serial":
		return TransportSerial, nil
	case "network", "net":
		return TransportNetwork, nil
	case "can", "socketcan":
		return TransportCAN, nil
	case "":
		return TransportUndefined, nil
	}
	return TransportUndefined, fmt.Errorf("unknown transport %q", s)
}

type Protocol int

const (
	ProtocolUndefined Protocol = iota
	ProtocolNMEA0183
	ProtocolNMEA2000
	ProtocolSignalK
)

func (p Protocol) String() string {
	switch p {
	case ProtocolNMEA0183:
		return "nmea0183"
	case ProtocolNMEA2000:
		return "nmea2000"
	case ProtocolSignalK:
		return "signalk"
	default:
		return "undefined"
	}
}

// Bus returns the bus messages of this protocol are published on.
func (p Protocol) Bus() Bus {
	switch p {
	case ProtocolNMEA0183:
		return BusNMEA0183
	case ProtocolNMEA2000:
		return BusNMEA2000
	case ProtocolSignalK:
		return BusSignalK
	default:
		return BusUndefined
	}
}

func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nmea0183", "0183", "n0183":
		return ProtocolNMEA0183, nil
	case "nmea2000", "2000", "n2k":
		return ProtocolNMEA2000, nil
	case "signalk":
		return ProtocolSignalK, nil
	case "":
		return ProtocolUndefined, nil
	}
	return ProtocolUndefined, fmt.Errorf("unknown protocol %q", s)
}

type NetProtocol int

const (
	NetUndefined NetProtocol = iota
	NetTCP
	NetUDP
)

func (n NetProtocol) String() string {
	switch n {
	case NetTCP:
		return "tcp"
	case NetUDP:
		return "udp"
	default:
		return "undefined"
	}
}

func ParseNetProtocol(s string) (NetProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp":
		return NetTCP, nil
	case "udp":
		return NetUDP, nil
	case "":
		return NetUndefined, nil
	}
	return NetUndefined, fmt.Errorf("unknown network protocol %q", s)
}

const (
	DefaultSerialReadTimeout = 100 * time.Millisecond
	DefaultNetReadTimeout    = 500 * time.Millisecond
	DefaultReconnectAttempts = 10
	DefaultReconnectDelay    = 500 * time.Millisecond
	DefaultReconnectMaxDelay = 30 * time.Second
	DefaultNMEA0183Baudrate  = 4800
	DefaultActisenseBaudrate = 115200
	DefaultNMEA0183NetPort   = 10110
	DefaultSignalKNetPort    = 3000
	defaultNetProtocol       = NetTCP
)

// ConnectionParams describes one physical or logical connection. It is
// treated as read-only once a driver has been created from it.
type ConnectionParams struct {
	Transport Transport
	Protocol  Protocol

	// serial
	Port     string
	Baudrate int

	// network
	Host        string
	NetPort     int
	NetProtocol NetProtocol

	// can
	Interface string

	// ReadTimeout bounds a single blocking read and with it how long a
	// driver takes to notice a stop signal.
	ReadTimeout       time.Duration
	ReconnectAttempts uint
	ReconnectDelay    time.Duration
}

// Identity is the key the registry uses to enforce one active driver per
// connection. Two params describing the same endpoint share an identity even
// if their protocols differ, the endpoint can only be opened once.
func (p *ConnectionParams) Identity() string {
	switch p.Transport {
	case TransportSerial:
		return "serial:" + p.Port
	case TransportNetwork:
		return "net:" + p.netProtocol().String() + ":" + p.Endpoint()
	case TransportCAN:
		return "can:" + p.Interface
	default:
		return "undefined:" + p.Endpoint()
	}
}

// Endpoint returns the opaque endpoint identifier used in NavAddr.
func (p *ConnectionParams) Endpoint() string {
	switch p.Transport {
	case TransportSerial:
		return p.Port
	case TransportNetwork:
		return net.JoinHostPort(p.Host, strconv.Itoa(p.netPort()))
	case TransportCAN:
		return p.Interface
	}
	return ""
}

func (p *ConnectionParams) String() string {
	return fmt.Sprintf("%s/%s %s", p.Transport, p.Protocol, p.Endpoint())
}

// Validate checks the transport specific fields.
func (p *ConnectionParams) Validate() error {
	switch p.Transport {
	case TransportSerial:
		if p.Port == "" {
			return errors.New("serial connection without port")
		}
		if p.Baudrate < 0 {
			return fmt.Errorf("invalid baudrate %d", p.Baudrate)
		}
	case TransportNetwork:
		if p.Host == "" && p.netProtocol() == NetTCP {
			return errors.New("tcp connection without host")
		}
		if p.NetPort < 0 || p.NetPort > 65535 {
			return fmt.Errorf("invalid network port %d", p.NetPort)
		}
	case TransportCAN:
		if p.Interface == "" {
			return errors.New("can connection without interface")
		}
	default:
		return fmt.Errorf("invalid transport %s", p.Transport)
	}
	return nil
}

func (p *ConnectionParams) netProtocol() NetProtocol {
	if p.NetProtocol == NetUndefined {
		return defaultNetProtocol
	}
	return p.NetProtocol
}

func (p *ConnectionParams) netPort() int {
	if p.NetPort != 0 {
		return p.NetPort
	}
	if p.Protocol == ProtocolSignalK {
		return DefaultSignalKNetPort
	}
	return DefaultNMEA0183NetPort
}

func (p *ConnectionParams) readTimeout(def time.Duration) time.Duration {
	if p.ReadTimeout > 0 {
		return p.ReadTimeout
	}
	return def
}

func (p *ConnectionParams) reconnectAttempts() uint {
	if p.ReconnectAttempts > 0 {
		return p.ReconnectAttempts
	}
	return DefaultReconnectAttempts
}

func (p *ConnectionParams) reconnectDelay() time.Duration {
	if p.ReconnectDelay > 0 {
		return p.ReconnectDelay
	}
	return DefaultReconnectDelay
}
