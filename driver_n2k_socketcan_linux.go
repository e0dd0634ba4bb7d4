//go:build linux

package navcomm

import (
	"context"
	"net"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

func init() {
	if err := RegisterDriver(&DriverInfo{
		Name:        "NMEA2000 SocketCAN",
		Description: "NMEA 2000 on a Linux SocketCAN interface",
		Transport:   TransportCAN,
		Protocol:    ProtocolNMEA2000,
		Default:     true,
		New:         NewN2KSocketCANDriver,
	}); err != nil {
		panic(err)
	}
}

type N2KSocketCANDriver struct {
	*BaseDriver
}

// NewN2KSocketCANDriver expects the interface to be configured and up, the
// bitrate is not touched.
func NewN2KSocketCANDriver(params *ConnectionParams, cfg *DriverConfig) (Driver, error) {
	base, err := NewBaseDriver("NMEA2000 SocketCAN", params, cfg)
	if err != nil {
		return nil, err
	}
	timeout := params.readTimeout(DefaultNetReadTimeout)
	iface := params.Interface
	base.dial = func(ctx context.Context) (link, error) {
		conn, err := socketcan.DialContext(ctx, "can", iface)
		if err != nil {
			return nil, err
		}
		return &canLink{
			conn:    conn,
			rx:      socketcan.NewReceiver(conn),
			tx:      socketcan.NewTransmitter(conn),
			timeout: timeout,
		}, nil
	}
	base.codec = newCANCodec(base.addr)
	return &N2KSocketCANDriver{BaseDriver: base}, nil
}

type canLink struct {
	conn    net.Conn
	rx      *socketcan.Receiver
	tx      *socketcan.Transmitter
	timeout time.Duration
}

func (l *canLink) Receive(emit func([]byte)) error {
	if err := l.conn.SetReadDeadline(time.Now().Add(l.timeout)); err != nil {
		return err
	}
	if l.rx.Receive() {
		if l.rx.HasErrorFrame() {
			return nil
		}
		f := l.rx.Frame()
		if f.IsRemote {
			return nil
		}
		frame := &CANFrame{
			Identifier: f.ID,
			Extended:   f.IsExtended,
			Data:       f.Data[:f.Length],
		}
		emit(frame.Bytes())
		return nil
	}
	err := l.rx.Err()
	if isTimeout(err) {
		// the receiver keeps its last error, start over
		l.rx = socketcan.NewReceiver(l.conn)
		return nil
	}
	return err
}

func (l *canLink) Send(ctx context.Context, unit []byte) error {
	f, err := ParseCANFrame(unit)
	if err != nil {
		return err
	}
	frame := can.Frame{
		ID:         f.Identifier,
		Length:     uint8(f.DLC()),
		IsExtended: f.Extended,
	}
	copy(frame.Data[:], f.Data)
	return l.tx.TransmitFrame(ctx, frame)
}

func (l *canLink) Interrupt() {
	l.conn.SetReadDeadline(time.Now())
}

func (l *canLink) Close() error {
	return l.conn.Close()
}
