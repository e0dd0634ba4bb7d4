package navcomm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// link is one established connection. Receive and Interrupt are called from
// different goroutines, everything else is serialised by BaseDriver.
type link interface {
	// Receive blocks for at most one read timeout and calls emit for every
	// complete unit read. A timeout is not an error.
	Receive(emit func([]byte)) error
	Send(ctx context.Context, unit []byte) error
	// Interrupt makes a blocked Receive return early where the transport
	// supports it.
	Interrupt()
	Close() error
}

// framer splits a byte stream into protocol units.
type framer interface {
	Push(p []byte, emit func([]byte))
	Reset()
}

type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

var openSerial = func(port string, mode *serial.Mode) (serialPort, error) {
	return serial.Open(port, mode)
}

var dialNet = func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

var listenUDP = func(laddr *net.UDPAddr) (*net.UDPConn, error) {
	return net.ListenUDP("udp", laddr)
}

var dialWebsocket = func(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// streamLink reads a byte stream (serial port or TCP) through a framer.
type streamLink struct {
	conn   io.ReadWriteCloser
	framer framer
	buf    []byte
	// arm is called before every read, net connections use it to set the
	// read deadline.
	arm       func() error
	interrupt func()
}

func (l *streamLink) Receive(emit func([]byte)) error {
	if l.arm != nil {
		if err := l.arm(); err != nil {
			return err
		}
	}
	n, err := l.conn.Read(l.buf)
	if n > 0 {
		l.framer.Push(l.buf[:n], emit)
	}
	if err != nil {
		if isTimeout(err) {
			return nil
		}
		return err
	}
	return nil
}

func (l *streamLink) Send(ctx context.Context, unit []byte) error {
	if c, ok := l.conn.(net.Conn); ok {
		if deadline, ok := ctx.Deadline(); ok {
			if err := c.SetWriteDeadline(deadline); err != nil {
				return err
			}
			defer c.SetWriteDeadline(time.Time{})
		}
	}
	_, err := l.conn.Write(unit)
	return err
}

func (l *streamLink) Interrupt() {
	if l.interrupt != nil {
		l.interrupt()
	}
}

func (l *streamLink) Close() error {
	l.framer.Reset()
	return l.conn.Close()
}

func serialDialer(params *ConnectionParams, baudrate int, newFramer func() framer) dialFunc {
	if params.Baudrate > 0 {
		baudrate = params.Baudrate
	}
	timeout := params.readTimeout(DefaultSerialReadTimeout)
	return func(ctx context.Context) (link, error) {
		port, err := openSerial(params.Port, &serial.Mode{
			BaudRate: baudrate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			var pe *serial.PortError
			if errors.As(err, &pe) {
				switch pe.Code() {
				case serial.InvalidSerialPort, serial.InvalidSpeed, serial.PermissionDenied:
					return nil, Unrecoverable(fmt.Errorf("failed to open com port %q : %w", params.Port, err))
				}
			}
			return nil, fmt.Errorf("failed to open com port %q : %w", params.Port, err)
		}
		if err := port.SetReadTimeout(timeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
		return &streamLink{
			conn:   port,
			framer: newFramer(),
			buf:    make([]byte, 1024),
		}, nil
	}
}

func tcpDialer(params *ConnectionParams, newFramer func() framer) dialFunc {
	timeout := params.readTimeout(DefaultNetReadTimeout)
	address := params.Endpoint()
	return func(ctx context.Context) (link, error) {
		conn, err := dialNet(ctx, "tcp", address)
		if err != nil {
			return nil, err
		}
		return &streamLink{
			conn:   conn,
			framer: newFramer(),
			buf:    make([]byte, 4096),
			arm: func() error {
				return conn.SetReadDeadline(time.Now().Add(timeout))
			},
			interrupt: func() {
				conn.SetReadDeadline(time.Now())
			},
		}, nil
	}
}

// udpLink listens for datagrams on a local port and sends to a fixed remote.
type udpLink struct {
	conn    *net.UDPConn
	remote  *net.UDPAddr
	framer  framer
	buf     []byte
	timeout time.Duration
}

func (l *udpLink) Receive(emit func([]byte)) error {
	if err := l.conn.SetReadDeadline(time.Now().Add(l.timeout)); err != nil {
		return err
	}
	n, _, err := l.conn.ReadFromUDP(l.buf)
	if err != nil {
		if isTimeout(err) {
			return nil
		}
		return err
	}
	l.framer.Push(l.buf[:n], emit)
	// a datagram always ends a unit
	l.framer.Push([]byte{'\n'}, emit)
	return nil
}

func (l *udpLink) Send(_ context.Context, unit []byte) error {
	if l.remote == nil {
		return fmt.Errorf("%w: no remote host configured", ErrNoRoute)
	}
	_, err := l.conn.WriteToUDP(unit, l.remote)
	return err
}

func (l *udpLink) Interrupt() {
	l.conn.SetReadDeadline(time.Now())
}

func (l *udpLink) Close() error {
	l.framer.Reset()
	return l.conn.Close()
}

func udpDialer(params *ConnectionParams, newFramer func() framer) dialFunc {
	timeout := params.readTimeout(DefaultNetReadTimeout)
	port := params.netPort()
	return func(ctx context.Context) (link, error) {
		var remote *net.UDPAddr
		if params.Host != "" {
			var err error
			remote, err = net.ResolveUDPAddr("udp", net.JoinHostPort(params.Host, strconv.Itoa(port)))
			if err != nil {
				return nil, Unrecoverable(err)
			}
		}
		conn, err := listenUDP(&net.UDPAddr{Port: port})
		if err != nil {
			return nil, err
		}
		return &udpLink{
			conn:    conn,
			remote:  remote,
			framer:  newFramer(),
			buf:     make([]byte, 65535),
			timeout: timeout,
		}, nil
	}
}

// wsLink carries one JSON document per text message. Read deadlines are not
// used for polling since a websocket read timeout breaks the connection.
type wsLink struct {
	conn *websocket.Conn
}

func (l *wsLink) Receive(emit func([]byte)) error {
	typ, msg, err := l.conn.ReadMessage()
	if err != nil {
		return err
	}
	if typ == websocket.TextMessage {
		emit(msg)
	}
	return nil
}

func (l *wsLink) Send(ctx context.Context, unit []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := l.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		defer l.conn.SetWriteDeadline(time.Time{})
	}
	return l.conn.WriteMessage(websocket.TextMessage, unit)
}

func (l *wsLink) Interrupt() {
	l.conn.SetReadDeadline(time.Now())
}

func (l *wsLink) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	l.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return l.conn.Close()
}

func websocketDialer(url string) dialFunc {
	return func(ctx context.Context) (link, error) {
		conn, err := dialWebsocket(ctx, url)
		if err != nil {
			return nil, err
		}
		return &wsLink{conn: conn}, nil
	}
}
