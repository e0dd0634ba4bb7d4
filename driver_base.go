package navcomm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"
)

// DriverConfig carries the shared collaborators handed to every driver
// constructor by the factory.
type DriverConfig struct {
	Dispatcher *Dispatcher
	Logger     logrus.FieldLogger
	// OnStatus, if set, is called on the dispatcher goroutine for every
	// status event.
	OnStatus func(Event)
}

// codec turns framed units into messages and back. decode runs on the
// dispatcher goroutine only, so codecs may keep state without locking.
// A nil message with a nil error means the unit was consumed without
// producing a message.
type codec interface {
	decode(raw []byte, received time.Time) (*NavMsg, error)
	encode(msg *NavMsg, dest NavAddr) ([][]byte, error)
}

type dialFunc func(ctx context.Context) (link, error)

// BaseDriver implements the transport independent parts of Driver:
// listener handling, the single I/O goroutine with reconnect, two phase
// shutdown, statistics and status events. Concrete drivers embed it and
// provide a dial function and a codec.
type BaseDriver struct {
	name   string
	addr   NavAddr
	params *ConnectionParams
	cfg    *DriverConfig
	log    logrus.FieldLogger

	dial  dialFunc
	codec codec

	lmu      sync.RWMutex
	listener DriverListener

	// dmu is read locked while a unit is delivered, stop takes it to wait
	// out a delivery in progress
	dmu sync.RWMutex

	linkMu sync.Mutex
	link   link
	wmu    sync.Mutex

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
	closeChan chan struct{}
	closeErr  error

	state atomic.Int32
	stats counters
}

func NewBaseDriver(name string, params *ConnectionParams, cfg *DriverConfig) (*BaseDriver, error) {
	if cfg == nil || cfg.Dispatcher == nil {
		return nil, errors.New("driver config without dispatcher")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logger := defaultLogger(cfg.Logger)
	addr := NewNavAddr(params.Protocol.Bus(), params.Endpoint())
	return &BaseDriver{
		name:   name,
		addr:   addr,
		params: params,
		cfg:    cfg,
		log: logger.WithFields(logrus.Fields{
			"driver": name,
			"bus":    addr.Bus().String(),
			"iface":  addr.Iface(),
		}),
		closeChan: make(chan struct{}),
	}, nil
}

// Name returns the driver name.
func (base *BaseDriver) Name() string {
	return base.name
}

func (base *BaseDriver) Addr() NavAddr {
	return base.addr
}

func (base *BaseDriver) Params() *ConnectionParams {
	return base.params
}

func (base *BaseDriver) Stats() Stats {
	return base.stats.snapshot()
}

func (base *BaseDriver) State() ConnState {
	return ConnState(base.state.Load())
}

func (base *BaseDriver) SetListener(l DriverListener) {
	base.lmu.Lock()
	defer base.lmu.Unlock()
	base.listener = l
}

func (base *BaseDriver) getListener() DriverListener {
	base.lmu.RLock()
	defer base.lmu.RUnlock()
	return base.listener
}

func (base *BaseDriver) Open(ctx context.Context) error {
	base.mu.Lock()
	defer base.mu.Unlock()
	if base.closed.Load() {
		return ErrClosed
	}
	if base.started {
		return ErrAlreadyOpen
	}
	if base.dial == nil || base.codec == nil {
		return Unrecoverable(fmt.Errorf("%s: incomplete driver", base.name))
	}
	base.started = true
	ctx, base.cancel = context.WithCancel(ctx)
	base.wg.Add(1)
	go base.run(ctx)
	return nil
}

func (base *BaseDriver) Close() error {
	base.stop()
	return base.closeErr
}

// stop is the two phase shutdown: signal the I/O goroutine, wait for it to
// exit and only then release the transport handle.
func (base *BaseDriver) stop() {
	base.closeOnce.Do(func() {
		base.mu.Lock()
		base.closed.Store(true)
		close(base.closeChan)
		cancel := base.cancel
		base.mu.Unlock()

		base.dmu.Lock()
		base.dmu.Unlock()

		if cancel != nil {
			cancel()
		}
		base.linkMu.Lock()
		if base.link != nil {
			base.link.Interrupt()
		}
		base.linkMu.Unlock()

		base.wg.Wait()

		base.linkMu.Lock()
		l := base.link
		base.link = nil
		base.linkMu.Unlock()
		if l != nil {
			base.closeErr = l.Close()
		}
		base.setState(StateClosed, "")
	})
}

func (base *BaseDriver) stopping(ctx context.Context) bool {
	select {
	case <-base.closeChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (base *BaseDriver) run(ctx context.Context) {
	defer base.wg.Done()
	defer func() {
		if !base.closed.Load() && ctx.Err() != nil {
			base.setState(StateDisconnected, ctx.Err().Error())
		}
	}()
	for {
		l, err := base.connect(ctx)
		if err != nil {
			if base.stopping(ctx) {
				return
			}
			base.Error(err)
			base.setState(StateDisconnected, err.Error())
			return
		}
		if !base.setLink(l) {
			// stop() owns the link from here
			return
		}
		base.setState(StateConnected, "")

		err = base.readLoop(ctx, l)
		if base.stopping(ctx) {
			return
		}
		base.clearLink()
		if cerr := l.Close(); cerr != nil {
			base.log.WithError(cerr).Debug("close link")
		}
		if !IsRecoverable(err) {
			base.Error(err)
			base.setState(StateDisconnected, err.Error())
			return
		}
		base.Warn("connection lost: " + err.Error())
	}
}

func (base *BaseDriver) readLoop(ctx context.Context, l link) error {
	for {
		select {
		case <-base.closeChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := l.Receive(base.emit); err != nil {
			return err
		}
	}
}

func (base *BaseDriver) connect(ctx context.Context) (link, error) {
	base.setState(StateConnecting, "")
	var l link
	err := retry.Do(
		func() error {
			var err error
			l, err = base.dial(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(base.params.reconnectAttempts()),
		retry.Delay(base.params.reconnectDelay()),
		retry.MaxDelay(DefaultReconnectMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsRecoverable),
		retry.OnRetry(func(n uint, err error) {
			base.Warn(fmt.Sprintf("connect attempt %d failed: %v", n+1, err))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// setLink publishes l as the current link. It returns false if the driver is
// being closed, in which case the caller must not touch l again.
func (base *BaseDriver) setLink(l link) bool {
	base.linkMu.Lock()
	defer base.linkMu.Unlock()
	base.link = l
	return !base.closed.Load()
}

func (base *BaseDriver) clearLink() {
	base.linkMu.Lock()
	base.link = nil
	base.linkMu.Unlock()
}

// emit is called on the I/O goroutine for every framed unit. The unit is
// copied since framers reuse their buffers.
func (base *BaseDriver) emit(unit []byte) {
	base.stats.received.Add(1)
	raw := make([]byte, len(unit))
	copy(raw, unit)
	if !base.cfg.Dispatcher.post(envelope{driver: base, raw: raw, received: time.Now()}) {
		n := base.stats.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			base.Warn(fmt.Sprintf("%v (%d total)", ErrDroppedUnit, n))
		}
	}
}

// discardUnit counts a unit the framer dropped as malformed.
func (base *BaseDriver) discardUnit() {
	n := base.stats.decodeErrors.Add(1)
	if n == 1 || n%100 == 0 {
		base.Debug(fmt.Sprintf("framer dropped a malformed unit (%d decode errors)", n))
	}
}

// SendMessage encodes msg for this driver's protocol and writes it to the
// current connection. dest must be on the driver's bus; an empty dest iface
// addresses whatever the driver is connected to.
func (base *BaseDriver) SendMessage(ctx context.Context, msg *NavMsg, dest NavAddr) error {
	err := base.send(ctx, msg, dest)
	if err != nil {
		base.Error(fmt.Errorf("send: %w", err))
	}
	return err
}

func (base *BaseDriver) send(ctx context.Context, msg *NavMsg, dest NavAddr) error {
	if base.closed.Load() {
		return ErrClosed
	}
	if msg == nil {
		return errors.New("nil message")
	}
	if dest.Bus() != base.addr.Bus() || (dest.Iface() != "" && dest.Iface() != base.addr.Iface()) {
		return fmt.Errorf("%w: %s", ErrNoRoute, dest)
	}
	units, err := base.codec.encode(msg, dest)
	if err != nil {
		return err
	}

	base.wmu.Lock()
	defer base.wmu.Unlock()
	base.linkMu.Lock()
	l := base.link
	base.linkMu.Unlock()
	if l == nil || base.State() != StateConnected {
		return ErrNotConnected
	}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Send(ctx, unit); err != nil {
			return err
		}
	}
	base.stats.sent.Add(1)
	return nil
}

// deliver runs on the dispatcher goroutine. Nothing reaches the listener
// once Close has returned, so a listener must not close its own driver.
func (base *BaseDriver) deliver(env envelope) {
	base.dmu.RLock()
	defer base.dmu.RUnlock()
	if base.closed.Load() {
		return
	}
	l := base.getListener()
	if rl, ok := l.(RawListener); ok {
		rl.NotifyRaw(base.addr, env.raw)
	}
	msg, err := base.codec.decode(env.raw, env.received)
	if err != nil {
		base.stats.decodeErrors.Add(1)
		base.log.WithError(err).Debug("dropping undecodable unit")
		return
	}
	if msg == nil || l == nil || base.closed.Load() {
		return
	}
	l.Notify(msg)
}

func (base *BaseDriver) deliverEvent(evt Event) {
	if sl, ok := base.getListener().(StatusListener); ok {
		sl.NotifyStatus(evt)
	}
	if base.cfg.OnStatus != nil {
		base.cfg.OnStatus(evt)
	}
}

func (base *BaseDriver) setState(state ConnState, details string) {
	if ConnState(base.state.Swap(int32(state))) == state {
		return
	}
	base.sendEvent(Event{Type: EventTypeState, State: state, Details: details})
}

func (base *BaseDriver) sendEvent(evt Event) {
	evt.Source = base.addr
	evt.State = base.State()
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	logEvent(base.log, evt)
	if !base.cfg.Dispatcher.post(envelope{driver: base, event: &evt}) {
		base.log.Debugf("event not delivered, dispatcher busy: %s", evt.Details)
	}
}

// Send an error event
func (base *BaseDriver) Error(err error) {
	base.sendEvent(Event{Type: EventTypeError, Details: err.Error()})
}

// Send a warning event
func (base *BaseDriver) Warn(warn string) {
	base.sendEvent(Event{Type: EventTypeWarning, Details: warn})
}

// Send an info event
func (base *BaseDriver) Info(info string) {
	base.sendEvent(Event{Type: EventTypeInfo, Details: info})
}

// Send a debug event
func (base *BaseDriver) Debug(debug string) {
	base.sendEvent(Event{Type: EventTypeDebug, Details: debug})
}
