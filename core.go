package navcomm

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Core wires the shared collaborators drivers are created against: one
// message bus, one driver registry and one dispatcher.
type Core struct {
	Bus        *NavMsgBus
	Registry   *Registry
	Dispatcher *Dispatcher

	log       logrus.FieldLogger
	queueSize int
	onStatus  func(Event)
}

type Option func(c *Core)

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Core) {
		c.log = log
	}
}

// WithQueueSize sets the dispatcher queue length.
func WithQueueSize(n int) Option {
	return func(c *Core) {
		c.queueSize = n
	}
}

// WithStatusFunc registers a callback for every driver status event.
func WithStatusFunc(fn func(Event)) Option {
	return func(c *Core) {
		c.onStatus = fn
	}
}

func New(opts ...Option) *Core {
	c := &Core{
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = defaultLogger(c.log)
	c.Bus = NewNavMsgBus(c.log.WithField("component", "bus"))
	c.Registry = NewRegistry(c.log.WithField("component", "registry"))
	c.Dispatcher = NewDispatcher(c.queueSize, c.log.WithField("component", "dispatcher"))
	return c
}

func (c *Core) driverConfig() *DriverConfig {
	return &DriverConfig{
		Dispatcher: c.Dispatcher,
		Logger:     c.log,
		OnStatus:   c.onStatus,
	}
}

// Run runs the dispatcher until ctx is cancelled or Close is called.
func (c *Core) Run(ctx context.Context) error {
	return c.Dispatcher.Run(ctx)
}

// Close stops every driver, then the dispatcher, then drops all
// subscriptions.
func (c *Core) Close() error {
	err := c.Registry.CloseAll()
	c.Dispatcher.Close()
	c.Bus.Close()
	return err
}
