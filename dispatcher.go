package navcomm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultQueueSize = 1024

type envelope struct {
	driver   *BaseDriver
	raw      []byte
	received time.Time
	event    *Event
}

// Dispatcher moves framed units from the driver I/O goroutines to a single
// consumer goroutine where they are decoded and handed to listeners. The
// queue is bounded; producers never block, a full queue drops the unit.
// Units from one driver are delivered in the order they were read.
type Dispatcher struct {
	queue chan envelope
	log   logrus.FieldLogger

	runMu     sync.Mutex
	closeOnce sync.Once
	closeChan chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func NewDispatcher(queueSize int, log logrus.FieldLogger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queue:     make(chan envelope, queueSize),
		log:       defaultLogger(log),
		closeChan: make(chan struct{}),
	}
}

func (d *Dispatcher) post(env envelope) bool {
	select {
	case <-d.closeChan:
		return false
	default:
	}
	select {
	case d.queue <- env:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Run consumes the queue until ctx is cancelled or Close is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.closeChan:
			return nil
		case env := <-d.queue:
			d.dispatch(env)
		}
	}
}

func (d *Dispatcher) dispatch(env envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("driver", env.driver.name).Errorf("listener panic: %v", r)
		}
	}()
	if env.event != nil {
		env.driver.deliverEvent(*env.event)
		return
	}
	env.driver.deliver(env)
	d.delivered.Add(1)
}

// Close stops the consumer and waits for an in progress delivery to finish.
// Units still queued are discarded.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closeChan)
	})
	d.runMu.Lock()
	d.runMu.Unlock()
}

// Len returns the number of queued units.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Dropped returns the number of units and events dropped on a full queue.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Delivered returns the number of units handed to their driver for decoding.
func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}
