package navcomm

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// SubscriptionKey selects the messages a subscription receives. An empty
// Iface matches every endpoint on Bus.
type SubscriptionKey struct {
	Bus   Bus
	Iface string
}

func (k SubscriptionKey) String() string {
	return NewNavAddr(k.Bus, k.Iface).String()
}

func (k SubscriptionKey) matches(src NavAddr) bool {
	return NewNavAddr(k.Bus, k.Iface).Matches(src)
}

// Handler is called for every matching message.
type Handler func(msg *NavMsg)

var _ DriverListener = (*NavMsgBus)(nil)

// NavMsgBus fans decoded messages out to subscribers keyed by bus. Publish
// is called from the dispatcher goroutine, Subscribe and Unsubscribe from
// anywhere.
type NavMsgBus struct {
	log logrus.FieldLogger

	mu     sync.RWMutex
	subs   map[Bus][]*Subscription
	closed bool

	// running is the subscription whose handler Publish is calling
	running atomic.Pointer[Subscription]

	published atomic.Uint64
	panics    atomic.Uint64
}

func NewNavMsgBus(log logrus.FieldLogger) *NavMsgBus {
	return &NavMsgBus{
		log:  defaultLogger(log),
		subs: make(map[Bus][]*Subscription),
	}
}

// Subscribe registers h for messages matching key. Handlers run on the
// dispatcher goroutine in subscription order and must not block. A handler
// may close its own subscription.
func (b *NavMsgBus) Subscribe(key SubscriptionKey, h Handler) (*Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", key)
	}
	sub := &Subscription{
		key:     key,
		handler: h,
		bus:     b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	old := b.subs[key.Bus]
	subs := make([]*Subscription, len(old), len(old)+1)
	copy(subs, old)
	b.subs[key.Bus] = append(subs, sub)
	return sub, nil
}

// Unsubscribe removes sub. Once it returns, sub's handler will not be called
// again and, unless Unsubscribe was called from that handler, is not running.
func (b *NavMsgBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	old := b.subs[sub.key.Bus]
	subs := make([]*Subscription, 0, len(old))
	for _, s := range old {
		if s != sub {
			subs = append(subs, s)
		}
	}
	if len(subs) == 0 {
		delete(b.subs, sub.key.Bus)
	} else {
		b.subs[sub.key.Bus] = subs
	}
	b.mu.Unlock()
	sub.cancel(b.running.Load() != sub)
}

// Publish delivers msg to every matching subscription.
func (b *NavMsgBus) Publish(msg *NavMsg) {
	if msg == nil {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := b.subs[msg.Bus()]
	b.mu.RUnlock()

	b.published.Add(1)
	for _, sub := range subs {
		if !sub.key.matches(msg.Source()) {
			continue
		}
		b.call(sub, msg)
	}
}

func (b *NavMsgBus) call(sub *Subscription, msg *NavMsg) {
	prev := b.running.Swap(sub)
	defer b.running.Store(prev)
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.log.WithField("subscription", sub.key.String()).Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	sub.deliver(msg)
}

// Notify implements DriverListener.
func (b *NavMsgBus) Notify(msg *NavMsg) {
	b.Publish(msg)
}

// Len returns the number of subscriptions on bus.
func (b *NavMsgBus) Len(bus Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[bus])
}

// Published returns the number of messages published so far.
func (b *NavMsgBus) Published() uint64 {
	return b.published.Load()
}

// Panics returns the number of recovered handler panics.
func (b *NavMsgBus) Panics() uint64 {
	return b.panics.Load()
}

// Close drops every subscription. Publish is a no-op afterwards.
func (b *NavMsgBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := b.subs
	b.subs = make(map[Bus][]*Subscription)
	b.mu.Unlock()
	for _, subs := range all {
		for _, sub := range subs {
			sub.cancel(b.running.Load() != sub)
		}
	}
}
