package navcomm

import (
	"sync"
	"sync/atomic"
)

type Subscription struct {
	key     SubscriptionKey
	handler Handler
	bus     *NavMsgBus

	// mu is held while the handler runs so cancel can wait it out
	mu        sync.Mutex
	cancelled atomic.Bool
	closeOnce sync.Once
}

func (s *Subscription) Key() SubscriptionKey {
	return s.key
}

// Close unsubscribes s from its bus. It may be called from s's own handler.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.Unsubscribe(s)
	})
}

func (s *Subscription) deliver(msg *NavMsg) {
	if s.cancelled.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled.Load() {
		return
	}
	s.handler(msg)
}

// cancel stops further deliveries. With wait set it also blocks until a
// handler call in progress has returned.
func (s *Subscription) cancel(wait bool) {
	s.cancelled.Store(true)
	if wait {
		s.mu.Lock()
		s.mu.Unlock()
	}
}
