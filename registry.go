package navcomm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Registry holds the active drivers, at most one per connection identity.
type Registry struct {
	log logrus.FieldLogger

	// activateMu serialises Activate and Deactivate so that replacing a
	// driver (close old, open new) is atomic with respect to other callers.
	activateMu sync.Mutex

	mu      sync.RWMutex
	drivers map[string]Driver
}

func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		log:     defaultLogger(log),
		drivers: make(map[string]Driver),
	}
}

// Activate opens d and makes it the active driver for its connection
// identity. A driver already active for the same identity is closed, and
// its I/O goroutine joined, before d is opened.
func (r *Registry) Activate(ctx context.Context, d Driver) error {
	if d == nil {
		return ErrNilDriver
	}
	id := d.Params().Identity()

	r.activateMu.Lock()
	defer r.activateMu.Unlock()

	r.mu.Lock()
	old, found := r.drivers[id]
	if found && old == d {
		r.mu.Unlock()
		return nil
	}
	delete(r.drivers, id)
	r.mu.Unlock()

	if found {
		r.log.WithField("identity", id).Infof("replacing active driver %s", old.Name())
		if err := old.Close(); err != nil {
			r.log.WithError(err).WithField("identity", id).Warn("closing replaced driver")
		}
	}

	if err := d.Open(ctx); err != nil {
		if found {
			r.log.WithError(err).WithField("identity", id).Errorf("%s failed to open after replacing %s, no driver is active for this connection", d.Name(), old.Name())
		}
		return fmt.Errorf("activate %s: %w", d.Name(), err)
	}

	r.mu.Lock()
	r.drivers[id] = d
	r.mu.Unlock()
	r.log.WithField("identity", id).Debugf("activated %s", d.Name())
	return nil
}

// Deactivate stops d and removes it. Deactivating a driver that is not
// active only closes it.
func (r *Registry) Deactivate(d Driver) error {
	if d == nil {
		return ErrNilDriver
	}
	r.activateMu.Lock()
	defer r.activateMu.Unlock()

	id := d.Params().Identity()
	r.mu.Lock()
	if cur, ok := r.drivers[id]; ok && cur == d {
		delete(r.drivers, id)
	}
	r.mu.Unlock()
	return d.Close()
}

// DeactivateIdentity stops and removes the driver active for id, if any.
func (r *Registry) DeactivateIdentity(id string) error {
	d, ok := r.Get(id)
	if !ok {
		return nil
	}
	return r.Deactivate(d)
}

func (r *Registry) Get(id string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	return d, ok
}

// Drivers returns a snapshot of the active drivers ordered by identity.
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	ids := make([]string, 0, len(r.drivers))
	for id := range r.drivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Driver, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.drivers[id])
	}
	r.mu.RUnlock()
	return out
}

// Addrs enumerates the addresses of the active drivers.
func (r *Registry) Addrs() []NavAddr {
	drivers := r.Drivers()
	out := make([]NavAddr, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, d.Addr())
	}
	return out
}

// Find returns the active drivers addr matches. An empty addr iface matches
// every driver on the bus.
func (r *Registry) Find(addr NavAddr) []Driver {
	var out []Driver
	for _, d := range r.Drivers() {
		if addr.Matches(d.Addr()) {
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

// SendMessage sends msg through every active driver dest matches. It
// returns ErrNoRoute when there is none and the joined send errors
// otherwise.
func (r *Registry) SendMessage(ctx context.Context, msg *NavMsg, dest NavAddr) error {
	drivers := r.Find(dest)
	if len(drivers) == 0 {
		return fmt.Errorf("%w: %s", ErrNoRoute, dest)
	}
	var errs []error
	for _, d := range drivers {
		if err := d.SendMessage(ctx, msg, d.Addr()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Addr(), err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll stops every active driver concurrently and empties the registry.
func (r *Registry) CloseAll() error {
	r.activateMu.Lock()
	defer r.activateMu.Unlock()

	r.mu.Lock()
	drivers := r.drivers
	r.drivers = make(map[string]Driver)
	r.mu.Unlock()

	var g errgroup.Group
	for id, d := range drivers {
		id, d := id, d
		g.Go(func() error {
			if err := d.Close(); err != nil {
				return fmt.Errorf("close %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
