package navcomm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

type NewDriverFunc func(params *ConnectionParams, cfg *DriverConfig) (Driver, error)

type DriverInfo struct {
	Name        string
	Description string
	Transport   Transport
	Protocol    Protocol
	// Default marks the driver used when a connection leaves the protocol
	// undefined. At most one per transport.
	Default bool
	New     NewDriverFunc
}

func (d *DriverInfo) String() string {
	return fmt.Sprintf("%s | %s, %s/%s default: %v", d.Name, d.Description, d.Transport, d.Protocol, d.Default)
}

type transportEntry struct {
	protocols map[Protocol]*DriverInfo
	fallback  *DriverInfo
}

var (
	driverMu  sync.RWMutex
	driverMap = make(map[Transport]*transportEntry)
)

// RegisterDriver adds a driver to the factory table. Drivers register from
// init, so platform specific transports are only present on builds that
// support them.
func RegisterDriver(info *DriverInfo) error {
	if info.New == nil {
		return fmt.Errorf("driver %s has no constructor", info.Name)
	}
	if info.Transport == TransportUndefined || info.Protocol == ProtocolUndefined {
		return fmt.Errorf("driver %s: transport and protocol must be defined", info.Name)
	}
	driverMu.Lock()
	defer driverMu.Unlock()
	entry, ok := driverMap[info.Transport]
	if !ok {
		entry = &transportEntry{protocols: make(map[Protocol]*DriverInfo)}
		driverMap[info.Transport] = entry
	}
	if existing, found := entry.protocols[info.Protocol]; found {
		return fmt.Errorf("driver %s already registered for %s/%s", existing.Name, info.Transport, info.Protocol)
	}
	if info.Default {
		if entry.fallback != nil {
			return fmt.Errorf("driver %s: %s already has default %s", info.Name, info.Transport, entry.fallback.Name)
		}
		entry.fallback = info
	}
	entry.protocols[info.Protocol] = info
	return nil
}

// lookupDriver resolves params to a table entry. A protocol the transport
// has no driver for, or no protocol at all, resolves to the transport
// default when there is one.
func lookupDriver(params *ConnectionParams) (info *DriverInfo, fallback bool, err error) {
	driverMu.RLock()
	defer driverMu.RUnlock()
	entry, ok := driverMap[params.Transport]
	if !ok {
		return nil, false, fmt.Errorf("%w: no drivers for transport %s on this build", ErrUnsupported, params.Transport)
	}
	if info, ok := entry.protocols[params.Protocol]; ok && params.Protocol != ProtocolUndefined {
		return info, false, nil
	}
	if entry.fallback == nil {
		return nil, false, fmt.Errorf("%w: %s over %s", ErrUnsupported, params.Protocol, params.Transport)
	}
	return entry.fallback, true, nil
}

// MakeDriver creates the driver for params, attaches the message bus as its
// listener and activates it in the registry. Transports without drivers on
// this build return ErrUnsupported and register nothing. A driver that fails to
// activate is closed before MakeDriver returns.
func MakeDriver(ctx context.Context, params *ConnectionParams, core *Core) (Driver, error) {
	if params == nil || core == nil {
		return nil, errors.New("make driver: nil params or core")
	}
	log := core.log.WithField("connection", params.String())
	info, fallback, err := lookupDriver(params)
	if err != nil {
		log.WithError(err).Error("no driver")
		return nil, err
	}
	if fallback {
		if params.Protocol == ProtocolUndefined {
			log.Infof("using default protocol driver %s (%s)", info.Name, info.Protocol)
		} else {
			log.Warnf("no %s driver for %s, using default protocol driver %s (%s)", params.Protocol, params.Transport, info.Name, info.Protocol)
		}
		p := *params
		p.Protocol = info.Protocol
		params = &p
	}

	d, err := info.New(params, core.driverConfig())
	if err != nil {
		log.WithError(err).Errorf("create %s", info.Name)
		return nil, err
	}
	d.SetListener(core.Bus)

	if err := core.Registry.Activate(ctx, d); err != nil {
		log.WithError(err).Errorf("activate %s", info.Name)
		d.Close()
		return nil, err
	}
	return d, nil
}

// SupportedCombinations lists the registered drivers ordered by transport
// and protocol.
func SupportedCombinations() []DriverInfo {
	driverMu.RLock()
	defer driverMu.RUnlock()
	var out []DriverInfo
	for _, entry := range driverMap {
		for _, info := range entry.protocols {
			out = append(out, *info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Transport != out[j].Transport {
			return out[i].Transport < out[j].Transport
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}
