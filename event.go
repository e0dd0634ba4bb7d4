package navcomm

import (
	"fmt"
	"time"
)

type EventType int

func (et EventType) String() string {
	switch et {
	case EventTypeError:
		return "ERROR"
	case EventTypeWarning:
		return "WARN"
	case EventTypeInfo:
		return "INFO"
	case EventTypeDebug:
		return "DEBUG"
	case EventTypeState:
		return "STATE"
	default:
		return "UNKNOWN"
	}
}

const (
	EventTypeError EventType = iota
	EventTypeWarning
	EventTypeInfo
	EventTypeDebug
	// EventTypeState reports a connection state change, see Event.State.
	EventTypeState
)

// Event is a human readable status report from a driver. Events are fire
// and forget, they never affect control flow.
type Event struct {
	Type    EventType
	Source  NavAddr
	State   ConnState
	Details string
	Time    time.Time
}

func (e Event) String() string {
	if e.Type == EventTypeState {
		return fmt.Sprintf("[%s] %s %s %s", e.Type, e.Source, e.State, e.Details)
	}
	return fmt.Sprintf("[%s] %s %s", e.Type, e.Source, e.Details)
}

type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateConnected
	// StateDisconnected is terminal: reconnect attempts are exhausted or the
	// error was unrecoverable.
	StateDisconnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
