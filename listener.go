package navcomm

// DriverListener receives decoded messages from a driver. Notify is called
// on the dispatcher goroutine, never on a driver I/O goroutine, and must not
// block for long.
type DriverListener interface {
	Notify(msg *NavMsg)
}

// RawListener is an optional DriverListener capability. NotifyRaw gets every
// framed unit before it is decoded. raw must not be retained.
type RawListener interface {
	NotifyRaw(source NavAddr, raw []byte)
}

// StatusListener is an optional DriverListener capability for connection
// state and diagnostic events.
type StatusListener interface {
	NotifyStatus(evt Event)
}

// ListenerFunc adapts a function to DriverListener.
type ListenerFunc func(msg *NavMsg)

func (f ListenerFunc) Notify(msg *NavMsg) {
	f(msg)
}
