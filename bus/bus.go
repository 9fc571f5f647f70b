package bus

// Reply holds the decoded return values of a completed method call.
type Reply struct {
	Body []interface{}
}

// SignalPayload is one signal as it arrived from the remote daemon.
type SignalPayload struct {
	Path      string
	Interface string
	Name      string
	Body      []interface{}
}

// Subscription delivers matching signals in the order they were received
// on the underlying connection. Cancel stops delivery and releases the
// match on the bus.
type Subscription struct {
	Signals <-chan *SignalPayload
	Cancel  func()
}

// Bus is the control-bus contract the rest of the system depends on.
// An empty member on Subscribe matches all signals of the interface,
// and an empty path matches all object paths.
type Bus interface {
	Call(path string, iface string, method string, args ...interface{}) (*Reply, error)
	Subscribe(path string, iface string, member string) (*Subscription, error)
	Close() error
}
