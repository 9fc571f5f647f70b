package ap

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/proton-wifi/protond/bus"
	"github.com/proton-wifi/protond/hostapd"
)

const (
	defaultOpTimeout       = 5 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBackoff    = 200 * time.Millisecond
	defaultEventBuffer     = 32
	defaultMetricsInterval = 10 * time.Second
)

type ControllerConfig struct {
	Daemon Daemon
	Logger Logger

	// OpTimeout bounds the wait for a daemon acknowledgment or
	// confirming signal. Zero selects the 5s default.
	OpTimeout time.Duration

	// RetryAttempts bounds retries of transient bus failures.
	RetryAttempts int
	RetryBackoff  time.Duration

	// EventBuffer is the channel capacity of each subscribed client.
	EventBuffer int

	// Policy optionally restricts which stations may associate.
	Policy AdmissionPolicy

	// Metrics optionally enriches cached stations with radio metrics,
	// polled every MetricsInterval while an access point is up.
	Metrics         MetricsReader
	MetricsInterval time.Duration
}

// Controller owns the lifecycle state machine of every access point
// handle. All transitions for one handle are serialized; a second
// operation on a handle with one in flight is rejected as busy, not
// queued. Signal consumption runs concurrently with caller operations
// and always wins over the cache: the daemon is the source of truth.
type Controller struct {
	daemon          Daemon
	log             Logger
	opTimeout       time.Duration
	retryAttempts   int
	retryBackoff    time.Duration
	eventBuffer     int
	policy          AdmissionPolicy
	metrics         MetricsReader
	metricsInterval time.Duration

	mu      sync.Mutex
	entries map[Handle]*entry

	clientMtx    sync.Mutex
	clients      map[uint32]*Client
	nextClientID uint32

	eventsClient *hostapd.EventsClient
	done         chan struct{}
	stopOnce     sync.Once
}

func NewController(config *ControllerConfig) *Controller {
	c := &Controller{
		daemon:          config.Daemon,
		opTimeout:       config.OpTimeout,
		retryAttempts:   config.RetryAttempts,
		retryBackoff:    config.RetryBackoff,
		eventBuffer:     config.EventBuffer,
		policy:          config.Policy,
		metrics:         config.Metrics,
		metricsInterval: config.MetricsInterval,
		entries:         make(map[Handle]*entry),
		clients:         make(map[uint32]*Client),
		done:            make(chan struct{}),
	}

	if config.Logger != nil {
		c.log = config.Logger
	} else {
		c.log = noopLogger{}
	}

	if c.opTimeout == 0 {
		c.opTimeout = defaultOpTimeout
	}
	if c.retryAttempts == 0 {
		c.retryAttempts = defaultRetryAttempts
	}
	if c.retryBackoff == 0 {
		c.retryBackoff = defaultRetryBackoff
	}
	if c.eventBuffer == 0 {
		c.eventBuffer = defaultEventBuffer
	}
	if c.metricsInterval == 0 {
		c.metricsInterval = defaultMetricsInterval
	}

	return c
}

// Start subscribes to daemon events and begins consuming them.
func (c *Controller) Start() error {
	events, err := c.daemon.Events()
	if err != nil {
		return err
	}

	c.eventsClient = events

	go c.consume(events.Events)

	if c.metrics != nil {
		go c.pollMetrics()
	}

	return nil
}

// Stop cancels the daemon event subscription. Safe to call more than
// once.
func (c *Controller) Stop() error {
	c.stopOnce.Do(func() {
		if c.eventsClient != nil {
			c.eventsClient.Cancel()
			c.eventsClient = nil
		}

		close(c.done)
	})

	return nil
}

// Configure validates config locally and, only on valid input, applies
// it through the daemon. The new configuration becomes visible on
// snapshots once the daemon has acknowledged it, never optimistically.
// Returns a ConfigError on local rejection (no bus contact) and a
// LifecycleError on daemon or transport failure.
func (c *Controller) Configure(ctx context.Context, handle Handle, config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	e, prev, err := c.admit(handle, StateConfiguring, nil, map[State]bool{
		StateDown:  true,
		StateError: true,
	})
	if err != nil {
		return err
	}

	c.notify(&StateChangedEvent{Handle: handle, Previous: prev, Current: StateConfiguring})

	callErr := c.dispatch(func() error {
		return c.daemon.SetConfiguration(string(handle), wireConfiguration(config))
	})

	timer := time.NewTimer(c.opTimeout)
	defer timer.Stop()

	select {
	case err := <-callErr:
		if err != nil {
			lifecycleErr := classify(err)
			c.fail(e, lifecycleErr.Reason)
			c.notify(&ConfigurationFailedEvent{Handle: handle, Reason: lifecycleErr.Reason})
			return lifecycleErr
		}
	case <-timer.C:
		reason := "timeout waiting for configuration acknowledgment"
		c.fail(e, reason)
		c.notify(&ConfigurationFailedEvent{Handle: handle, Reason: reason})
		return &LifecycleError{Kind: Timeout, Reason: reason}
	case <-ctx.Done():
		reason := fmt.Sprintf("wait abandoned: %v", ctx.Err())
		c.fail(e, reason)
		return &LifecycleError{Kind: Timeout, Reason: reason}
	}

	// The method reply is the daemon's acknowledgment; commit the
	// configuration. Settle back to down only if no signal moved the
	// handle elsewhere in the meantime, the daemon's report wins.
	e.mu.Lock()
	e.config = config.copy()
	settled := e.state == StateConfiguring
	if settled {
		e.state = StateDown
		e.reason = ""
	}
	e.busy = false
	e.mu.Unlock()

	if settled {
		c.notify(&StateChangedEvent{Handle: handle, Previous: StateConfiguring, Current: StateDown})
	}

	return nil
}

// Start brings an access point up. It resolves only once the daemon's
// confirming state signal arrives; the synchronous call reply merely
// means the request was accepted.
func (c *Controller) StartAP(ctx context.Context, handle Handle) error {
	aw := &await{target: StateUp, ch: make(chan awaitResult, 1)}

	e, prev, err := c.admit(handle, StateStarting, aw, map[State]bool{
		StateDown:  true,
		StateError: true,
	})
	if err != nil {
		return err
	}

	c.notify(&StateChangedEvent{Handle: handle, Previous: prev, Current: StateStarting})

	callErr := c.dispatch(func() error {
		return c.daemon.StartAP(string(handle))
	})

	return c.awaitConfirmation(ctx, e, aw, callErr, "timeout waiting for start confirmation")
}

// StopAP takes an access point down. Stopping an access point that is
// already down is a no-op.
func (c *Controller) StopAP(ctx context.Context, handle Handle) error {
	e := c.entry(handle)

	e.mu.Lock()
	down := !e.busy && e.state == StateDown
	e.mu.Unlock()

	if down {
		return nil
	}

	aw := &await{target: StateDown, ch: make(chan awaitResult, 1)}

	e, prev, err := c.admit(handle, StateStopping, aw, map[State]bool{
		StateDown:     true,
		StateUp:       true,
		StateStarting: true,
		StateError:    true,
	})
	if err != nil {
		return err
	}

	// The reconciliation inside admit may have settled the handle down
	// already, in which case there is nothing left to do.
	if prev == StateDown {
		e.mu.Lock()
		e.state = StateDown
		e.busy = false
		e.await = nil
		e.mu.Unlock()
		return nil
	}

	c.notify(&StateChangedEvent{Handle: handle, Previous: prev, Current: StateStopping})

	callErr := c.dispatch(func() error {
		return c.daemon.StopAP(string(handle))
	})

	return c.awaitConfirmation(ctx, e, aw, callErr, "timeout waiting for stop confirmation")
}

// admit serializes caller-initiated transitions on a handle. It
// reconciles first when the cache is suspect, rejects concurrent
// operations as busy, verifies the transition is legal from the current
// state and installs the optimistic state plus the confirmation wait.
func (c *Controller) admit(handle Handle, next State, aw *await, validFrom map[State]bool) (*entry, State, error) {
	e := c.entry(handle)

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, 0, busy("another operation is in flight on " + string(handle))
	}
	needsReconcile := e.needsReconcile
	e.mu.Unlock()

	if needsReconcile {
		if err := c.reconcile(e); err != nil {
			return nil, 0, classify(err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy {
		return nil, 0, busy("another operation is in flight on " + string(handle))
	}

	if !validFrom[e.state] {
		return nil, 0, &LifecycleError{
			Kind:   Rejected,
			Reason: fmt.Sprintf("cannot transition to %v from state %v", next, e.state),
		}
	}

	prev := e.state
	e.state = next
	e.reason = ""
	e.busy = true
	e.await = aw

	return e, prev, nil
}

// awaitConfirmation waits for the confirming daemon signal, the call
// failing, the operation timeout or the caller abandoning the wait.
func (c *Controller) awaitConfirmation(ctx context.Context, e *entry, aw *await, callErr <-chan error, timeoutReason string) error {
	timer := time.NewTimer(c.opTimeout)
	defer timer.Stop()

	for {
		select {
		case err := <-callErr:
			if err != nil {
				lifecycleErr := classify(err)
				c.fail(e, lifecycleErr.Reason)
				return lifecycleErr
			}

			// Request accepted; keep waiting for the signal.
			callErr = nil
		case result := <-aw.ch:
			e.mu.Lock()
			e.busy = false
			e.mu.Unlock()

			if result.state == StateError {
				return &LifecycleError{Kind: Rejected, Reason: result.reason}
			}

			return nil
		case <-timer.C:
			c.fail(e, timeoutReason)
			return &LifecycleError{Kind: Timeout, Reason: timeoutReason}
		case <-ctx.Done():
			reason := fmt.Sprintf("wait abandoned: %v", ctx.Err())
			c.fail(e, reason)
			return &LifecycleError{Kind: Timeout, Reason: reason}
		}
	}
}

// dispatch runs a bus call with bounded retries of transient failures
// on its own goroutine, so the local wait can be abandoned while the
// call is in flight.
func (c *Controller) dispatch(call func() error) <-chan error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- c.callWithRetry(call)
	}()

	return errChan
}

func (c *Controller) callWithRetry(call func() error) error {
	var err error

	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * c.retryBackoff)
		}

		err = call()
		if err == nil || !bus.IsTemporary(err) {
			return err
		}

		c.log.Warnf("Transient bus failure (attempt %d of %d): %v", attempt, c.retryAttempts, err)
	}

	return err
}

// fail moves a handle into the error state after a failed operation and
// flags it for reconciliation before the next transition.
func (c *Controller) fail(e *entry, reason string) {
	e.mu.Lock()
	prev := e.state
	e.state = StateError
	e.reason = reason
	e.busy = false
	e.await = nil
	e.needsReconcile = true
	left := e.clearStationsLocked()
	e.mu.Unlock()

	for _, mac := range left {
		c.notify(&ClientLeftEvent{Handle: e.handle, MAC: mac})
	}

	c.notify(&StateChangedEvent{Handle: e.handle, Previous: prev, Current: StateError, Reason: reason})
}

// reconcile re-queries the daemon for the authoritative state of a
// handle and corrects the cache if it disagrees.
func (c *Controller) reconcile(e *entry) error {
	daemonState, err := c.daemon.State(string(e.handle))
	if err != nil {
		c.log.Errorf("Could not reconcile %v: %v", e.handle, err)
		return err
	}

	state, reason := stateFromDaemon(daemonState, "")
	c.applyState(e.handle, state, reason)

	e.mu.Lock()
	e.needsReconcile = false
	e.mu.Unlock()

	return nil
}

// consume folds daemon events into the cache, resolves confirmation
// waits and fans typed events out to subscribed clients, preserving the
// order in which the signals were received.
func (c *Controller) consume(events <-chan hostapd.Event) {
	for event := range events {
		switch ev := event.(type) {
		case *hostapd.StateEvent:
			state, reason := stateFromDaemon(ev.State, ev.Reason)
			c.applyState(Handle(ev.Ifname), state, reason)
		case *hostapd.FaultEvent:
			c.applyState(Handle(ev.Ifname), StateError, ev.Reason)
		case *hostapd.StationAddedEvent:
			c.applyStationAdded(Handle(ev.Ifname), ev.MAC)
		case *hostapd.StationRemovedEvent:
			c.applyStationRemoved(Handle(ev.Ifname), ev.MAC)
		default:
			c.log.Warnf("Ignoring unexpected daemon event %T", event)
		}
	}
}

// applyState records a daemon-reported state. The report always wins
// over the cached value; a contradiction updates the cache and emits a
// single StateChanged event, never a lifecycle fault.
func (c *Controller) applyState(handle Handle, state State, reason string) {
	e := c.entry(handle)

	e.mu.Lock()

	if state == StateError && reason == "" {
		reason = "daemon reported failure"
	}

	if e.state == state && e.reason == reason {
		e.mu.Unlock()
		return
	}

	prev := e.state
	e.state = state
	e.reason = reason

	if state == StateError {
		e.needsReconcile = true
	}

	var left []net.HardwareAddr
	if prev == StateUp && state != StateUp {
		left = e.clearStationsLocked()
	}

	e.deliverAwaitLocked()

	e.mu.Unlock()

	for _, mac := range left {
		c.notify(&ClientLeftEvent{Handle: handle, MAC: mac})
	}

	c.notify(&StateChangedEvent{Handle: handle, Previous: prev, Current: state, Reason: reason})
}

func (c *Controller) applyStationAdded(handle Handle, mac net.HardwareAddr) {
	e := c.entry(handle)

	e.mu.Lock()

	if e.state != StateUp {
		e.mu.Unlock()
		c.log.Debugf("Ignoring station %v on %v in state %v", mac, handle, e.state)
		return
	}

	key := mac.String()
	if _, ok := e.stations[key]; ok {
		e.mu.Unlock()
		return
	}

	if c.policy != nil && !c.policy.Check(mac) {
		e.mu.Unlock()
		c.log.Infof("Deauthenticating station %v denied by policy on %v", mac, handle)

		go func() {
			err := c.daemon.DeauthenticateStation(string(handle), mac)
			if err != nil {
				c.log.Errorf("Could not deauthenticate %v on %v: %v", mac, handle, err)
			}
		}()

		return
	}

	station := &Station{
		MAC:          append(net.HardwareAddr(nil), mac...),
		AssociatedAt: time.Now(),
	}
	e.stations[key] = station
	joined := station.copy()

	e.mu.Unlock()

	c.notify(&ClientJoinedEvent{Handle: handle, Station: joined})
}

func (c *Controller) applyStationRemoved(handle Handle, mac net.HardwareAddr) {
	e := c.entry(handle)

	e.mu.Lock()

	key := mac.String()
	if _, ok := e.stations[key]; !ok {
		e.mu.Unlock()
		c.log.Debugf("Ignoring departure of unknown station %v on %v", mac, handle)
		return
	}

	delete(e.stations, key)
	e.mu.Unlock()

	c.notify(&ClientLeftEvent{Handle: handle, MAC: mac})
}

// clearStationsLocked empties the station set, preserving the invariant
// that only an up access point has members. Callers must hold e.mu.
func (e *entry) clearStationsLocked() []net.HardwareAddr {
	var macs []net.HardwareAddr

	for _, station := range e.stations {
		macs = append(macs, station.MAC)
	}

	e.stations = make(map[string]*Station)

	return macs
}

// pollMetrics periodically refreshes radio metrics of stations on
// handles that are up.
func (c *Controller) pollMetrics() {
	ticker := time.NewTicker(c.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.refreshMetrics()
		case <-c.done:
			return
		}
	}
}

func (c *Controller) refreshMetrics() {
	c.mu.Lock()
	var up []*entry
	for _, e := range c.entries {
		up = append(up, e)
	}
	c.mu.Unlock()

	for _, e := range up {
		e.mu.Lock()
		isUp := e.state == StateUp
		e.mu.Unlock()

		if !isUp {
			continue
		}

		metrics, err := c.metrics.Stations(string(e.handle))
		if err != nil {
			c.log.Debugf("Could not read station metrics for %v: %v", e.handle, err)
			continue
		}

		e.mu.Lock()
		for key, station := range e.stations {
			if m, ok := metrics[key]; ok {
				station.Signal = m.Signal
				station.ConnectedFor = m.Connected
			}
		}
		e.mu.Unlock()
	}
}

// classify splits a bus error into the caller-facing taxonomy:
// transient transport failures that survived retries versus semantic
// rejections by the daemon.
func classify(err error) *LifecycleError {
	if bus.IsTemporary(err) {
		return &LifecycleError{Kind: BusUnavailable, Reason: err.Error()}
	}

	if callErr, ok := bus.AsCallError(err); ok {
		return &LifecycleError{Kind: Rejected, Reason: callErr.Error()}
	}

	return &LifecycleError{Kind: BusUnavailable, Reason: err.Error()}
}
