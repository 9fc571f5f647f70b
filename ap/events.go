package ap

import (
	"net"
	"sync/atomic"
)

// Event is a typed notification delivered to subscribed clients.
// Concrete types are StateChangedEvent, ClientJoinedEvent,
// ClientLeftEvent and ConfigurationFailedEvent.
type Event interface{}

// StateChangedEvent reports one lifecycle transition of an access point.
type StateChangedEvent struct {
	Handle   Handle
	Previous State
	Current  State

	// Reason is non-empty when Current is StateError.
	Reason string
}

// ClientJoinedEvent reports a station that associated with an access point.
type ClientJoinedEvent struct {
	Handle  Handle
	Station *Station
}

// ClientLeftEvent reports a station that disassociated from an access point.
type ClientLeftEvent struct {
	Handle Handle
	MAC    net.HardwareAddr
}

// ConfigurationFailedEvent reports a configuration the daemon refused.
type ConfigurationFailedEvent struct {
	Handle Handle
	Reason string
}

// Client receives controller events over a bounded channel. A client
// that does not keep up loses events, which are counted on Dropped,
// rather than blocking delivery to other clients or signal consumption.
type Client struct {
	Events <-chan Event
	Id     uint32

	events     chan Event
	dropped    uint64
	cancelChan chan struct{}
	controller *Controller
}

// Dropped returns how many events were discarded because the client's
// channel was full.
func (c *Client) Dropped() uint64 {
	return atomic.LoadUint64(&c.dropped)
}

// Cancel removes the client. Safe to call at any time, including from
// the goroutine consuming the client's events.
func (c *Client) Cancel() {
	c.controller.clientMtx.Lock()
	delete(c.controller.clients, c.Id)
	c.controller.clientMtx.Unlock()

	close(c.cancelChan)
}

// Subscribe registers a new event client.
func (c *Controller) Subscribe() *Client {
	client := &Client{
		events:     make(chan Event, c.eventBuffer),
		cancelChan: make(chan struct{}),
		controller: c,
	}
	client.Events = client.events

	c.clientMtx.Lock()
	client.Id = c.nextClientID
	c.nextClientID++
	c.clients[client.Id] = client
	c.clientMtx.Unlock()

	return client
}

// notify fans an event out to all clients. Delivery is best-effort per
// client and never blocks the caller.
func (c *Controller) notify(event Event) {
	c.clientMtx.Lock()
	defer c.clientMtx.Unlock()

	for _, client := range c.clients {
		select {
		case client.events <- event:
		default:
			dropped := atomic.AddUint64(&client.dropped, 1)
			c.log.Warnf("Dropped event for slow client %d (%d dropped so far)", client.Id, dropped)
		}
	}
}
