// Package ap drives wireless access points through a system wireless
// daemon. The controller converts a declarative configuration into bus
// calls, tracks the daemon's asynchronously reported state, reconciles
// divergences and surfaces a race-free view of AP status and connected
// clients.
package ap

import (
	"net"
	"time"
)

// Handle identifies one access point by its radio interface name,
// for example "wlan0".
type Handle string

// State is the lifecycle state of an access point.
type State int

const (
	StateDown State = iota
	StateConfiguring
	StateStarting
	StateUp
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateDown:
		return "DOWN"
	case StateConfiguring:
		return "CONFIGURING"
	case StateStarting:
		return "STARTING"
	case StateUp:
		return "UP"
	case StateStopping:
		return "STOPPING"
	case StateError:
		return "ERROR"
	default:
		return "INVALID STATE"
	}
}

// Station is one client currently associated with an access point.
type Station struct {
	MAC          net.HardwareAddr
	AssociatedAt time.Time

	// Signal is the last observed signal strength in dBm, 0 when unknown.
	Signal int
	// ConnectedFor is the daemon-reported association duration, 0 when unknown.
	ConnectedFor time.Duration
}

func (s *Station) copy() *Station {
	mac := make(net.HardwareAddr, len(s.MAC))
	copy(mac, s.MAC)

	c := *s
	c.MAC = mac

	return &c
}

// Snapshot is an immutable copy of one access point's state, last
// acknowledged configuration and station set.
type Snapshot struct {
	Handle Handle
	State  State

	// Reason is non-empty exactly when State is StateError.
	Reason string

	// Config is the last configuration acknowledged by the daemon,
	// nil if the access point was never configured.
	Config *Config

	Stations []*Station
}
