package ap

import (
	"net"
	"time"

	"github.com/proton-wifi/protond/hostapd"
)

// Daemon is the typed surface of the wireless daemon the controller
// drives. It matches hostapd.Hostapd and keeps the controller
// independent of bus addressing, so a different transport or daemon
// version only requires a new object model.
type Daemon interface {
	SetConfiguration(ifname string, config *hostapd.Configuration) error
	StartAP(ifname string) error
	StopAP(ifname string) error
	DeauthenticateStation(ifname string, mac net.HardwareAddr) error
	State(ifname string) (string, error)
	Events() (*hostapd.EventsClient, error)
}

// check Hostapd compliance to the daemon contract during compile time
var _ Daemon = (*hostapd.Hostapd)(nil)

// AdmissionPolicy decides whether a joining station may stay associated.
// A denied station is deauthenticated and never enters the station set.
type AdmissionPolicy interface {
	Check(mac net.HardwareAddr) bool
}

// StationMetrics are optional per-station radio metrics.
type StationMetrics struct {
	Signal    int
	Connected time.Duration
}

// MetricsReader supplies station metrics outside the control bus,
// keyed by the station's MAC address string.
type MetricsReader interface {
	Stations(ifname string) (map[string]StationMetrics, error)
}

// wireConfiguration translates a validated configuration into the
// daemon's wire shape.
func wireConfiguration(config *Config) *hostapd.Configuration {
	wire := &hostapd.Configuration{
		SSID:    config.SSID,
		Channel: config.Channel,
		Isolate: config.ClientIsolation,
	}

	switch config.Security {
	case SecurityWPA2:
		wire.KeyMgmt = "WPA-PSK"
		wire.PSK = config.Passphrase
	case SecurityWPA3:
		wire.KeyMgmt = "SAE"
		wire.PSK = config.Passphrase
	case SecurityWPA2WPA3:
		wire.KeyMgmt = "WPA-PSK SAE"
		wire.PSK = config.Passphrase
	default:
		wire.KeyMgmt = "NONE"
	}

	switch config.Band {
	case Band5GHz:
		wire.HWMode = "a"
	default:
		wire.HWMode = "bg"
	}

	return wire
}

// stateFromDaemon maps a daemon-reported state onto the lifecycle state.
func stateFromDaemon(daemonState string, reason string) (State, string) {
	switch daemonState {
	case hostapd.StateEnabled:
		return StateUp, ""
	case hostapd.StateFailed:
		if reason == "" {
			reason = "daemon reported failure"
		}
		return StateError, reason
	default:
		return StateDown, ""
	}
}
