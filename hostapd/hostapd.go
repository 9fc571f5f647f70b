// Package hostapd maps the wireless daemon's bus objects to typed calls
// and events. It is a pure translation layer; all lifecycle decisions
// live with the caller.
package hostapd

import (
	"net"
	"strings"
	"sync"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/proton-wifi/protond/bus"
)

const (
	busName        = "fi.w1.hostapd1"
	managerPath    = "/fi/w1/hostapd1"
	ifaceInterface = "fi.w1.hostapd1.Interface"
)

// Daemon-reported access point states.
const (
	StateUninitialized = "UNINITIALIZED"
	StateDisabled      = "DISABLED"
	StateEnabled       = "ENABLED"
	StateFailed        = "FAILED"
)

type Config struct {
	Bus    bus.Bus
	Logger Logger
}

// Hostapd talks to one wireless daemon over the control bus.
type Hostapd struct {
	bus bus.Bus
	log Logger

	pathMtx sync.Mutex
	paths   map[string]string
}

func New(config *Config) *Hostapd {
	h := &Hostapd{
		bus:   config.Bus,
		paths: make(map[string]string),
	}

	if config.Logger != nil {
		h.log = config.Logger
	} else {
		h.log = noopLogger{}
	}

	return h
}

// Configuration is the wire-level shape of an access point configuration
// as the daemon expects it.
type Configuration struct {
	SSID    string
	KeyMgmt string
	PSK     string
	HWMode  string
	Channel int
	Isolate bool
}

func (h *Hostapd) SetConfiguration(ifname string, config *Configuration) error {
	path, err := h.interfacePath(ifname)
	if err != nil {
		return err
	}

	args := map[string]interface{}{
		"ssid":       config.SSID,
		"key_mgmt":   config.KeyMgmt,
		"hw_mode":    config.HWMode,
		"channel":    uint16(config.Channel),
		"ap_isolate": config.Isolate,
	}

	if config.PSK != "" {
		args["psk"] = config.PSK
	}

	_, err = h.bus.Call(path, ifaceInterface, "SetConfiguration", args)
	if err != nil {
		return err
	}

	return nil
}

func (h *Hostapd) StartAP(ifname string) error {
	path, err := h.interfacePath(ifname)
	if err != nil {
		return err
	}

	_, err = h.bus.Call(path, ifaceInterface, "StartAP")
	return err
}

func (h *Hostapd) StopAP(ifname string) error {
	path, err := h.interfacePath(ifname)
	if err != nil {
		return err
	}

	_, err = h.bus.Call(path, ifaceInterface, "StopAP")
	return err
}

func (h *Hostapd) DeauthenticateStation(ifname string, mac net.HardwareAddr) error {
	path, err := h.interfacePath(ifname)
	if err != nil {
		return err
	}

	_, err = h.bus.Call(path, ifaceInterface, "DeauthenticateStation", mac.String())
	return err
}

// State queries the daemon for the authoritative state of an interface.
func (h *Hostapd) State(ifname string) (string, error) {
	path, err := h.interfacePath(ifname)
	if err != nil {
		return "", err
	}

	reply, err := h.bus.Call(path, "org.freedesktop.DBus.Properties", "Get", ifaceInterface, "State")
	if err != nil {
		return "", err
	}

	if len(reply.Body) < 1 {
		return "", errors.Errorf("state property reply was empty")
	}

	switch v := reply.Body[0].(type) {
	case string:
		return v, nil
	case dbus.Variant:
		if s, ok := v.Value().(string); ok {
			return s, nil
		}
	}

	return "", errors.Errorf("could not convert state property: %v", reply.Body[0])
}

func (h *Hostapd) interfacePath(ifname string) (string, error) {
	h.pathMtx.Lock()
	path, ok := h.paths[ifname]
	h.pathMtx.Unlock()

	if ok {
		return path, nil
	}

	reply, err := h.bus.Call(managerPath, busName, "GetInterface", ifname)
	if err != nil {
		return "", err
	}

	if len(reply.Body) < 1 {
		return "", errors.Errorf("interface path reply was empty")
	}

	switch v := reply.Body[0].(type) {
	case string:
		path = v
	case dbus.ObjectPath:
		path = string(v)
	default:
		return "", errors.Errorf("could not convert interface path: %v", reply.Body[0])
	}

	h.pathMtx.Lock()
	h.paths[ifname] = path
	h.pathMtx.Unlock()

	return path, nil
}

// ifnameFromPath recovers the interface name from an object path like
// /fi/w1/hostapd1/Interfaces/wlan0.
func ifnameFromPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}

	return path[idx+1:]
}
