package hostapd

import (
	"fmt"
	"net"

	"github.com/proton-wifi/protond/bus"
)

// Event is one typed daemon event. Concrete types are StateEvent,
// StationAddedEvent, StationRemovedEvent and FaultEvent.
type Event interface{}

// StateEvent reports a daemon state transition for one interface.
type StateEvent struct {
	Ifname string
	State  string
	Reason string
}

// StationAddedEvent reports a client that associated with the AP.
type StationAddedEvent struct {
	Ifname string
	MAC    net.HardwareAddr
}

// StationRemovedEvent reports a client that disassociated from the AP.
type StationRemovedEvent struct {
	Ifname string
	MAC    net.HardwareAddr
}

// FaultEvent reports an unsolicited daemon fault.
type FaultEvent struct {
	Ifname string
	Reason string
}

// DecodeError describes a signal whose shape did not match the expected
// schema. Such signals are dropped with a diagnostic and never corrupt
// lifecycle state.
type DecodeError struct {
	Signal string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode signal %s: %s", e.Signal, e.Reason)
}

type EventsClient struct {
	Events <-chan Event
	Cancel func()
}

// Events subscribes to all interface signals of the daemon and delivers
// them as typed events, preserving the order in which the signals were
// received. Malformed signals are logged and dropped.
func (h *Hostapd) Events() (*EventsClient, error) {
	sub, err := h.bus.Subscribe("", ifaceInterface, "")
	if err != nil {
		return nil, err
	}

	eventChan := make(chan Event)

	go func() {
		defer close(eventChan)

		for payload := range sub.Signals {
			event, err := decodeSignal(payload)
			if err != nil {
				h.log.Warnf("Dropping malformed signal: %v", err)
				continue
			}

			eventChan <- event
		}
	}()

	return &EventsClient{
		Events: eventChan,
		Cancel: sub.Cancel,
	}, nil
}

func decodeSignal(payload *bus.SignalPayload) (Event, error) {
	ifname := ifnameFromPath(payload.Path)

	switch payload.Name {
	case ifaceInterface + ".StateChanged":
		state, reason, err := decodeStateBody(payload.Body)
		if err != nil {
			return nil, &DecodeError{Signal: payload.Name, Reason: err.Error()}
		}

		return &StateEvent{Ifname: ifname, State: state, Reason: reason}, nil
	case ifaceInterface + ".StationAdded":
		mac, err := decodeMACBody(payload.Body)
		if err != nil {
			return nil, &DecodeError{Signal: payload.Name, Reason: err.Error()}
		}

		return &StationAddedEvent{Ifname: ifname, MAC: mac}, nil
	case ifaceInterface + ".StationRemoved":
		mac, err := decodeMACBody(payload.Body)
		if err != nil {
			return nil, &DecodeError{Signal: payload.Name, Reason: err.Error()}
		}

		return &StationRemovedEvent{Ifname: ifname, MAC: mac}, nil
	case ifaceInterface + ".Fault":
		if len(payload.Body) < 1 {
			return nil, &DecodeError{Signal: payload.Name, Reason: "missing reason"}
		}

		reason, ok := payload.Body[0].(string)
		if !ok || reason == "" {
			return nil, &DecodeError{Signal: payload.Name, Reason: "reason was not a non-empty string"}
		}

		return &FaultEvent{Ifname: ifname, Reason: reason}, nil
	default:
		return nil, &DecodeError{Signal: payload.Name, Reason: "unknown signal"}
	}
}

func decodeStateBody(body []interface{}) (string, string, error) {
	if len(body) < 2 {
		return "", "", fmt.Errorf("expected state and reason, got %d values", len(body))
	}

	state, ok := body[0].(string)
	if !ok {
		return "", "", fmt.Errorf("state was not a string")
	}

	switch state {
	case StateUninitialized, StateDisabled, StateEnabled, StateFailed:
	default:
		return "", "", fmt.Errorf("unknown state %q", state)
	}

	reason, ok := body[1].(string)
	if !ok {
		return "", "", fmt.Errorf("reason was not a string")
	}

	return state, reason, nil
}

func decodeMACBody(body []interface{}) (net.HardwareAddr, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("missing station address")
	}

	switch v := body[0].(type) {
	case string:
		mac, err := net.ParseMAC(v)
		if err != nil {
			return nil, fmt.Errorf("invalid station address %q", v)
		}

		return mac, nil
	case []byte:
		if len(v) != 6 {
			return nil, fmt.Errorf("station address had %d bytes", len(v))
		}

		return net.HardwareAddr(v), nil
	default:
		return nil, fmt.Errorf("station address was neither string nor bytes")
	}
}
