package bus

import (
	"fmt"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

// check DBus compliance to its interface during compile time
var _ Bus = (*DBus)(nil)

type Config struct {
	// Destination is the well-known bus name of the daemon.
	Destination string
	Logger      Logger
}

// DBus connects the Bus contract to a D-Bus system bus connection.
type DBus struct {
	conn *dbus.Conn
	dest string
	log  Logger
}

// System opens a connection to the system bus.
func System(config *Config) (*DBus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Errorf("could not connect to system bus: %v", err)
	}

	return wrap(conn, config), nil
}

func wrap(conn *dbus.Conn, config *Config) *DBus {
	b := &DBus{
		conn: conn,
		dest: config.Destination,
	}

	if config.Logger != nil {
		b.log = config.Logger
	} else {
		b.log = noopLogger{}
	}

	return b
}

func (b *DBus) Call(path string, iface string, method string, args ...interface{}) (*Reply, error) {
	obj := b.conn.Object(b.dest, dbus.ObjectPath(path))

	call := obj.Call(iface+"."+method, 0, args...)
	if call.Err != nil {
		return nil, callError(call.Err)
	}

	return &Reply{Body: call.Body}, nil
}

func (b *DBus) Subscribe(path string, iface string, member string) (*Subscription, error) {
	options := []dbus.MatchOption{dbus.WithMatchInterface(iface)}
	if path != "" {
		options = append(options, dbus.WithMatchObjectPath(dbus.ObjectPath(path)))
	}
	if member != "" {
		options = append(options, dbus.WithMatchMember(member))
	}

	err := b.conn.AddMatchSignal(options...)
	if err != nil {
		return nil, errors.Errorf("could not add signal match: %v", err)
	}

	signalChan := make(chan *dbus.Signal, 16)
	payloadChan := make(chan *SignalPayload)
	cancelChan := make(chan struct{})

	b.conn.Signal(signalChan)

	go func() {
		defer close(payloadChan)

		for {
			select {
			case signal, ok := <-signalChan:
				if !ok {
					return
				}

				if !matches(signal, path, iface, member) {
					continue
				}

				payload := &SignalPayload{
					Path:      string(signal.Path),
					Interface: iface,
					Name:      signal.Name,
					Body:      signal.Body,
				}

				select {
				case payloadChan <- payload:
				case <-cancelChan:
					return
				}
			case <-cancelChan:
				return
			}
		}
	}()

	return &Subscription{
		Signals: payloadChan,
		Cancel: func() {
			b.conn.RemoveSignal(signalChan)

			err := b.conn.RemoveMatchSignal(options...)
			if err != nil {
				b.log.Warnf("could not remove signal match: %v", err)
			}

			close(cancelChan)
		},
	}, nil
}

func (b *DBus) Close() error {
	err := b.conn.Close()
	if err != nil {
		return errors.Errorf("could not close bus connection: %v", err)
	}

	return nil
}

func matches(signal *dbus.Signal, path string, iface string, member string) bool {
	if path != "" && string(signal.Path) != path {
		return false
	}

	if member != "" && signal.Name != iface+"."+member {
		return false
	}

	// Without a member the interface prefix decides.
	return len(signal.Name) > len(iface) && signal.Name[:len(iface)+1] == iface+"."
}

func callError(err error) error {
	if dbusErr, ok := err.(dbus.Error); ok {
		message := ""
		if len(dbusErr.Body) > 0 {
			message = fmt.Sprintf("%v", dbusErr.Body[0])
		}

		return &CallError{Name: dbusErr.Name, Message: message}
	}

	return &CallError{
		Name:    "org.freedesktop.DBus.Error.Disconnected",
		Message: err.Error(),
	}
}
