package bus

import (
	"errors"
	"fmt"
)

// CallError is a failed method call, carrying the error name reported by
// the bus or the remote daemon.
type CallError struct {
	Name    string
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return e.Name
	}

	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Error names that indicate a transport-level failure which may succeed
// on a retry, as opposed to a semantic rejection by the daemon.
var temporaryErrorNames = map[string]struct{}{
	"org.freedesktop.DBus.Error.NoReply":        {},
	"org.freedesktop.DBus.Error.Timeout":        {},
	"org.freedesktop.DBus.Error.TimedOut":       {},
	"org.freedesktop.DBus.Error.Disconnected":   {},
	"org.freedesktop.DBus.Error.LimitsExceeded": {},
}

// IsTemporary reports whether err is a transient transport failure.
func IsTemporary(err error) bool {
	var callErr *CallError
	if !errors.As(err, &callErr) {
		return false
	}

	_, ok := temporaryErrorNames[callErr.Name]
	return ok
}

// AsCallError extracts a CallError from err, if it carries one.
func AsCallError(err error) (*CallError, bool) {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr, true
	}

	return nil, false
}
