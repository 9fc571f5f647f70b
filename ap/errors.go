package ap

import "fmt"

// ConfigErrorKind distinguishes the ways a configuration request can be
// refused without contacting the daemon.
type ConfigErrorKind int

const (
	// ConfigInvalid is a local validation failure.
	ConfigInvalid ConfigErrorKind = iota
	// ConfigBusy means another operation is in flight on the handle.
	ConfigBusy
)

type ConfigError struct {
	Kind   ConfigErrorKind
	Reason string
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case ConfigBusy:
		return fmt.Sprintf("busy: %s", e.Reason)
	default:
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
}

func invalidConfig(reason string) *ConfigError {
	return &ConfigError{Kind: ConfigInvalid, Reason: reason}
}

func busy(reason string) *ConfigError {
	return &ConfigError{Kind: ConfigBusy, Reason: reason}
}

// IsBusy reports whether err rejects a concurrent operation on a handle
// that already has one in flight.
func IsBusy(err error) bool {
	configErr, ok := err.(*ConfigError)
	return ok && configErr.Kind == ConfigBusy
}

// IsInvalid reports whether err is a local validation failure.
func IsInvalid(err error) bool {
	configErr, ok := err.(*ConfigError)
	return ok && configErr.Kind == ConfigInvalid
}

// LifecycleErrorKind distinguishes the ways a lifecycle operation can
// fail after the daemon was contacted.
type LifecycleErrorKind int

const (
	// Rejected is a semantic refusal by the daemon, never retried.
	Rejected LifecycleErrorKind = iota
	// Timeout means no confirming signal arrived within the bound.
	Timeout
	// BusUnavailable is a transport failure that survived all retries.
	BusUnavailable
)

func (k LifecycleErrorKind) String() string {
	switch k {
	case Rejected:
		return "rejected"
	case Timeout:
		return "timeout"
	case BusUnavailable:
		return "bus unavailable"
	default:
		return "unknown"
	}
}

type LifecycleError struct {
	Kind   LifecycleErrorKind
	Reason string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// IsTimeout reports whether err is a confirmation timeout.
func IsTimeout(err error) bool {
	lifecycleErr, ok := err.(*LifecycleError)
	return ok && lifecycleErr.Kind == Timeout
}

// IsRejected reports whether err is a daemon-side semantic rejection.
func IsRejected(err error) bool {
	lifecycleErr, ok := err.(*LifecycleError)
	return ok && lifecycleErr.Kind == Rejected
}
