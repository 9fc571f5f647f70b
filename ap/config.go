package ap

// Security is the authentication mode of an access point.
type Security int

const (
	SecurityOpen Security = iota
	SecurityWPA2
	SecurityWPA3
	SecurityWPA2WPA3
)

func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "open"
	case SecurityWPA2:
		return "wpa2-personal"
	case SecurityWPA3:
		return "wpa3-personal"
	case SecurityWPA2WPA3:
		return "wpa2/3-mixed"
	default:
		return "invalid"
	}
}

// RequiresPassphrase reports whether the mode needs a pre-shared key.
func (s Security) RequiresPassphrase() bool {
	return s != SecurityOpen
}

// Band is the radio frequency band.
type Band string

const (
	Band2GHz Band = "2.4"
	Band5GHz Band = "5"
)

// channels permitted per band. Channel 0 requests automatic selection.
var channels = map[Band][]int{
	Band2GHz: {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13},
	Band5GHz: {36, 40, 44, 48, 52, 56, 60, 64, 100, 104, 108, 112, 116,
		120, 124, 128, 132, 136, 140, 144, 149, 153, 157, 161, 165},
}

// Config is the desired configuration of one access point. It is a
// value object; a new configuration replaces a prior one, it is never
// mutated in place.
type Config struct {
	// SSID is the broadcast network name, 1 to 32 bytes.
	SSID string

	Security Security

	// Passphrase must be present iff Security requires one,
	// 8 to 63 bytes.
	Passphrase string

	Band Band

	// Channel 0 selects the channel automatically.
	Channel int

	// ClientIsolation prevents traffic between associated clients.
	ClientIsolation bool
}

// Validate checks the configuration locally, without contacting the
// daemon. It returns a ConfigError on the first violation found.
func (c *Config) Validate() error {
	if len(c.SSID) == 0 {
		return invalidConfig("ssid must not be empty")
	}

	if len(c.SSID) > 32 {
		return invalidConfig("ssid exceeds 32 bytes")
	}

	switch c.Security {
	case SecurityOpen, SecurityWPA2, SecurityWPA3, SecurityWPA2WPA3:
	default:
		return invalidConfig("unknown security mode")
	}

	if c.Security.RequiresPassphrase() {
		if len(c.Passphrase) < 8 || len(c.Passphrase) > 63 {
			return invalidConfig("passphrase must be 8 to 63 bytes for mode " + c.Security.String())
		}
	} else if c.Passphrase != "" {
		return invalidConfig("passphrase must be empty for an open network")
	}

	allowed, ok := channels[c.Band]
	if !ok {
		return invalidConfig("unknown band " + string(c.Band))
	}

	if c.Channel != 0 && !containsChannel(allowed, c.Channel) {
		return invalidConfig("channel not valid for band " + string(c.Band))
	}

	return nil
}

func (c *Config) copy() *Config {
	clone := *c
	return &clone
}

func containsChannel(allowed []int, channel int) bool {
	for _, c := range allowed {
		if c == channel {
			return true
		}
	}

	return false
}
