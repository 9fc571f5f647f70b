package ap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		reason string
	}{
		{
			name: "valid wpa2",
			config: &Config{
				SSID:       "candy",
				Security:   SecurityWPA2,
				Passphrase: "sweetsweet",
				Band:       Band2GHz,
				Channel:    6,
			},
		},
		{
			name: "valid open with auto channel",
			config: &Config{
				SSID:     "lobby",
				Security: SecurityOpen,
				Band:     Band5GHz,
			},
		},
		{
			name: "valid wpa3 on 5ghz",
			config: &Config{
				SSID:       "office",
				Security:   SecurityWPA3,
				Passphrase: "correct horse battery",
				Band:       Band5GHz,
				Channel:    36,
			},
		},
		{
			name: "valid mixed mode",
			config: &Config{
				SSID:       "office",
				Security:   SecurityWPA2WPA3,
				Passphrase: "correct horse battery",
				Band:       Band2GHz,
				Channel:    11,
			},
		},
		{
			name: "ssid at limit",
			config: &Config{
				SSID:     strings.Repeat("x", 32),
				Security: SecurityOpen,
				Band:     Band2GHz,
			},
		},
		{
			name: "empty ssid",
			config: &Config{
				Security: SecurityOpen,
				Band:     Band2GHz,
			},
			reason: "ssid must not be empty",
		},
		{
			name: "ssid too long",
			config: &Config{
				SSID:     strings.Repeat("x", 33),
				Security: SecurityOpen,
				Band:     Band2GHz,
			},
			reason: "ssid exceeds 32 bytes",
		},
		{
			name: "missing passphrase",
			config: &Config{
				SSID:     "candy",
				Security: SecurityWPA2,
				Band:     Band2GHz,
			},
			reason: "passphrase must be 8 to 63 bytes for mode wpa2-personal",
		},
		{
			name: "passphrase too short",
			config: &Config{
				SSID:       "candy",
				Security:   SecurityWPA3,
				Passphrase: "short",
				Band:       Band2GHz,
			},
			reason: "passphrase must be 8 to 63 bytes for mode wpa3-personal",
		},
		{
			name: "passphrase too long",
			config: &Config{
				SSID:       "candy",
				Security:   SecurityWPA2,
				Passphrase: strings.Repeat("p", 64),
				Band:       Band2GHz,
			},
			reason: "passphrase must be 8 to 63 bytes for mode wpa2-personal",
		},
		{
			name: "passphrase on open network",
			config: &Config{
				SSID:       "lobby",
				Security:   SecurityOpen,
				Passphrase: "sweetsweet",
				Band:       Band2GHz,
			},
			reason: "passphrase must be empty for an open network",
		},
		{
			name: "unknown security mode",
			config: &Config{
				SSID:     "candy",
				Security: Security(42),
				Band:     Band2GHz,
			},
			reason: "unknown security mode",
		},
		{
			name: "unknown band",
			config: &Config{
				SSID:     "candy",
				Security: SecurityOpen,
				Band:     Band("6"),
			},
			reason: "unknown band 6",
		},
		{
			name: "channel not in band",
			config: &Config{
				SSID:     "candy",
				Security: SecurityOpen,
				Band:     Band2GHz,
				Channel:  36,
			},
			reason: "channel not valid for band 2.4",
		},
		{
			name: "5ghz channel on 5ghz band",
			config: &Config{
				SSID:     "candy",
				Security: SecurityOpen,
				Band:     Band5GHz,
				Channel:  149,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.config.Validate()

			if test.reason == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, IsInvalid(err))

			configErr := err.(*ConfigError)
			assert.Equal(t, test.reason, configErr.Reason)
		})
	}
}

func TestSecurityString(t *testing.T) {
	assert.Equal(t, "open", SecurityOpen.String())
	assert.Equal(t, "wpa2-personal", SecurityWPA2.String())
	assert.Equal(t, "wpa3-personal", SecurityWPA3.String())
	assert.Equal(t, "wpa2/3-mixed", SecurityWPA2WPA3.String())
}

func TestSecurityRequiresPassphrase(t *testing.T) {
	assert.False(t, SecurityOpen.RequiresPassphrase())
	assert.True(t, SecurityWPA2.RequiresPassphrase())
	assert.True(t, SecurityWPA3.RequiresPassphrase())
	assert.True(t, SecurityWPA2WPA3.RequiresPassphrase())
}
