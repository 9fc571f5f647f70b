package main

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type profilingConfig struct {
	Listen string `long:"listen" description:"Host and port of the profiling server" yaml:"listen"`
}

type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit" yaml:"-"`
	Debug       bool   `long:"debug" description:"Start in debug mode" yaml:"debug"`
	ConfigFile  string `short:"c" long:"config" description:"Path to a yaml configuration file" yaml:"-"`
	DataDir     string `long:"datadir" description:"Directory containing protond's database" yaml:"datadir"`
	Listen      string `long:"listen" description:"Host and port of the HTTP API" yaml:"listen"`

	// Timeout bounds every lifecycle operation's wait for a daemon
	// acknowledgment or confirming signal.
	Timeout time.Duration `long:"timeout" description:"Lifecycle operation timeout" yaml:"timeout"`

	AllowMacs []string `long:"allowmac" description:"Only let listed MAC addresses associate (repeatable)" yaml:"allowMacs"`
	DenyMacs  []string `long:"denymac" description:"Never let listed MAC addresses associate (repeatable)" yaml:"denyMacs"`

	Profiling *profilingConfig `group:"Profiling" namespace:"profiling" yaml:"profiling"`
}

func loadConfig() (*config, error) {
	cfg := config{
		DataDir: ".",
		Listen:  ":9000",
		Timeout: 5 * time.Second,
	}

	_, err := flags.Parse(&cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		payload, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}

		err = yaml.Unmarshal(payload, &cfg)
		if err != nil {
			return nil, err
		}

		// Flags win over the file, so parse them once more on top.
		_, err = flags.Parse(&cfg)
		if err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}
