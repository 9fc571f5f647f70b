package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/proton-wifi/protond/ap"
	"github.com/proton-wifi/protond/apdb"
	"github.com/proton-wifi/protond/api"
	"github.com/proton-wifi/protond/bus"
	"github.com/proton-wifi/protond/hostapd"
	"github.com/proton-wifi/protond/macfilter"
	"github.com/proton-wifi/protond/wlan"

	// Blank import to set up profiling HTTP handlers.
	_ "net/http/pprof"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// protondMain is the true entry point for protond. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func protondMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Profiling != nil && cfg.Profiling.Listen != "" {
		go func() {
			log.Infof("Starting profiling server on %v", cfg.Profiling.Listen)
			// Redirect the root path
			http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
			// All other handlers are registered on DefaultServeMux through the import of pprof
			err := http.ListenAndServe(cfg.Profiling.Listen, nil)
			if err != nil {
				log.Errorf("Could not run profiler: %v", err)
			}
		}()
	}

	// protond.db persistently stores all saved access point profiles
	db, err := apdb.Open(cfg.DataDir)
	if err != nil {
		return errors.Errorf("Could not open protond.db: %v", err)
	}

	log.Infof("Opened protond.db")

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close protond.db: %v", err)
		} else {
			log.Info("Closed protond.db.")
		}
	}()

	// The control bus connection to the wireless daemon
	systemBus, err := bus.System(&bus.Config{
		Destination: "fi.w1.hostapd1",
		Logger:      log.New().WithField("system", "bus"),
	})
	if err != nil {
		return errors.Errorf("Could not connect to system bus: %v", err)
	}

	log.Info("Connected to system bus.")

	defer func() {
		err := systemBus.Close()
		if err != nil {
			log.Errorf("Could not properly close bus connection: %v", err)
		} else {
			log.Info("Closed bus connection.")
		}
	}()

	daemon := hostapd.New(&hostapd.Config{
		Bus:    systemBus,
		Logger: log.New().WithField("system", "hostapd"),
	})

	log.Info("Created wireless daemon client.")

	policy, err := policyFromConfig(cfg)
	if err != nil {
		return errors.Errorf("Could not build MAC policy: %v", err)
	}

	// Station metrics come straight from nl80211 and are optional
	var metrics ap.MetricsReader

	reader, err := wlan.NewReader()
	if err != nil {
		log.Warnf("Station metrics unavailable: %v", err)
	} else {
		metrics = reader

		defer func() {
			err := reader.Close()
			if err != nil {
				log.Errorf("Could not close nl80211 reader: %v", err)
			}
		}()
	}

	// The lifecycle controller for all access points
	controllerCfg := &ap.ControllerConfig{
		Daemon:    daemon,
		Logger:    log.New().WithField("system", "ap"),
		OpTimeout: cfg.Timeout,
		Metrics:   metrics,
	}

	// A nil *macfilter.Policy must not end up as a non-nil interface.
	if policy != nil {
		controllerCfg.Policy = policy
	}

	controller := ap.NewController(controllerCfg)

	err = controller.Start()
	if err != nil {
		return errors.Errorf("Could not start access point controller: %v", err)
	}

	log.Info("Started access point controller.")

	defer func() {
		err := controller.Stop()
		if err != nil {
			log.Errorf("Could not properly shut down access point controller: %v", err)
		} else {
			log.Info("Stopped access point controller.")
		}
	}()

	restoreProfiles(db, controller)

	// The HTTP API
	a := api.New(&api.Config{
		AccessPoints: controller,
		Profiles:     db,
		Log:          log.New().WithField("system", "api"),
	})

	log.Info("Created API.")

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Errorf("Could not listen on %v: %v", cfg.Listen, err)
	}

	defer func() {
		err := lis.Close()
		if err != nil {
			log.Errorf("Could not close listener: %v", err)
		}
	}()

	go func() {
		log.Infof("Serving API on %v", cfg.Listen)

		err := a.Serve(lis)
		if err != nil {
			log.Errorf("Could not serve api: %v", err)
		}
	}()

	// Handle interrupt signals correctly
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	sig := <-signals
	log.Info(sig)
	log.Info("Received an interrupt, stopping protond...")

	return nil
}

// policyFromConfig builds the MAC admission policy requested through
// the configuration. Allow and deny lists are mutually exclusive.
func policyFromConfig(cfg *config) (*macfilter.Policy, error) {
	if len(cfg.AllowMacs) > 0 && len(cfg.DenyMacs) > 0 {
		return nil, errors.New("allowmac and denymac cannot be combined")
	}

	if len(cfg.AllowMacs) > 0 {
		policy := macfilter.NewAllowlist()

		for _, s := range cfg.AllowMacs {
			mac, err := net.ParseMAC(s)
			if err != nil {
				return nil, errors.Errorf("invalid MAC address %v", s)
			}

			_ = policy.Allow(mac)
		}

		return policy, nil
	}

	if len(cfg.DenyMacs) > 0 {
		policy := macfilter.NewDenylist()

		for _, s := range cfg.DenyMacs {
			mac, err := net.ParseMAC(s)
			if err != nil {
				return nil, errors.Errorf("invalid MAC address %v", s)
			}

			_ = policy.Deny(mac)
		}

		return policy, nil
	}

	return nil, nil
}

// restoreProfiles replays saved access point profiles against the
// controller, starting those marked for automatic start.
func restoreProfiles(db *apdb.DB, controller *ap.Controller) {
	profiles, err := db.GetProfiles()
	if err != nil {
		log.Warnf("Could not read saved profiles: %v", err)
		return
	}

	for _, profile := range profiles {
		config, err := configFromProfile(profile)
		if err != nil {
			log.Warnf("Skipping saved profile for %v: %v", profile.Handle, err)
			continue
		}

		handle := ap.Handle(profile.Handle)

		err = controller.Configure(context.Background(), handle, config)
		if err != nil {
			log.Warnf("Could not restore configuration of %v: %v", handle, err)
			continue
		}

		log.Infof("Restored configuration of %v.", handle)

		if profile.AutoStart {
			err = controller.StartAP(context.Background(), handle)
			if err != nil {
				log.Warnf("Could not start %v: %v", handle, err)
				continue
			}

			log.Infof("Started %v.", handle)
		}
	}
}

func configFromProfile(profile *apdb.Profile) (*ap.Config, error) {
	var security ap.Security

	switch profile.Security {
	case "open":
		security = ap.SecurityOpen
	case "wpa2-personal":
		security = ap.SecurityWPA2
	case "wpa3-personal":
		security = ap.SecurityWPA3
	case "wpa2/3-mixed":
		security = ap.SecurityWPA2WPA3
	default:
		return nil, errors.Errorf("unknown security mode %v", profile.Security)
	}

	return &ap.Config{
		SSID:            profile.SSID,
		Security:        security,
		Passphrase:      profile.Passphrase,
		Band:            ap.Band(profile.Band),
		Channel:         profile.Channel,
		ClientIsolation: profile.ClientIsolation,
	}, nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := protondMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running protond.")
		}
		os.Exit(1)
	}
}
