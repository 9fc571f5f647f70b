// Package wlan reads station radio metrics straight from the kernel's
// nl80211 interface, outside the control bus.
package wlan

import (
	"github.com/go-errors/errors"
	nl80211 "github.com/mdlayher/wifi"

	"github.com/proton-wifi/protond/ap"
)

// check Reader compliance to the controller's metrics contract during
// compile time
var _ ap.MetricsReader = (*Reader)(nil)

// Reader reads per-station signal metrics for a wireless interface.
type Reader struct {
	client *nl80211.Client
}

func NewReader() (*Reader, error) {
	client, err := nl80211.New()
	if err != nil {
		return nil, errors.Errorf("could not open nl80211: %v", err)
	}

	return &Reader{client: client}, nil
}

// Stations returns metrics of all stations currently associated with
// the interface, keyed by their MAC address string.
func (r *Reader) Stations(ifname string) (map[string]ap.StationMetrics, error) {
	ifis, err := r.client.Interfaces()
	if err != nil {
		return nil, errors.Errorf("could not list interfaces: %v", err)
	}

	var iface *nl80211.Interface
	for _, ifi := range ifis {
		if ifi.Name == ifname {
			iface = ifi
			break
		}
	}

	if iface == nil {
		return nil, errors.Errorf("could not find interface %v", ifname)
	}

	infos, err := r.client.StationInfo(iface)
	if err != nil {
		return nil, errors.Errorf("could not read station info for %v: %v", ifname, err)
	}

	metrics := make(map[string]ap.StationMetrics, len(infos))
	for _, info := range infos {
		metrics[info.HardwareAddr.String()] = ap.StationMetrics{
			Signal:    info.Signal,
			Connected: info.Connected,
		}
	}

	return metrics, nil
}

func (r *Reader) Close() error {
	return r.client.Close()
}
