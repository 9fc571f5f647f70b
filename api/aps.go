package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/proton-wifi/protond/ap"
	"github.com/proton-wifi/protond/apdb"
)

type stationResponse struct {
	Mac          string    `json:"mac"`
	AssociatedAt time.Time `json:"associatedAt"`
	Signal       int       `json:"signal,omitempty"`
	ConnectedFor float64   `json:"connectedFor,omitempty"`
}

type configResponse struct {
	Ssid            string `json:"ssid"`
	Security        string `json:"security"`
	Band            string `json:"band"`
	Channel         int    `json:"channel"`
	ClientIsolation bool   `json:"clientIsolation"`
}

type snapshotResponse struct {
	Handle   string             `json:"handle"`
	State    string             `json:"state"`
	Reason   string             `json:"reason,omitempty"`
	Config   *configResponse    `json:"config,omitempty"`
	Stations []*stationResponse `json:"stations"`
}

func (a *Api) handleGetSnapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := ap.Handle(mux.Vars(r)["handle"])

		snapshot := a.aps.Snapshot(handle)

		a.jsonResponse(w, snapshotToResponse(snapshot), http.StatusOK)
	}
}

type putConfigRequest struct {
	Ssid            string `json:"ssid"`
	Security        string `json:"security"`
	Passphrase      string `json:"passphrase"`
	Band            string `json:"band"`
	Channel         int    `json:"channel"`
	ClientIsolation bool   `json:"clientIsolation"`

	// AutoStart marks the saved profile for automatic start at boot.
	AutoStart bool `json:"autoStart"`
}

func (a *Api) handlePutConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := ap.Handle(mux.Vars(r)["handle"])

		req := putConfigRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, "could not parse request body", http.StatusBadRequest)
			return
		}

		security, ok := securityFromString(req.Security)
		if !ok {
			a.jsonError(w, "unknown security mode "+req.Security, http.StatusBadRequest)
			return
		}

		config := &ap.Config{
			SSID:            req.Ssid,
			Security:        security,
			Passphrase:      req.Passphrase,
			Band:            ap.Band(req.Band),
			Channel:         req.Channel,
			ClientIsolation: req.ClientIsolation,
		}

		err = a.aps.Configure(r.Context(), handle, config)
		if err != nil {
			a.lifecycleError(w, err)
			return
		}

		// The daemon accepted the configuration; persist it so it can be
		// restored at the next boot. A failing save does not undo the
		// applied configuration.
		if a.profiles != nil {
			err = a.profiles.SetProfile(profileFromRequest(string(handle), &req))
			if err != nil {
				a.log.Errorf("Could not save profile for %v: %v", handle, err)
			}
		}

		a.jsonResponse(w, snapshotToResponse(a.aps.Snapshot(handle)), http.StatusOK)
	}
}

func (a *Api) handleDeleteConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := mux.Vars(r)["handle"]

		if a.profiles != nil {
			err := a.profiles.DeleteProfile(handle)
			if err != nil {
				a.jsonError(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func profileFromRequest(handle string, req *putConfigRequest) *apdb.Profile {
	return &apdb.Profile{
		Handle:          handle,
		SSID:            req.Ssid,
		Security:        req.Security,
		Passphrase:      req.Passphrase,
		Band:            req.Band,
		Channel:         req.Channel,
		ClientIsolation: req.ClientIsolation,
		AutoStart:       req.AutoStart,
	}
}

func (a *Api) handlePostStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := ap.Handle(mux.Vars(r)["handle"])

		err := a.aps.StartAP(r.Context(), handle)
		if err != nil {
			a.lifecycleError(w, err)
			return
		}

		a.jsonResponse(w, snapshotToResponse(a.aps.Snapshot(handle)), http.StatusOK)
	}
}

func (a *Api) handlePostStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := ap.Handle(mux.Vars(r)["handle"])

		err := a.aps.StopAP(r.Context(), handle)
		if err != nil {
			a.lifecycleError(w, err)
			return
		}

		a.jsonResponse(w, snapshotToResponse(a.aps.Snapshot(handle)), http.StatusOK)
	}
}

func (a *Api) lifecycleError(w http.ResponseWriter, err error) {
	switch {
	case ap.IsInvalid(err):
		a.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case ap.IsBusy(err):
		a.jsonError(w, err.Error(), http.StatusConflict)
	case ap.IsTimeout(err):
		a.jsonError(w, err.Error(), http.StatusGatewayTimeout)
	case ap.IsRejected(err):
		a.jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		a.jsonError(w, err.Error(), http.StatusBadGateway)
	}
}

func snapshotToResponse(snapshot *ap.Snapshot) *snapshotResponse {
	res := &snapshotResponse{
		Handle:   string(snapshot.Handle),
		State:    snapshot.State.String(),
		Reason:   snapshot.Reason,
		Stations: []*stationResponse{},
	}

	if snapshot.Config != nil {
		res.Config = &configResponse{
			Ssid:            snapshot.Config.SSID,
			Security:        snapshot.Config.Security.String(),
			Band:            string(snapshot.Config.Band),
			Channel:         snapshot.Config.Channel,
			ClientIsolation: snapshot.Config.ClientIsolation,
		}
	}

	for _, station := range snapshot.Stations {
		res.Stations = append(res.Stations, &stationResponse{
			Mac:          station.MAC.String(),
			AssociatedAt: station.AssociatedAt,
			Signal:       station.Signal,
			ConnectedFor: station.ConnectedFor.Seconds(),
		})
	}

	return res
}

func securityFromString(s string) (ap.Security, bool) {
	switch s {
	case "open":
		return ap.SecurityOpen, true
	case "wpa2-personal":
		return ap.SecurityWPA2, true
	case "wpa3-personal":
		return ap.SecurityWPA3, true
	case "wpa2/3-mixed":
		return ap.SecurityWPA2WPA3, true
	default:
		return 0, false
	}
}
