package api

import (
	"context"
	"net"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/proton-wifi/protond/ap"
	"github.com/proton-wifi/protond/apdb"
)

// AccessPoints is the controller surface the API exposes over HTTP.
type AccessPoints interface {
	Configure(ctx context.Context, handle ap.Handle, config *ap.Config) error
	StartAP(ctx context.Context, handle ap.Handle) error
	StopAP(ctx context.Context, handle ap.Handle) error
	Snapshot(handle ap.Handle) *ap.Snapshot
	Subscribe() *ap.Client
}

// check Controller compliance to the exposed surface during compile time
var _ AccessPoints = (*ap.Controller)(nil)

// ProfileStore persists access point profiles so they survive a daemon
// restart. A successfully applied configuration is saved through it and
// replayed at boot.
type ProfileStore interface {
	SetProfile(profile *apdb.Profile) error
	DeleteProfile(handle string) error
}

// check DB compliance to the store surface during compile time
var _ ProfileStore = (*apdb.DB)(nil)

type Config struct {
	AccessPoints AccessPoints

	// Profiles is optional; without it configurations are not persisted.
	Profiles ProfileStore

	Log Logger
}

type Api struct {
	aps      AccessPoints
	profiles ProfileStore
	router   *mux.Router
	log      Logger
}

func New(config *Config) *Api {
	api := &Api{
		aps:      config.AccessPoints,
		profiles: config.Profiles,
		router:   mux.NewRouter(),
	}

	if config.Log != nil {
		api.log = config.Log
	} else {
		api.log = noopLogger{}
	}

	api.router.Use(api.loggingMiddleware)

	api.router.Handle("/api/v1/aps/{handle}", api.handleGetSnapshot()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/aps/{handle}/config", api.handlePutConfig()).Methods(http.MethodPut)
	api.router.Handle("/api/v1/aps/{handle}/config", api.handleDeleteConfig()).Methods(http.MethodDelete)
	api.router.Handle("/api/v1/aps/{handle}/start", api.handlePostStart()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/aps/{handle}/stop", api.handlePostStop()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/events", api.handleGetEvents()).Methods(http.MethodGet)

	return api
}

func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(l, a.router)
	if err != nil {
		return errors.Errorf("unable to serve api: %v", err)
	}

	return nil
}

func (a *Api) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := uuid.New().String()

		a.log.Debugf("%s %s (request %s)", r.Method, r.URL.Path, requestId)

		w.Header().Set("X-Request-Id", requestId)

		next.ServeHTTP(w, r)
	})
}
