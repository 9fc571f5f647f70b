package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proton-wifi/protond/ap"
	"github.com/proton-wifi/protond/apdb"
	"github.com/proton-wifi/protond/hostapd"
)

// fakeAccessPoints implements AccessPoints with scripted errors and
// canned snapshots.
type fakeAccessPoints struct {
	configureErr error
	startErr     error
	stopErr      error

	configured map[ap.Handle]*ap.Config
	snapshots  map[ap.Handle]*ap.Snapshot
}

func newFakeAccessPoints() *fakeAccessPoints {
	return &fakeAccessPoints{
		configured: make(map[ap.Handle]*ap.Config),
		snapshots:  make(map[ap.Handle]*ap.Snapshot),
	}
}

func (f *fakeAccessPoints) Configure(ctx context.Context, handle ap.Handle, config *ap.Config) error {
	if f.configureErr != nil {
		return f.configureErr
	}

	f.configured[handle] = config
	return nil
}

func (f *fakeAccessPoints) StartAP(ctx context.Context, handle ap.Handle) error {
	return f.startErr
}

func (f *fakeAccessPoints) StopAP(ctx context.Context, handle ap.Handle) error {
	return f.stopErr
}

func (f *fakeAccessPoints) Snapshot(handle ap.Handle) *ap.Snapshot {
	if snapshot, ok := f.snapshots[handle]; ok {
		return snapshot
	}

	return &ap.Snapshot{Handle: handle, State: ap.StateDown}
}

func (f *fakeAccessPoints) Subscribe() *ap.Client {
	return nil
}

func serve(t *testing.T, aps AccessPoints, method string, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	a := New(&Config{AccessPoints: aps})

	var payload *bytes.Buffer
	if body != nil {
		payload = &bytes.Buffer{}
		require.NoError(t, json.NewEncoder(payload).Encode(body))
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	res := httptest.NewRecorder()

	a.router.ServeHTTP(res, req)

	return res
}

func TestGetSnapshot(t *testing.T) {
	aps := newFakeAccessPoints()
	aps.snapshots["wlan0"] = &ap.Snapshot{
		Handle: "wlan0",
		State:  ap.StateUp,
		Config: &ap.Config{
			SSID:     "candy",
			Security: ap.SecurityWPA2,
			Band:     ap.Band2GHz,
			Channel:  6,
		},
	}

	res := serve(t, aps, http.MethodGet, "/api/v1/aps/wlan0", nil)

	require.Equal(t, http.StatusOK, res.Code)

	var snapshot snapshotResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&snapshot))

	assert.Equal(t, "wlan0", snapshot.Handle)
	assert.Equal(t, "UP", snapshot.State)
	require.NotNil(t, snapshot.Config)
	assert.Equal(t, "candy", snapshot.Config.Ssid)
	assert.Equal(t, "wpa2-personal", snapshot.Config.Security)
	assert.NotNil(t, snapshot.Stations)
}

func TestGetSnapshotOfUnknownHandleReportsDown(t *testing.T) {
	res := serve(t, newFakeAccessPoints(), http.MethodGet, "/api/v1/aps/wlan9", nil)

	require.Equal(t, http.StatusOK, res.Code)

	var snapshot snapshotResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&snapshot))

	assert.Equal(t, "DOWN", snapshot.State)
	assert.Nil(t, snapshot.Config)
}

func TestPutConfig(t *testing.T) {
	aps := newFakeAccessPoints()

	res := serve(t, aps, http.MethodPut, "/api/v1/aps/wlan0/config", &putConfigRequest{
		Ssid:            "candy",
		Security:        "wpa3-personal",
		Passphrase:      "sweetsweet",
		Band:            "5",
		Channel:         36,
		ClientIsolation: true,
	})

	require.Equal(t, http.StatusOK, res.Code)

	config := aps.configured["wlan0"]
	require.NotNil(t, config)
	assert.Equal(t, "candy", config.SSID)
	assert.Equal(t, ap.SecurityWPA3, config.Security)
	assert.Equal(t, ap.Band5GHz, config.Band)
	assert.Equal(t, 36, config.Channel)
	assert.True(t, config.ClientIsolation)
}

// fakeProfiles implements ProfileStore in memory.
type fakeProfiles struct {
	saved   map[string]*apdb.Profile
	deleted []string
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{saved: make(map[string]*apdb.Profile)}
}

func (f *fakeProfiles) SetProfile(profile *apdb.Profile) error {
	f.saved[profile.Handle] = profile
	return nil
}

func (f *fakeProfiles) DeleteProfile(handle string) error {
	delete(f.saved, handle)
	f.deleted = append(f.deleted, handle)
	return nil
}

func TestPutConfigSavesProfile(t *testing.T) {
	aps := newFakeAccessPoints()
	profiles := newFakeProfiles()

	a := New(&Config{AccessPoints: aps, Profiles: profiles})

	payload := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(payload).Encode(&putConfigRequest{
		Ssid:       "candy",
		Security:   "wpa2-personal",
		Passphrase: "sweetsweet",
		Band:       "2.4",
		Channel:    6,
		AutoStart:  true,
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/aps/wlan0/config", payload)
	res := httptest.NewRecorder()
	a.router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	profile := profiles.saved["wlan0"]
	require.NotNil(t, profile)
	assert.Equal(t, "candy", profile.SSID)
	assert.Equal(t, "wpa2-personal", profile.Security)
	assert.Equal(t, "sweetsweet", profile.Passphrase)
	assert.Equal(t, "2.4", profile.Band)
	assert.Equal(t, 6, profile.Channel)
	assert.True(t, profile.AutoStart)
}

func TestPutConfigDoesNotSaveProfileOnRejection(t *testing.T) {
	aps := newFakeAccessPoints()
	aps.configureErr = &ap.ConfigError{Kind: ap.ConfigInvalid, Reason: "ssid must not be empty"}
	profiles := newFakeProfiles()

	a := New(&Config{AccessPoints: aps, Profiles: profiles})

	payload := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(payload).Encode(&putConfigRequest{
		Security: "open",
		Band:     "2.4",
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/aps/wlan0/config", payload)
	res := httptest.NewRecorder()
	a.router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Empty(t, profiles.saved)
}

func TestDeleteConfigRemovesSavedProfile(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.saved["wlan0"] = &apdb.Profile{Handle: "wlan0", SSID: "candy"}

	a := New(&Config{AccessPoints: newFakeAccessPoints(), Profiles: profiles})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/aps/wlan0/config", nil)
	res := httptest.NewRecorder()
	a.router.ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	assert.Empty(t, profiles.saved)
	assert.Equal(t, []string{"wlan0"}, profiles.deleted)
}

func TestPutConfigRejectsBadBody(t *testing.T) {
	a := New(&Config{AccessPoints: newFakeAccessPoints()})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/aps/wlan0/config", strings.NewReader("not json"))
	res := httptest.NewRecorder()

	a.router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestPutConfigRejectsUnknownSecurityMode(t *testing.T) {
	res := serve(t, newFakeAccessPoints(), http.MethodPut, "/api/v1/aps/wlan0/config", &putConfigRequest{
		Ssid:     "candy",
		Security: "wep",
		Band:     "2.4",
	})

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLifecycleErrorsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{
			name: "invalid configuration",
			err:  &ap.ConfigError{Kind: ap.ConfigInvalid, Reason: "ssid must not be empty"},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "busy handle",
			err:  &ap.ConfigError{Kind: ap.ConfigBusy, Reason: "another operation is in flight"},
			code: http.StatusConflict,
		},
		{
			name: "confirmation timeout",
			err:  &ap.LifecycleError{Kind: ap.Timeout, Reason: "timeout waiting for start confirmation"},
			code: http.StatusGatewayTimeout,
		},
		{
			name: "daemon rejection",
			err:  &ap.LifecycleError{Kind: ap.Rejected, Reason: "channel not supported"},
			code: http.StatusBadRequest,
		},
		{
			name: "bus unavailable",
			err:  &ap.LifecycleError{Kind: ap.BusUnavailable, Reason: "no reply"},
			code: http.StatusBadGateway,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			aps := newFakeAccessPoints()
			aps.startErr = test.err

			res := serve(t, aps, http.MethodPost, "/api/v1/aps/wlan0/start", nil)

			require.Equal(t, test.code, res.Code)

			var body errorResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			assert.Equal(t, test.err.Error(), body.Error)
		})
	}
}

func TestPostStartAndStop(t *testing.T) {
	aps := newFakeAccessPoints()

	res := serve(t, aps, http.MethodPost, "/api/v1/aps/wlan0/start", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = serve(t, aps, http.MethodPost, "/api/v1/aps/wlan0/stop", nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequestsCarryARequestId(t *testing.T) {
	res := serve(t, newFakeAccessPoints(), http.MethodGet, "/api/v1/aps/wlan0", nil)

	assert.NotEmpty(t, res.Header().Get("X-Request-Id"))
}

// eventsDaemon is the minimal ap.Daemon needed to drive a real
// controller for the websocket test.
type eventsDaemon struct {
	events chan hostapd.Event
}

func (d *eventsDaemon) SetConfiguration(string, *hostapd.Configuration) error { return nil }
func (d *eventsDaemon) StartAP(string) error                                  { return nil }
func (d *eventsDaemon) StopAP(string) error                                   { return nil }
func (d *eventsDaemon) DeauthenticateStation(string, net.HardwareAddr) error  { return nil }
func (d *eventsDaemon) State(string) (string, error)                          { return hostapd.StateDisabled, nil }

func (d *eventsDaemon) Events() (*hostapd.EventsClient, error) {
	return &hostapd.EventsClient{Events: d.events, Cancel: func() {}}, nil
}

func TestEventsStreamOverWebsocket(t *testing.T) {
	daemon := &eventsDaemon{events: make(chan hostapd.Event)}

	controller := ap.NewController(&ap.ControllerConfig{Daemon: daemon})
	require.NoError(t, controller.Start())

	t.Cleanup(func() {
		close(daemon.events)
		_ = controller.Stop()
	})

	a := New(&Config{AccessPoints: controller})

	server := httptest.NewServer(a.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/events"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler a moment to register its subscription.
	time.Sleep(100 * time.Millisecond)

	daemon.events <- &hostapd.StateEvent{Ifname: "wlan0", State: hostapd.StateEnabled}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	var message eventMessage
	require.NoError(t, conn.ReadJSON(&message))

	assert.Equal(t, "stateChanged", message.Type)
	assert.Equal(t, "wlan0", message.Handle)
	assert.Equal(t, "DOWN", message.Previous)
	assert.Equal(t, "UP", message.Current)
}
