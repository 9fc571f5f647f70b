package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/proton-wifi/protond/ap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type eventMessage struct {
	Type     string           `json:"type"`
	Handle   string           `json:"handle"`
	Previous string           `json:"previous,omitempty"`
	Current  string           `json:"current,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Mac      string           `json:"mac,omitempty"`
	Station  *stationResponse `json:"station,omitempty"`
}

// handleGetEvents streams controller events over a websocket until the
// peer goes away.
func (a *Api) handleGetEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.log.Errorf("Could not upgrade events connection: %v", err)
			return
		}

		client := a.aps.Subscribe()

		defer func() {
			client.Cancel()

			err := conn.Close()
			if err != nil {
				a.log.Debugf("Could not close events connection: %v", err)
			}
		}()

		// Drain the peer so we notice it closing.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				_, _, err := conn.ReadMessage()
				if err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event := <-client.Events:
				message, ok := eventToMessage(event)
				if !ok {
					continue
				}

				err := conn.WriteJSON(message)
				if err != nil {
					a.log.Debugf("Could not write event: %v", err)
					return
				}
			case <-closed:
				return
			}
		}
	}
}

func eventToMessage(event ap.Event) (*eventMessage, bool) {
	switch ev := event.(type) {
	case *ap.StateChangedEvent:
		return &eventMessage{
			Type:     "stateChanged",
			Handle:   string(ev.Handle),
			Previous: ev.Previous.String(),
			Current:  ev.Current.String(),
			Reason:   ev.Reason,
		}, true
	case *ap.ClientJoinedEvent:
		return &eventMessage{
			Type:   "clientJoined",
			Handle: string(ev.Handle),
			Mac:    ev.Station.MAC.String(),
			Station: &stationResponse{
				Mac:          ev.Station.MAC.String(),
				AssociatedAt: ev.Station.AssociatedAt,
				Signal:       ev.Station.Signal,
				ConnectedFor: ev.Station.ConnectedFor.Seconds(),
			},
		}, true
	case *ap.ClientLeftEvent:
		return &eventMessage{
			Type:   "clientLeft",
			Handle: string(ev.Handle),
			Mac:    ev.MAC.String(),
		}, true
	case *ap.ConfigurationFailedEvent:
		return &eventMessage{
			Type:   "configurationFailed",
			Handle: string(ev.Handle),
			Reason: ev.Reason,
		}, true
	default:
		return nil, false
	}
}
