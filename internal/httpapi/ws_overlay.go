package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
)

var errUnknownOverlayOp = errors.New("unknown overlay op")

var overlayUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// overlayCommand is one low-latency show/hide trigger sent over the
// websocket. Authoring (create/update/delete) stays on the REST
// surface; this channel exists so a director's show/hide clicks never
// pay an HTTP round trip each time.
type overlayCommand struct {
	Op string `json:"op"` // "show" | "hide"
	ID string `json:"id"`
}

type overlayAck struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleOverlayWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Mixer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "mixer not configured"})
		return
	}

	conn, err := overlayUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("overlay websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Msg("overlay websocket closed unexpectedly")
			}
			return
		}

		var cmd overlayCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = conn.WriteJSON(overlayAck{Error: "malformed command"})
			continue
		}

		ack := overlayAck{ID: cmd.ID, Op: cmd.Op}
		var opErr error
		switch cmd.Op {
		case "show":
			opErr = s.deps.Mixer.ShowOverlay(cmd.ID)
		case "hide":
			opErr = s.deps.Mixer.HideOverlay(cmd.ID)
		default:
			opErr = errUnknownOverlayOp
		}
		if opErr != nil {
			ack.Error = opErr.Error()
		}
		_ = conn.WriteJSON(ack)
	}
}
