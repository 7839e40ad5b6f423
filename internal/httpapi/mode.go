package httpapi

import (
	"net/http"

	"github.com/stagebus/stagebus/internal/mode"
)

func (s *Server) requireMode(w http.ResponseWriter) bool {
	if s.deps.Mode == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "mode manager not configured"})
		return false
	}
	return true
}

func (s *Server) handleModeGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireMode(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]mode.Mode{"mode": s.deps.Mode.GetMode()})
}

type modeSetRequest struct {
	Mode mode.Mode `json:"mode"`
}

func (s *Server) handleModeSet(w http.ResponseWriter, r *http.Request) {
	if !s.requireMode(w) {
		return
	}

	var req modeSetRequest
	if err := decodeJSON(r, &req); err != nil || req.Mode == "" {
		writeBadRequest(w, "body must be {\"mode\": \"...\"}")
		return
	}

	if err := s.deps.Mode.SetMode(r.Context(), req.Mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Mode.Status())
}

func (s *Server) handleModeStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMode(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Mode.Status())
}
