package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stagebus/stagebus/internal/graphics/overlay"
)

func (s *Server) requireOverlay(w http.ResponseWriter) bool {
	if s.deps.Overlay == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "overlay manager not configured"})
		return false
	}
	return true
}

func (s *Server) handleOverlayList(w http.ResponseWriter, r *http.Request) {
	if !s.requireOverlay(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Overlay.List())
}

type overlayCreateRequest struct {
	Kind overlay.Kind `json:"kind"`
	Data overlay.Data `json:"data"`
}

func (s *Server) handleOverlayCreate(w http.ResponseWriter, r *http.Request) {
	if !s.requireOverlay(w) {
		return
	}

	id := mux.Vars(r)["id"]
	var req overlayCreateRequest
	if err := decodeJSON(r, &req); err != nil || req.Kind == "" {
		writeBadRequest(w, "body must be {\"kind\": \"...\", \"data\": {...}}")
		return
	}

	if err := s.deps.Overlay.Create(id, req.Kind, req.Data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleOverlayUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.requireOverlay(w) {
		return
	}

	id := mux.Vars(r)["id"]
	var data overlay.Data
	if err := decodeJSON(r, &data); err != nil {
		writeBadRequest(w, "malformed overlay data")
		return
	}

	if err := s.deps.Overlay.Update(id, data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleOverlayDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireOverlay(w) {
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.deps.Overlay.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleOverlayClear(w http.ResponseWriter, r *http.Request) {
	if !s.requireOverlay(w) {
		return
	}
	s.deps.Overlay.Clear()
	w.WriteHeader(http.StatusOK)
}
