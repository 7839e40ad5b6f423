package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stagebus/stagebus/internal/graphics/reveal"
)

func (s *Server) requireReveal(w http.ResponseWriter) bool {
	if s.deps.Reveal == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "reveal manager not configured"})
		return false
	}
	return true
}

func (s *Server) handleRevealStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireReveal(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Reveal.Status())
}

type revealStartRequest struct {
	PresentationID string `json:"presentation_id"`
	URL            string `json:"url"`
}

func (s *Server) handleRevealStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireReveal(w) {
		return
	}

	output := reveal.OutputID(mux.Vars(r)["output"])

	var req revealStartRequest
	if err := decodeJSON(r, &req); err != nil || req.URL == "" {
		writeBadRequest(w, "body must be {\"presentation_id\": \"...\", \"url\": \"...\"}")
		return
	}

	if err := s.deps.Reveal.Start(r.Context(), output, req.PresentationID, req.URL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Reveal.Status())
}

func (s *Server) handleRevealStop(w http.ResponseWriter, r *http.Request) {
	if !s.requireReveal(w) {
		return
	}

	output := reveal.OutputID(mux.Vars(r)["output"])
	if err := s.deps.Reveal.Stop(output); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Reveal.Status())
}
