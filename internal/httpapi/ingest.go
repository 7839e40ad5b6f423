package httpapi

import "net/http"

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "ingest manager not configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Ingest.Status())
}
