package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// whepClient is used for the one-shot offer/PATCH forwards; bounded so
// a stalled media server never blocks a browser's negotiation
// indefinitely.
var whepClient = &http.Client{Timeout: 10 * time.Second}

func (s *Server) requireGateway(w http.ResponseWriter) bool {
	if s.deps.Gateway == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "media server gateway not configured"})
		return false
	}
	return true
}

// handleWHEPOffer proxies a browser's SDP offer to the media server's
// WHEP endpoint and relays the SDP answer back, rewriting the Location
// header (if present) to the core's own same-origin WHEP path so the
// browser's follow-up PATCH calls never need to know the media
// server's address. Only POST and PATCH are proxied; DELETE is not
// routed.
func (s *Server) handleWHEPOffer(w http.ResponseWriter, r *http.Request) {
	s.proxyWHEP(w, r, http.MethodPost)
}

// handleWHEPPatch proxies an ICE trickle PATCH the same way.
func (s *Server) handleWHEPPatch(w http.ResponseWriter, r *http.Request) {
	s.proxyWHEP(w, r, http.MethodPatch)
}

func (s *Server) proxyWHEP(w http.ResponseWriter, r *http.Request, method string) {
	if !s.requireGateway(w) {
		return
	}

	path := mux.Vars(r)["path"]
	target := s.deps.Gateway.WHEPEndpoint(path)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), method, target, bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Kind: "internal", Message: "building media server request: " + err.Error()})
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := whepClient.Do(req)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Kind: "device_unavailable", Message: "media server unreachable: " + err.Error()})
		return
	}
	defer resp.Body.Close()

	if loc := resp.Header.Get("Location"); loc != "" {
		w.Header().Set("Location", "/api/whep/"+path)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
