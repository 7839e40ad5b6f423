package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stagebus/stagebus/internal/errs"
)

func (s *Server) requireRecording(w http.ResponseWriter) bool {
	if s.deps.Recording == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "recording subscriber not configured"})
		return false
	}
	return true
}

type startAllResponse struct {
	SessionID string           `json:"session_id"`
	Cameras   map[string]string `json:"cameras"`
}

func (s *Server) handleRecordStartAll(w http.ResponseWriter, r *http.Request) {
	if !s.requireRecording(w) {
		return
	}

	sessionID, results, err := s.deps.Recording.StartAll(r.Context(), s.deps.Cameras)
	if err != nil {
		writeError(w, err)
		return
	}

	cameras := make(map[string]string, len(results))
	for id, startErr := range results {
		if startErr != nil {
			cameras[id] = "failed"
		} else {
			cameras[id] = "started"
		}
	}
	writeJSON(w, http.StatusOK, startAllResponse{SessionID: sessionID, Cameras: cameras})
}

func (s *Server) handleRecordStopAll(w http.ResponseWriter, r *http.Request) {
	if !s.requireRecording(w) {
		return
	}

	sess, err := s.deps.Recording.StopAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRecordStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireRecording(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Recording.Status())
}

func (s *Server) handleRecordSessionsList(w http.ResponseWriter, r *http.Request) {
	if !s.requireRecording(w) {
		return
	}

	ids, err := s.deps.Recording.ListSessions()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleRecordSessionFetch(w http.ResponseWriter, r *http.Request) {
	if !s.requireRecording(w) {
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, errs.New(errs.KindInvalidRequest, "missing session id"))
		return
	}

	sess, err := s.deps.Recording.GetSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
