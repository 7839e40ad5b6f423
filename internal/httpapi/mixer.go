package httpapi

import (
	"net/http"

	"github.com/stagebus/stagebus/internal/errs"
	"github.com/stagebus/stagebus/internal/mixer"
)

func (s *Server) requireMixer(w http.ResponseWriter) bool {
	if s.deps.Mixer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "mixer not configured"})
		return false
	}
	return true
}

func (s *Server) handleMixerStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMixer(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Mixer.Status())
}

type sceneIDRequest struct {
	SceneID string `json:"scene_id"`
}

func (s *Server) handleMixerStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireMixer(w) {
		return
	}

	var req sceneIDRequest
	if err := decodeJSON(r, &req); err != nil || req.SceneID == "" {
		writeBadRequest(w, "body must be {\"scene_id\": \"...\"}")
		return
	}

	if err := s.deps.Mixer.Start(r.Context(), req.SceneID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Mixer.Status())
}

func (s *Server) handleMixerStop(w http.ResponseWriter, r *http.Request) {
	if !s.requireMixer(w) {
		return
	}
	s.deps.Mixer.Stop()
	writeJSON(w, http.StatusOK, s.deps.Mixer.Status())
}

func (s *Server) handleMixerSetScene(w http.ResponseWriter, r *http.Request) {
	if !s.requireMixer(w) {
		return
	}

	var req sceneIDRequest
	if err := decodeJSON(r, &req); err != nil || req.SceneID == "" {
		writeBadRequest(w, "body must be {\"scene_id\": \"...\"}")
		return
	}

	if err := s.deps.Mixer.SetScene(r.Context(), req.SceneID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Mixer.Status())
}

type takeRequest struct {
	Transition string `json:"transition"`
}

func (s *Server) handleMixerTake(w http.ResponseWriter, r *http.Request) {
	if !s.requireMixer(w) {
		return
	}

	var req takeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	transition := mixer.Transition(req.Transition)
	switch transition {
	case "", mixer.TransitionCut, mixer.TransitionMix, mixer.TransitionAuto:
	default:
		writeError(w, errs.Newf(errs.KindInvalidRequest, "unknown transition %q", req.Transition))
		return
	}

	if err := s.deps.Mixer.Take(r.Context(), transition); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Mixer.Status())
}
